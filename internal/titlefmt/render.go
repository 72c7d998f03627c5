// Package titlefmt renders tab title formats with %name% placeholders.
package titlefmt

import (
	"regexp"
	"sort"
)

// FallbackText replaces any placeholder that has no value.
const FallbackText = "(no value)"

// TitleToken is the reserved placeholder for the page's own title.
const TitleToken = "%title%"

var (
	tokenPattern = regexp.MustCompile(`(?i)%[a-z0-9_]+%`)
	titlePattern = regexp.MustCompile(`(?i)%title%`)
	namePattern  = regexp.MustCompile(`(?i)^[a-z0-9_]+$`)
)

// Render substitutes %title% with realTitle, every %name% with its variable
// value, and any placeholder left over with FallbackText.
//
// Variables are applied in ascending key order so a fixed map always renders
// the same way. Placeholder names match case-insensitively; a lone or
// unbalanced % is left as is.
func Render(format, realTitle string, vars Variables) string {
	if !tokenPattern.MatchString(format) {
		return format
	}

	out := titlePattern.ReplaceAllLiteralString(format, realTitle)
	for _, name := range vars.Names() {
		out = replaceToken(out, name, vars[name])
	}
	return tokenPattern.ReplaceAllLiteralString(out, FallbackText)
}

// HasPlaceholders reports whether format contains any %name% token.
func HasPlaceholders(format string) bool {
	return tokenPattern.MatchString(format)
}

// ValidName reports whether name can be used as a placeholder.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

func replaceToken(s, name, value string) string {
	re, err := regexp.Compile(`(?i)%` + regexp.QuoteMeta(name) + `%`)
	if err != nil {
		return s
	}
	return re.ReplaceAllLiteralString(s, value)
}

// Variables maps placeholder names to values.
type Variables map[string]string

// Names returns the variable names in ascending order.
func (v Variables) Names() []string {
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge copies updates into v, overwriting existing keys and keeping the rest.
// A nil receiver is not allowed; use Clone or make first.
func (v Variables) Merge(updates Variables) {
	for name, value := range updates {
		v[name] = value
	}
}

// Clone returns an independent copy; a nil map clones to an empty one.
func (v Variables) Clone() Variables {
	out := make(Variables, len(v))
	for name, value := range v {
		out[name] = value
	}
	return out
}
