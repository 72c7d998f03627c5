package titlefmt

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// MatchVariables builds variables from a value the way the graph's title
// variable node does.
//
// names is a comma separated list. With an empty pattern the whole value is
// bound to names as given. Otherwise pattern is searched in value and capture
// group i is bound to name i; extra groups or names are ignored. A value that
// does not match yields an empty map.
func MatchVariables(names, value, pattern string) (Variables, error) {
	if pattern == "" {
		return Variables{names: value}, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regular expression: %w", err)
	}

	fields := strings.Split(names, ",")
	vars := Variables{}
	groups := re.FindStringSubmatch(value)
	if groups == nil {
		slog.Debug("title variables: no match", "pattern", pattern, "value", value)
		return vars, nil
	}
	groups = groups[1:]

	n := min(len(groups), len(fields))
	for i := 0; i < n; i++ {
		vars[strings.TrimSpace(fields[i])] = groups[i]
	}
	slog.Debug("title variables: matched", "names", fields, "groups", groups)
	return vars, nil
}
