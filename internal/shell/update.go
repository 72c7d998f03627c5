package shell

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgnsrekt/tabtitle/internal/titlefmt"
)

// VariableUpdate is an inbound set of title variables, either addressed to
// one tab (ScopedVariables) or in the older untagged shape
// (LegacyVariables).
type VariableUpdate interface {
	Values() titlefmt.Variables
	variableUpdate()
}

// ScopedVariables applies only on the tab whose identity matches.
type ScopedVariables struct {
	TabIdentity string
	Variables   titlefmt.Variables
}

func (u ScopedVariables) Values() titlefmt.Variables { return u.Variables }
func (ScopedVariables) variableUpdate()              {}

// LegacyVariables carries no identity tag.
type LegacyVariables struct {
	Variables titlefmt.Variables
}

func (u LegacyVariables) Values() titlefmt.Variables { return u.Variables }
func (LegacyVariables) variableUpdate()              {}

// LegacyPolicy decides what happens to untagged updates.
type LegacyPolicy string

const (
	LegacyApply  LegacyPolicy = "apply"
	LegacyIgnore LegacyPolicy = "ignore"
)

// ParseLegacyPolicy accepts "apply" or "ignore" in any case.
func ParseLegacyPolicy(s string) (LegacyPolicy, error) {
	switch p := LegacyPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case LegacyApply, LegacyIgnore:
		return p, nil
	case "":
		return LegacyApply, nil
	default:
		return "", fmt.Errorf("unknown legacy variables policy %q", s)
	}
}

// DecodeVariableUpdate parses {"title_tab_id": ..., "variables": {...}}.
// Only a payload without the title_tab_id key decodes as LegacyVariables; a
// null or empty tag is scoped to an identity no tab has. Non-string values
// are kept in their JSON text form.
func DecodeVariableUpdate(data []byte) (VariableUpdate, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode variable update: %w", err)
	}

	var vars map[string]json.RawMessage
	if raw, ok := fields["variables"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &vars); err != nil {
			return nil, fmt.Errorf("decode variable update: variables: %w", err)
		}
	}
	values := titlefmt.FromJSON(vars)

	rawID, tagged := fields["title_tab_id"]
	if !tagged {
		return LegacyVariables{Variables: values}, nil
	}
	return ScopedVariables{TabIdentity: decodeTag(rawID), Variables: values}, nil
}

// decodeTag reads a title_tab_id value. null and non-string values yield "".
func decodeTag(raw json.RawMessage) string {
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return ""
	}
	return id
}
