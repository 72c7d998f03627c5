package titlefmt

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FromJSON converts decoded JSON members to variables. String members keep
// their value; anything else keeps its JSON text, so 30 becomes "30".
func FromJSON(raw map[string]json.RawMessage) Variables {
	vars := make(Variables, len(raw))
	for name, value := range raw {
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			vars[name] = s
			continue
		}
		vars[name] = strings.TrimSpace(string(value))
	}
	return vars
}

// ParseJSON decodes a JSON object into variables using FromJSON.
func ParseJSON(data []byte) (Variables, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode variables: %w", err)
	}
	return FromJSON(raw), nil
}
