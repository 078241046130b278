package harness

import "encoding/json"

// matchesAttrs reports whether the entity's attrs JSON contains every
// expected key with a matching string rendering. Numbers compare through
// their JSON form, so "25" matches 25.
func matchesAttrs(attrsJSON string, want map[string]string) bool {
	if len(want) == 0 {
		return true
	}
	var attrs map[string]any
	if err := json.Unmarshal([]byte(attrsJSON), &attrs); err != nil {
		return false
	}
	for k, wantVal := range want {
		got, ok := attrs[k]
		if !ok {
			return false
		}
		raw, err := json.Marshal(got)
		if err != nil {
			return false
		}
		rendered := string(raw)
		// Strip JSON string quotes for comparison against the YAML value.
		if len(rendered) >= 2 && rendered[0] == '"' {
			rendered = rendered[1 : len(rendered)-1]
		}
		if rendered != wantVal {
			return false
		}
	}
	return true
}
