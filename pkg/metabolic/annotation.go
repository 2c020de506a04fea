package metabolic

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Annotation maps a namespace (e.g. "chebi", "bigg.metabolite") to one or
// more external identifiers. On the wire a value may be a single string or a
// list of strings.
type Annotation map[string][]string

func (a *Annotation) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Annotation, len(raw))
	for key, value := range raw {
		var single string
		if err := json.Unmarshal(value, &single); err == nil {
			out[key] = []string{single}
			continue
		}
		var many []string
		if err := json.Unmarshal(value, &many); err != nil {
			return fmt.Errorf("annotation %q: expected string or list of strings", key)
		}
		out[key] = many
	}
	*a = out
	return nil
}

func (a Annotation) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(a))
	for key, values := range a {
		if len(values) == 1 {
			out[key] = values[0]
		} else {
			out[key] = values
		}
	}
	return json.Marshal(out)
}

// Has reports whether namespace carries identifier. Both comparisons are
// case-insensitive.
func (a Annotation) Has(namespace, identifier string) bool {
	for key, values := range a {
		if !strings.EqualFold(key, namespace) {
			continue
		}
		for _, v := range values {
			if strings.EqualFold(v, identifier) {
				return true
			}
		}
	}
	return false
}

// Namespaces returns the annotation keys in sorted order.
func (a Annotation) Namespaces() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (a Annotation) clone() Annotation {
	if a == nil {
		return nil
	}
	out := make(Annotation, len(a))
	for k, v := range a {
		out[k] = append([]string(nil), v...)
	}
	return out
}
