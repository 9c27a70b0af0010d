package executor

import (
	"encoding/json"
	"fmt"
)

// applyTransform maps a raw invocation output through one of the named pure
// transforms. The compiler has already rejected unknown names.
func applyTransform(name string, value any) (any, error) {
	switch name {
	case "", "identity":
		return value, nil
	case "to_string":
		return stringify(value), nil
	case "to_json":
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("to_json transform: %w", err)
		}
		return string(data), nil
	case "extract_text":
		if m, ok := value.(map[string]any); ok {
			if text, ok := m["text"]; ok {
				return text, nil
			}
		}
		return stringify(value), nil
	default:
		return nil, fmt.Errorf("unknown transform %q", name)
	}
}

// applyFilter gates whether the transformed value reaches the store. It
// returns the (possibly normalized) value and whether to keep it.
func applyFilter(name string, value any) (any, bool) {
	switch name {
	case "":
		return value, true
	case "non_empty":
		switch v := value.(type) {
		case nil:
			return nil, false
		case string:
			return v, v != ""
		case []any:
			kept := make([]any, 0, len(v))
			for _, item := range v {
				if item == nil || item == "" {
					continue
				}
				kept = append(kept, item)
			}
			return kept, len(kept) > 0
		case map[string]any:
			return v, len(v) > 0
		default:
			return v, true
		}
	case "unique":
		if items, ok := value.([]any); ok {
			seen := make(map[string]bool, len(items))
			kept := make([]any, 0, len(items))
			for _, item := range items {
				key := stringify(item)
				if seen[key] {
					continue
				}
				seen[key] = true
				kept = append(kept, item)
			}
			return kept, true
		}
		return value, true
	default:
		return value, true
	}
}

func stringify(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}
