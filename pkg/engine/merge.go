package engine

import (
	"encoding/json"
	"fmt"
)

// MergeRepresentation reconciles an installed representation with an
// incoming one, field by field. Object fields merge recursively; for any
// other field the incoming value wins unless it is empty (null, "", empty
// array or empty object). Fields only present in the installed
// representation are kept.
func MergeRepresentation[T any](installed json.RawMessage, incoming T) (T, error) {
	var result T
	if len(installed) == 0 {
		return incoming, nil
	}

	var base interface{}
	if err := json.Unmarshal(installed, &base); err != nil {
		return result, fmt.Errorf("failed to decode installed representation: %w", err)
	}

	raw, err := json.Marshal(incoming)
	if err != nil {
		return result, fmt.Errorf("failed to encode incoming representation: %w", err)
	}
	var overlay interface{}
	if err := json.Unmarshal(raw, &overlay); err != nil {
		return result, fmt.Errorf("failed to decode incoming representation: %w", err)
	}

	merged, err := json.Marshal(mergeValues(base, overlay))
	if err != nil {
		return result, fmt.Errorf("failed to encode merged representation: %w", err)
	}
	if err := json.Unmarshal(merged, &result); err != nil {
		return result, fmt.Errorf("failed to decode merged representation: %w", err)
	}
	return result, nil
}

func mergeValues(base, overlay interface{}) interface{} {
	if isEmptyValue(overlay) {
		return base
	}

	baseObj, baseIsObj := base.(map[string]interface{})
	overlayObj, overlayIsObj := overlay.(map[string]interface{})
	if !baseIsObj || !overlayIsObj {
		return overlay
	}

	out := make(map[string]interface{}, len(baseObj)+len(overlayObj))
	for k, v := range baseObj {
		out[k] = v
	}
	for k, v := range overlayObj {
		out[k] = mergeValues(baseObj[k], v)
	}
	return out
}

func isEmptyValue(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []interface{}:
		return len(val) == 0
	case map[string]interface{}:
		return len(val) == 0
	default:
		return false
	}
}
