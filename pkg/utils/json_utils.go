package utils

import (
	"encoding/json"
	"fmt"
)

// ToRawMessage marshals v for queue publishing.
func ToRawMessage(v interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal struct to JSON: %w", err)
	}
	return data, nil
}
