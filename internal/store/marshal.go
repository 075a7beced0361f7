package store

import (
	"encoding/json"
	"fmt"
)

// marshalNames converts a catalog name list to JSON TEXT for storage.
// A nil list is stored as an empty array.
func marshalNames(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	data, err := json.Marshal(names)
	if err != nil {
		return "", fmt.Errorf("marshal catalog names: %w", err)
	}
	return string(data), nil
}

// unmarshalNames parses JSON TEXT to a catalog name list. Returns an empty
// slice (not nil) for an empty array.
func unmarshalNames(data string) ([]string, error) {
	names := []string{}
	if data == "" {
		return names, nil
	}
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, fmt.Errorf("unmarshal catalog names: %w", err)
	}
	return names, nil
}
