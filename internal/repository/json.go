package repository

import (
	"encoding/json"
	"fmt"
)

// toJSON encodes v for a JSONB column
func toJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode json column: %w", err)
	}
	return data, nil
}

// toNullableJSON encodes v as a query argument, passing SQL NULL for a nil pointer
func toNullableJSON[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := toJSON(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// fromJSON decodes a JSONB column; NULL and empty values leave v untouched
func fromJSON(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode json column: %w", err)
	}
	return nil
}

// fromNullableJSON decodes a nullable JSONB column into a new value
func fromNullableJSON[T any](data []byte) (*T, error) {
	if len(data) == 0 {
		return nil, nil
	}
	v := new(T)
	if err := fromJSON(data, v); err != nil {
		return nil, err
	}
	return v, nil
}
