package repository

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx/types"
)

// nullJSON encodes an optional embedded document for a nullable JSONB column.
func nullJSON[T any](value *T) (types.NullJSONText, error) {
	if value == nil {
		return types.NullJSONText{}, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return types.NullJSONText{}, err
	}
	return types.NullJSONText{JSONText: types.JSONText(raw), Valid: true}, nil
}

// decodeJSON is the inverse of nullJSON.
func decodeJSON[T any](column string, raw types.NullJSONText) (*T, error) {
	if !raw.Valid || len(raw.JSONText) == 0 || string(raw.JSONText) == "null" {
		return nil, nil
	}
	var out T
	if err := json.Unmarshal(raw.JSONText, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", column, err)
	}
	return &out, nil
}

func jsonList[T any](values []T) (types.JSONText, error) {
	if values == nil {
		values = []T{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return types.JSONText(raw), nil
}

func decodeList[T any](column string, raw types.JSONText) ([]T, error) {
	out := []T{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", column, err)
	}
	return out, nil
}

func whereClause(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conditions, " AND ")
}

func pageBounds(page, size int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 20
	}
	return size, (page - 1) * size
}
