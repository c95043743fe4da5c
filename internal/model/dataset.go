package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Row is one query result row keyed by column name.
type Row map[string]interface{}

// Dataset is an ordered collection of rows from one query result.
type Dataset []Row

// Datasets maps metric name to its query result.
type Datasets map[string]Dataset

// Float returns a numeric column value. Numeric strings are accepted.
func (r Row) Float(column string) (float64, error) {
	val, ok := r[column]
	if !ok {
		return 0, fmt.Errorf("missing column %q", column)
	}

	switch typed := val.(type) {
	case float64:
		return typed, nil
	case float32:
		return float64(typed), nil
	case int:
		return float64(typed), nil
	case int64:
		return float64(typed), nil
	case uint64:
		return float64(typed), nil
	case json.Number:
		f, err := typed.Float64()
		if err != nil {
			return 0, fmt.Errorf("column %q: %w", column, err)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0, fmt.Errorf("column %q: %w", column, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("column %q: unexpected type %T", column, val)
	}
}

// String returns a column value rendered as text.
func (r Row) String(column string) (string, error) {
	val, ok := r[column]
	if !ok {
		return "", fmt.Errorf("missing column %q", column)
	}
	switch typed := val.(type) {
	case string:
		return typed, nil
	case nil:
		return "", nil
	default:
		return fmt.Sprintf("%v", typed), nil
	}
}

// Find returns the first row whose column equals value.
func (d Dataset) Find(column, value string) (Row, bool) {
	for _, row := range d {
		s, err := row.String(column)
		if err != nil {
			continue
		}
		if s == value {
			return row, true
		}
	}
	return nil, false
}

// First returns the first row of the dataset.
func (d Dataset) First() (Row, bool) {
	if len(d) == 0 {
		return nil, false
	}
	return d[0], true
}
