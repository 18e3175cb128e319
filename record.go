package urconf

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// record is a single raw object from an API response. Values are kept as
// decoded by encoding/json with UseNumber, so numeric ids preserve their
// exact textual representation (leading zeroes are significant).
type record map[string]any

func (r record) has(key string) bool {
	_, ok := r[key]
	return ok
}

// str coerces the value under key to a string. A missing or null field
// yields the empty string.
func (r record) str(key string) (string, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", nil
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	}
	return "", fmt.Errorf("cannot coerce %T to string", v)
}

// num coerces the value under key to an int. A missing, null or empty field
// yields zero.
func (r record) num(key string) (int, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, nil
	}
	switch t := v.(type) {
	case json.Number:
		n, err := strconv.Atoi(t.String())
		if err != nil {
			return 0, fmt.Errorf("cannot coerce %q to int", t.String())
		}
		return n, nil
	case string:
		if t == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0, fmt.Errorf("cannot coerce %q to int", t)
		}
		return n, nil
	}
	return 0, fmt.Errorf("cannot coerce %T to int", v)
}

// fieldErr wraps a coercion error into a ValidationError for an entity kind.
func fieldErr(kind, field string, err error) *ValidationError {
	return &ValidationError{Kind: kind, Field: field, Reason: err.Error()}
}
