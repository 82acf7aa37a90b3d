package plugin

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrArgIndex is returned when an argument index is out of range.
	ErrArgIndex = errors.New("argument index out of range")
	// ErrArgType is returned when an argument cannot be read as the requested type.
	ErrArgType = errors.New("argument has wrong type")
)

// Args holds the positional JSON arguments of an exec request.
type Args []json.RawMessage

// Len returns the number of arguments.
func (a Args) Len() int {
	return len(a)
}

func (a Args) raw(i int) ([]byte, error) {
	if i < 0 || i >= len(a) {
		return nil, fmt.Errorf("args[%d]: %w", i, ErrArgIndex)
	}
	v := bytes.TrimSpace(a[i])
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return nil, fmt.Errorf("args[%d] is null: %w", i, ErrArgType)
	}
	return v, nil
}

// String returns argument i as a string. Non-string values are returned as
// their JSON text.
func (a Args) String(i int) (string, error) {
	v, err := a.raw(i)
	if err != nil {
		return "", err
	}
	if v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", fmt.Errorf("args[%d]: %w", i, ErrArgType)
		}
		return s, nil
	}
	return string(v), nil
}

// Bool returns argument i as a boolean. The strings "true" and "false" are
// accepted in any case.
func (a Args) Bool(i int) (bool, error) {
	v, err := a.raw(i)
	if err != nil {
		return false, err
	}
	switch {
	case bytes.Equal(v, []byte("true")):
		return true, nil
	case bytes.Equal(v, []byte("false")):
		return false, nil
	case v[0] == '"':
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			switch strings.ToLower(s) {
			case "true":
				return true, nil
			case "false":
				return false, nil
			}
		}
	}
	return false, fmt.Errorf("args[%d] is not a boolean: %w", i, ErrArgType)
}

// Float returns argument i as a float64. Numeric strings are accepted.
func (a Args) Float(i int) (float64, error) {
	v, err := a.raw(i)
	if err != nil {
		return 0, err
	}
	var s string
	if v[0] == '"' {
		if err := json.Unmarshal(v, &s); err != nil {
			return 0, fmt.Errorf("args[%d]: %w", i, ErrArgType)
		}
		s = strings.TrimSpace(s)
	} else {
		s = string(v)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("args[%d] is not a number: %w", i, ErrArgType)
	}
	return f, nil
}

// Object returns argument i as a JSON object.
func (a Args) Object(i int) (map[string]json.RawMessage, error) {
	v, err := a.raw(i)
	if err != nil {
		return nil, err
	}
	if v[0] != '{' {
		return nil, fmt.Errorf("args[%d] is not an object: %w", i, ErrArgType)
	}
	obj := make(map[string]json.RawMessage)
	if err := json.Unmarshal(v, &obj); err != nil {
		return nil, fmt.Errorf("args[%d] is not an object: %w", i, ErrArgType)
	}
	return obj, nil
}
