// Package targeting evaluates optional flag-level JSON Logic expressions
// against context attributes. An expression acts as a gate in front of a
// flag's rules: when it evaluates falsy the flag resolves to its default.
package targeting

import (
	"bytes"
	"errors"
	"strings"

	"github.com/diegoholiveira/jsonlogic/v3"
	"github.com/goccy/go-json"
)

// ErrInvalidExpression is returned when an expression is not valid JSON Logic.
var ErrInvalidExpression = errors.New("invalid expression: not valid JSON Logic")

// ErrEmptyExpression is returned when an expression is empty or whitespace.
var ErrEmptyExpression = errors.New("invalid expression: empty or whitespace")

// Evaluate applies a JSON Logic expression to the context attributes and
// reports whether the result is truthy.
func Evaluate(expression string, attrs map[string]any) (bool, error) {
	if strings.TrimSpace(expression) == "" {
		return false, ErrEmptyExpression
	}

	data, err := json.Marshal(attrs)
	if err != nil {
		return false, err
	}

	var out bytes.Buffer
	if err := jsonlogic.Apply(strings.NewReader(expression), bytes.NewReader(data), &out); err != nil {
		return false, ErrInvalidExpression
	}

	var result any
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		return false, err
	}
	return isTruthy(result), nil
}

// Validate checks that an expression parses and applies as JSON Logic.
func Validate(expression string) error {
	if strings.TrimSpace(expression) == "" {
		return ErrEmptyExpression
	}
	var out bytes.Buffer
	if err := jsonlogic.Apply(strings.NewReader(expression), strings.NewReader("{}"), &out); err != nil {
		return ErrInvalidExpression
	}
	return nil
}

// isTruthy follows JavaScript-like truthiness rules.
func isTruthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}
