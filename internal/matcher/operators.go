package matcher

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/TimurManjosov/flagship-go-sdk/internal/rules"
)

// regexCache keeps compiled patterns for the hot evaluation path.
// Expected value type is *regexp.Regexp.
var regexCache sync.Map

func equals(c rules.Constraint, ctxValue any) (Verdict, *InvalidConstraint) {
	switch want := c.Value.(type) {
	case string:
		got, ok := toString(ctxValue)
		if !ok {
			return Invalid, invalid(c, "context value is not a string")
		}
		// String comparisons are case-sensitive.
		return boolVerdict(got == want), nil
	case bool:
		got, ok := ctxValue.(bool)
		if !ok {
			return Invalid, invalid(c, "context value is not a bool")
		}
		return boolVerdict(got == want), nil
	default:
		want64, ok := toFloat64(c.Value)
		if !ok {
			return Invalid, invalid(c, "comparison value is not a scalar")
		}
		got, ok := coerceFloat64(ctxValue)
		if !ok {
			return Invalid, invalid(c, "context value is not numeric")
		}
		return boolVerdict(got == want64), nil
	}
}

func contains(c rules.Constraint, ctxValue any) (Verdict, *InvalidConstraint) {
	want, ok := c.Value.(string)
	if !ok {
		return Invalid, invalid(c, "comparison value is not a string")
	}
	got, ok := toString(ctxValue)
	if !ok {
		return Invalid, invalid(c, "context value is not a string")
	}
	return boolVerdict(strings.Contains(got, want)), nil
}

func inList(c rules.Constraint, ctxValue any) (Verdict, *InvalidConstraint) {
	list, ok := toStringSlice(c.Value)
	if !ok {
		return Invalid, invalid(c, "comparison value is not a string list")
	}
	got, ok := toString(ctxValue)
	if !ok {
		return Invalid, invalid(c, "context value is not a string")
	}
	for _, item := range list {
		if got == item {
			return Match, nil
		}
	}
	return NoMatch, nil
}

func numericCompare(c rules.Constraint, ctxValue any, cmp func(a, b float64) bool) (Verdict, *InvalidConstraint) {
	want, ok := coerceFloat64(c.Value)
	if !ok {
		return Invalid, invalid(c, "comparison value cannot be parsed as a number")
	}
	got, ok := coerceFloat64(ctxValue)
	if !ok {
		return Invalid, invalid(c, "context value cannot be parsed as a number")
	}
	return boolVerdict(cmp(got, want)), nil
}

// semverCompare matches when the context version compares to the stored
// version in the given direction (+1 greater, -1 less).
func semverCompare(c rules.Constraint, ctxValue any, direction int) (Verdict, *InvalidConstraint) {
	wantStr, ok := c.Value.(string)
	if !ok {
		return Invalid, invalid(c, "comparison value is not a string")
	}
	gotStr, ok := toString(ctxValue)
	if !ok {
		return Invalid, invalid(c, "context value is not a string")
	}
	want, err := semver.NewVersion(wantStr)
	if err != nil {
		return Invalid, invalid(c, "comparison value is not a semantic version")
	}
	got, err := semver.NewVersion(gotStr)
	if err != nil {
		return Invalid, invalid(c, "context value is not a semantic version")
	}
	return boolVerdict(got.Compare(want) == direction), nil
}

func regexMatch(c rules.Constraint, ctxValue any) (Verdict, *InvalidConstraint) {
	pattern, ok := c.Value.(string)
	if !ok {
		return Invalid, invalid(c, "comparison value is not a string")
	}
	got, ok := toString(ctxValue)
	if !ok {
		return Invalid, invalid(c, "context value is not a string")
	}
	rx, ok := compiledRegex(pattern)
	if !ok {
		return Invalid, invalid(c, "comparison value is not a valid regular expression")
	}
	return boolVerdict(rx.MatchString(got)), nil
}

func compiledRegex(pattern string) (*regexp.Regexp, bool) {
	if cached, ok := regexCache.Load(pattern); ok {
		rx, ok := cached.(*regexp.Regexp)
		return rx, ok
	}
	rx, err := regexp.Compile(pattern)
	if err != nil {
		return nil, false
	}
	regexCache.Store(pattern, rx)
	return rx, true
}

func toString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// coerceFloat64 additionally accepts numeric string representations,
// since host runtimes often marshal every context attribute as a string.
func coerceFloat64(v any) (float64, bool) {
	if f, ok := toFloat64(v); ok {
		return f, true
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

func toStringSlice(v any) ([]string, bool) {
	switch values := v.(type) {
	case []string:
		return values, true
	case []any:
		result := make([]string, 0, len(values))
		for _, item := range values {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			result = append(result, s)
		}
		return result, true
	default:
		return nil, false
	}
}
