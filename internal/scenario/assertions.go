package scenario

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/gemplay-qa/gemcheck/internal/expect"
	"github.com/gemplay-qa/gemcheck/internal/jsonpath"
)

// defaultTolerance is used by "approx" when no tolerance is given.
const defaultTolerance = 0.01

// EvaluateBodyAssertions evaluates JSONPath-based body assertions against a
// decoded response body. Paths are checked in sorted order so the first
// reported failure is stable.
func EvaluateBodyAssertions(doc any, assertions map[string]any) error {
	paths := make([]string, 0, len(assertions))
	for p := range assertions {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := evaluateOne(doc, path, assertions[path]); err != nil {
			return err
		}
	}
	return nil
}

func evaluateOne(doc any, path string, expected any) error {
	results, err := jsonpath.Get(doc, path)
	if err != nil {
		return fmt.Errorf("invalid JSONPath %q: %w", path, err)
	}

	if opMap, ok := expected.(map[string]any); ok {
		return evaluateOperators(path, results, opMap)
	}

	if len(results) == 0 {
		return fmt.Errorf("JSONPath %q: no match found", path)
	}
	if !valuesEqual(results[0], expected) {
		return fmt.Errorf("JSONPath %q: expected %v (%T), got %v (%T)", path, expected, expected, results[0], results[0])
	}
	return nil
}

// evaluateOperators processes operator-based assertions like {"eq": v},
// {"gte": n} or {"approx": 0.15, "tolerance": 0.001}.
func evaluateOperators(path string, results []any, ops map[string]any) error {
	names := make([]string, 0, len(ops))
	for op := range ops {
		names = append(names, op)
	}
	sort.Strings(names)

	for _, op := range names {
		expected := ops[op]
		if op == "tolerance" {
			if _, ok := ops["approx"]; !ok {
				return fmt.Errorf("JSONPath %q: 'tolerance' is only valid with 'approx'", path)
			}
			continue
		}
		if op != "exists" && len(results) == 0 {
			return fmt.Errorf("JSONPath %q: no match found for '%s' check", path, op)
		}

		switch op {
		case "exists":
			wantExists, ok := expected.(bool)
			if !ok {
				return fmt.Errorf("JSONPath %q: 'exists' operator requires a boolean value", path)
			}
			hasResults := len(results) > 0 && results[0] != nil
			if wantExists && !hasResults {
				return fmt.Errorf("JSONPath %q: expected to exist but no match found", path)
			}
			if !wantExists && hasResults {
				return fmt.Errorf("JSONPath %q: expected not to exist but found %v", path, results[0])
			}

		case "eq":
			if !valuesEqual(results[0], expected) {
				return fmt.Errorf("JSONPath %q: expected eq %v, got %v", path, expected, results[0])
			}

		case "ne":
			if valuesEqual(results[0], expected) {
				return fmt.Errorf("JSONPath %q: expected ne %v, got %v", path, expected, results[0])
			}

		case "gte", "lte":
			actualNum, expectedNum, err := numericPair(path, op, results[0], expected)
			if err != nil {
				return err
			}
			if op == "gte" && actualNum < expectedNum {
				return fmt.Errorf("JSONPath %q: expected >= %v, got %v", path, expectedNum, actualNum)
			}
			if op == "lte" && actualNum > expectedNum {
				return fmt.Errorf("JSONPath %q: expected <= %v, got %v", path, expectedNum, actualNum)
			}

		case "approx":
			actualNum, expectedNum, err := numericPair(path, op, results[0], expected)
			if err != nil {
				return err
			}
			tol := defaultTolerance
			if raw, ok := ops["tolerance"]; ok {
				if tol, err = toFloat64(raw); err != nil {
					return fmt.Errorf("JSONPath %q: 'tolerance' must be numeric: %w", path, err)
				}
			}
			if !expect.Approx(actualNum, expectedNum, tol) {
				return fmt.Errorf("JSONPath %q: expected %v ± %v, got %v", path, expectedNum, tol, actualNum)
			}

		case "len":
			want, err := toFloat64(expected)
			if err != nil {
				return fmt.Errorf("JSONPath %q: 'len' requires a numeric value: %w", path, err)
			}
			n, ok := lengthOf(results[0])
			if !ok {
				return fmt.Errorf("JSONPath %q: 'len' needs an array, object or string, got %T", path, results[0])
			}
			if float64(n) != want {
				return fmt.Errorf("JSONPath %q: expected length %v, got %d", path, want, n)
			}

		case "contains":
			if err := checkContains(path, results[0], expected); err != nil {
				return err
			}

		case "regex":
			pattern, ok := expected.(string)
			if !ok {
				return fmt.Errorf("JSONPath %q: 'regex' operator requires a string pattern", path)
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return fmt.Errorf("JSONPath %q: invalid regex pattern %q: %w", path, pattern, err)
			}
			actualStr := jsonpath.Format(results[0])
			if !re.MatchString(actualStr) {
				return fmt.Errorf("JSONPath %q: value %q does not match regex %q", path, actualStr, pattern)
			}

		default:
			return fmt.Errorf("JSONPath %q: unknown operator %q", path, op)
		}
	}
	return nil
}

// checkContains matches a substring for scalar values and an element for
// arrays.
func checkContains(path string, actual, expected any) error {
	if list, ok := actual.([]any); ok {
		for _, item := range list {
			if valuesEqual(item, expected) {
				return nil
			}
		}
		return fmt.Errorf("JSONPath %q: array does not contain %v", path, expected)
	}
	actualStr := jsonpath.Format(actual)
	expectedStr := jsonpath.Format(expected)
	if !strings.Contains(actualStr, expectedStr) {
		return fmt.Errorf("JSONPath %q: expected to contain %q, got %q", path, expectedStr, actualStr)
	}
	return nil
}

func numericPair(path, op string, actual, expected any) (float64, float64, error) {
	a, err := toFloat64(actual)
	if err != nil {
		return 0, 0, fmt.Errorf("JSONPath %q: '%s' requires numeric actual value: %w", path, op, err)
	}
	e, err := toFloat64(expected)
	if err != nil {
		return 0, 0, fmt.Errorf("JSONPath %q: '%s' requires numeric expected value: %w", path, op, err)
	}
	return a, e, nil
}

func lengthOf(v any) (int, bool) {
	switch t := v.(type) {
	case []any:
		return len(t), true
	case map[string]any:
		return len(t), true
	case string:
		return len(t), true
	}
	return 0, false
}

// valuesEqual compares two values for equality, handling numeric type
// coercion. Values must be the same kind (both numeric or both
// non-numeric) to be equal.
func valuesEqual(actual, expected any) bool {
	actualNum, aErr := toFloat64(actual)
	expectedNum, eErr := toFloat64(expected)

	if aErr == nil && eErr == nil {
		return actualNum == expectedNum
	}
	if (aErr == nil) != (eErr == nil) {
		return false
	}
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	if reflect.TypeOf(actual).Kind() == reflect.Bool || reflect.TypeOf(expected).Kind() == reflect.Bool {
		return actual == expected
	}
	return jsonpath.Format(actual) == jsonpath.Format(expected)
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("value %v (%T) is not numeric", v, v)
	}
}
