// Package jsonpath evaluates a small JSONPath subset against decoded JSON.
//
// Supported forms: $, $.field, $.field.nested, $.array[0], $.array[-1],
// $.array[*].field and $[0] on a top-level array.
package jsonpath

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Parse decodes a JSON byte slice into a generic structure.
func Parse(body []byte) (any, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("response body is not valid JSON: %w", err)
	}
	return doc, nil
}

// Get evaluates path against doc and returns every matching value.
// A path that simply does not match returns an empty slice and no error;
// only malformed paths are errors.
func Get(doc any, path string) ([]any, error) {
	if !strings.HasPrefix(path, "$") {
		return nil, fmt.Errorf("JSONPath must start with $: %q", path)
	}

	rest := strings.TrimPrefix(path[1:], ".")
	current := []any{doc}

	for _, seg := range splitSegments(rest) {
		if seg == "" {
			continue
		}
		field, indexes, err := parseSegment(seg)
		if err != nil {
			return nil, err
		}

		var next []any
		for _, node := range current {
			if field != "" {
				val, ok := getField(node, field)
				if !ok {
					continue
				}
				node = val
			}
			next = append(next, applyIndexes(node, indexes)...)
		}
		current = next
		if len(current) == 0 {
			return nil, nil
		}
	}

	return current, nil
}

// First returns the first value matched by path in doc.
func First(doc any, path string) (any, bool, error) {
	results, err := Get(doc, path)
	if err != nil {
		return nil, false, err
	}
	if len(results) == 0 {
		return nil, false, nil
	}
	return results[0], true, nil
}

// Format renders a decoded JSON value as text. Numbers never use
// exponent form, so an id of 1234567 stays "1234567".
func Format(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case json.Number:
		return t.String()
	}
	return fmt.Sprintf("%v", v)
}

// wildcard marks a [*] index.
const wildcard = -1 << 31

// parseSegment splits "items[0][*]" into "items" and its index list.
func parseSegment(seg string) (string, []int, error) {
	idx := strings.Index(seg, "[")
	if idx < 0 {
		return seg, nil, nil
	}
	field := seg[:idx]
	var indexes []int
	rest := seg[idx:]
	for rest != "" {
		if !strings.HasPrefix(rest, "[") {
			return "", nil, fmt.Errorf("invalid array index in %q", seg)
		}
		end := strings.Index(rest, "]")
		if end < 0 {
			return "", nil, fmt.Errorf("unterminated array index in %q", seg)
		}
		inner := rest[1:end]
		if inner == "*" {
			indexes = append(indexes, wildcard)
		} else {
			n, err := strconv.Atoi(inner)
			if err != nil {
				return "", nil, fmt.Errorf("invalid array index in %q: %w", seg, err)
			}
			indexes = append(indexes, n)
		}
		rest = rest[end+1:]
	}
	return field, indexes, nil
}

func applyIndexes(node any, indexes []int) []any {
	nodes := []any{node}
	for _, i := range indexes {
		var next []any
		for _, n := range nodes {
			arr, ok := n.([]any)
			if !ok {
				continue
			}
			if i == wildcard {
				next = append(next, arr...)
				continue
			}
			at := i
			if at < 0 {
				at += len(arr)
			}
			if at < 0 || at >= len(arr) {
				continue
			}
			next = append(next, arr[at])
		}
		nodes = next
	}
	return nodes
}

// splitSegments splits "field.nested[0].name" on dots outside brackets.
func splitSegments(path string) []string {
	var segments []string
	var current strings.Builder
	depth := 0

	for _, ch := range path {
		switch ch {
		case '[':
			depth++
			current.WriteRune(ch)
		case ']':
			depth--
			current.WriteRune(ch)
		case '.':
			if depth == 0 {
				segments = append(segments, current.String())
				current.Reset()
			} else {
				current.WriteRune(ch)
			}
		default:
			current.WriteRune(ch)
		}
	}

	if current.Len() > 0 {
		segments = append(segments, current.String())
	}
	return segments
}

func getField(doc any, field string) (any, bool) {
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, false
	}
	val, ok := m[field]
	return val, ok
}
