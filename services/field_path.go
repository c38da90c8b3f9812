package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/theory/jsonpath"
)

// alternativesSeparator separates alternative JSON paths in a textual
// form of fieldPath.
const alternativesSeparator = "||"

// fieldPath is a set of alternative JSON paths of the same field.
// Services tend to rename fields between API versions: the first path
// which selects a meaningful value wins.
type fieldPath []*jsonpath.Path

func (f fieldPath) value(doc interface{}) (interface{}, bool) {
	for _, path := range f {
		for _, node := range path.Select(doc) {
			if node != nil {
				return node, true
			}
		}
	}

	return nil, false
}

func (f fieldPath) String(doc interface{}) string {
	for _, path := range f {
		for _, node := range path.Select(doc) {
			if value := scalarToString(node); value != "" {
				return value
			}
		}
	}

	return ""
}

func (f fieldPath) Float(doc interface{}) (float64, bool) {
	for _, path := range f {
		for _, node := range path.Select(doc) {
			if value, ok := scalarToFloat(node); ok {
				return value, true
			}
		}
	}

	return 0, false
}

func scalarToString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}

	return ""
}

func scalarToFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)

		return parsed, err == nil
	}

	return 0, false
}

func isTruthy(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0
	case []interface{}:
		return len(v) > 0
	case map[string]interface{}:
		return len(v) > 0
	}

	return true
}

func parseFieldPath(text string) (fieldPath, error) {
	var rv fieldPath

	for _, chunk := range strings.Split(text, alternativesSeparator) {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}

		path, err := jsonpath.Parse(chunk)
		if err != nil {
			return nil, fmt.Errorf("incorrect json path %s: %w", chunk, err)
		}

		rv = append(rv, path)
	}

	return rv, nil
}

func mustFieldPath(paths ...string) fieldPath {
	rv := make(fieldPath, len(paths))

	for i, v := range paths {
		rv[i] = jsonpath.MustParse(v)
	}

	return rv
}
