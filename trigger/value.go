package trigger

import (
	"fmt"
	"strconv"
)

// Script values are string, literal, int64, bool, or nil.

// literal is a string written in the script itself, before any expansion.
type literal string

func truthy(v any) bool {
	switch v := v.(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case string:
		return v != ""
	case literal:
		return v != ""
	}
	return false
}

func stringify(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case literal:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

func describe(v any) string {
	switch v := v.(type) {
	case string:
		return strconv.Quote(v)
	case literal:
		return strconv.Quote(string(v))
	case nil:
		return "null"
	default:
		return fmt.Sprint(v)
	}
}
