// Package utils holds small helpers for the nullable columns the stores map
// to pointer fields.
package utils

import "strings"

func Ptr[T any](v T) *T {
	return &v
}

// Deref returns *v, or the zero value when v is nil.
func Deref[T any](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}

// StringOrNil trims s and maps the empty result to a NULL column.
func StringOrNil(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}
