package ir

import (
	"fmt"
	"reflect"
)

// TrimArgs returns args without trailing nil entries, so that
// f(a) and f(a, nil) address the same resolution. Nils in the middle of the
// tuple are kept. The input slice is never modified.
func TrimArgs(args []any) []any {
	end := len(args)
	for end > 0 && isNil(args[end-1]) {
		end--
	}
	if end == 0 {
		return []any{}
	}
	return args[:end:end]
}

// isNil reports whether v converts to Null: untyped nil, Null, and nil
// pointers, maps and slices.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	if _, ok := v.(Null); ok {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// ArgsKey returns the structural identity of an argument tuple: the
// canonical JSON of the trimmed tuple. Two tuples that are deep-equal after
// trimming always map to the same key.
func ArgsKey(args []any) (string, error) {
	data, err := MarshalCanonical(TrimArgs(args))
	if err != nil {
		return "", fmt.Errorf("argument key: %w", err)
	}
	return string(data), nil
}

// MustArgsKey is ArgsKey for arguments known to be keyable. It panics otherwise.
func MustArgsKey(args ...any) string {
	key, err := ArgsKey(args)
	if err != nil {
		panic(err)
	}
	return key
}
