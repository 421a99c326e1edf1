package models

import (
	"bytes"
	"encoding/json"
)

// Optional is a JSON field that records whether it appeared in the payload.
// It distinguishes three states a plain pointer collapses into two: absent
// (Set false), explicit null (Set true, Value nil), and a value (Set true,
// Value non-nil). Partial updates need all three, otherwise "clear this
// field" is unrepresentable.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null returns a present Optional holding an explicit null.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// UnmarshalJSON is only invoked for keys present in the payload, so Set is
// unconditionally true here; absent keys leave the zero Optional untouched.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) {
		o.Value = nil
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}
