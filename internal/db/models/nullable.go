package models

import "encoding/json"

// Nullable is an optional value that tells "not provided" apart from an explicit
// null. It is used for update payloads on nullable columns such as a task's
// assignee or due date.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

// UnmarshalJSON is only invoked when the key is present, so Set records presence.
func (n *Nullable[T]) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// Some returns a Nullable holding v.
func Some[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Value: &v}
}

// Null returns a Nullable that clears the column.
func Null[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

// SQLValue returns the value to bind, nil meaning NULL.
func (n Nullable[T]) SQLValue() any {
	if n.Value == nil {
		return nil
	}
	return *n.Value
}
