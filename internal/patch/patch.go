// Package patch models PATCH request bodies as explicit field masks: each
// updatable attribute is a Field that records whether the client sent it
// and whether it sent null.
package patch

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Field is one optional attribute of a partial update.
type Field[T any] struct {
	Set   bool // the key was present in the body
	Null  bool // the key was present with a null value
	Value T
}

// Of returns a Field carrying v.
func Of[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// Null returns a Field that clears the attribute.
func Null[T any]() Field[T] {
	return Field[T]{Set: true, Null: true}
}

// UnmarshalJSON is only invoked for keys present in the body.
func (f *Field[T]) UnmarshalJSON(b []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		f.Null = true
		return nil
	}
	return json.Unmarshal(b, &f.Value)
}

// Ptr returns nil for an explicit null and a pointer to the value otherwise.
// It is meant for nullable columns.
func (f Field[T]) Ptr() *T {
	if f.Null {
		return nil
	}
	v := f.Value
	return &v
}

// Columns accumulates "col = $n" assignments for an UPDATE statement from a
// fixed allow-list of columns.
type Columns struct {
	Sets []string
	Args []any
}

// Add appends an assignment for col.
func (c *Columns) Add(col string, v any) {
	c.Args = append(c.Args, v)
	c.Sets = append(c.Sets, col+" = $"+strconv.Itoa(len(c.Args)))
}

// Clause joins the assignments for a SET clause.
func (c *Columns) Clause() string {
	return strings.Join(c.Sets, ", ")
}

// Placeholder returns the placeholder for the next argument, used for the
// WHERE clause after all assignments are added.
func (c *Columns) Placeholder(v any) string {
	c.Args = append(c.Args, v)
	return "$" + strconv.Itoa(len(c.Args))
}
