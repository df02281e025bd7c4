// Package patch implements partial updates: request fields that remember
// whether they were sent, and an ordered set of column assignments that can
// be rendered as SQL or merged into a struct.
package patch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Field is a request value that tracks presence and explicit null.
// A key missing from the JSON body leaves Set false.
type Field[T any] struct {
	Value T
	Set   bool
	Null  bool
}

// Value returns a present, non-null field.
func Value[T any](v T) Field[T] {
	return Field[T]{Value: v, Set: true}
}

// Null returns a present field holding JSON null.
func Null[T any]() Field[T] {
	return Field[T]{Set: true, Null: true}
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		f.Value = zero
		f.Null = true
		return nil
	}
	f.Null = false
	return json.Unmarshal(data, &f.Value)
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Set || f.Null {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Present reports whether the field carries a non-null value.
func (f Field[T]) Present() bool {
	return f.Set && !f.Null
}

// Entry is one column assignment. A nil Value writes NULL.
type Entry struct {
	Column string
	Value  any
}

// Patch is an ordered list of column assignments. Setting a column twice
// replaces the earlier value in place.
type Patch struct {
	entries []Entry
}

// Set assigns v to column.
func (p *Patch) Set(column string, v any) *Patch {
	for i := range p.entries {
		if p.entries[i].Column == column {
			p.entries[i].Value = v
			return p
		}
	}
	p.entries = append(p.entries, Entry{Column: column, Value: v})
	return p
}

// SetNull assigns NULL to column.
func (p *Patch) SetNull(column string) *Patch {
	return p.Set(column, nil)
}

func (p Patch) Empty() bool {
	return len(p.entries) == 0
}

func (p Patch) Len() int {
	return len(p.entries)
}

// Entries returns a copy of the assignments in insertion order.
func (p Patch) Entries() []Entry {
	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Get returns the value assigned to column, if any.
func (p Patch) Get(column string) (any, bool) {
	for _, e := range p.entries {
		if e.Column == column {
			return e.Value, true
		}
	}
	return nil, false
}

// Add records f under column when the client sent it.
func Add[T any](p *Patch, column string, f Field[T]) {
	if !f.Set {
		return
	}
	if f.Null {
		p.SetNull(column)
		return
	}
	p.Set(column, f.Value)
}

// AddFunc is Add with a conversion applied to non-null values.
func AddFunc[T, U any](p *Patch, column string, f Field[T], conv func(T) (U, error)) error {
	if !f.Set {
		return nil
	}
	if f.Null {
		p.SetNull(column)
		return nil
	}
	v, err := conv(f.Value)
	if err != nil {
		return err
	}
	p.Set(column, v)
	return nil
}

// UpdateSQL renders an UPDATE statement for table that applies the patch to
// the row whose keyColumn equals key, bumps updated_at, and returns the
// listed columns. Column names come from code, never from request input.
func (p Patch) UpdateSQL(table, keyColumn string, key any, returning string) (string, []any) {
	updates := make([]string, 0, len(p.entries)+1)
	args := make([]any, 0, len(p.entries)+1)
	argIndex := 1

	for _, e := range p.entries {
		updates = append(updates, fmt.Sprintf("%s = $%d", e.Column, argIndex))
		args = append(args, e.Value)
		argIndex++
	}
	updates = append(updates, "updated_at = NOW()")
	args = append(args, key)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d", table, strings.Join(updates, ", "), keyColumn, argIndex)
	if returning != "" {
		query += " RETURNING " + returning
	}
	return query, args
}

// Merge applies the patch to dst, matching columns against `db` struct tags.
// Pointer fields accept either the pointer type or its element type.
func Merge[T any](dst *T, p Patch) error {
	return ApplyTo(dst, p)
}

// ApplyTo is the untyped form of Merge. dst must be a pointer to a struct.
func ApplyTo(dst any, p Patch) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("patch: destination must be a non-nil struct pointer, got %T", dst)
	}
	sv := rv.Elem()
	fields := columnIndex(sv.Type())

	for _, e := range p.entries {
		idx, ok := fields[e.Column]
		if !ok {
			return fmt.Errorf("patch: %s has no column %q", sv.Type().Name(), e.Column)
		}
		if err := assign(sv.Field(idx), e.Value); err != nil {
			return fmt.Errorf("patch: column %q: %w", e.Column, err)
		}
	}
	return nil
}

func columnIndex(t reflect.Type) map[string]int {
	out := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		out[strings.Split(tag, ",")[0]] = i
	}
	return out
}

func assign(field reflect.Value, v any) error {
	if v == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	val := reflect.ValueOf(v)
	ft := field.Type()

	switch {
	case val.Type().AssignableTo(ft):
		field.Set(val)
	case ft.Kind() == reflect.Pointer && val.Type().AssignableTo(ft.Elem()):
		ptr := reflect.New(ft.Elem())
		ptr.Elem().Set(val)
		field.Set(ptr)
	case val.Kind() == reflect.Pointer && !val.IsNil() && val.Elem().Type().AssignableTo(ft):
		field.Set(val.Elem())
	default:
		return fmt.Errorf("cannot assign %s to %s", val.Type(), ft)
	}
	return nil
}
