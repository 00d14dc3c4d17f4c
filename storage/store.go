// Package storage defines the schema-less key-value store contract the
// repository layer is built on: one table per entity type, one hash key
// per table, documents with no fixed schema.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Record is a single stored document. Values survive a JSON round-trip,
// so numbers read back as float64 and decimals as strings.
type Record = map[string]any

// Key is the hash-key value of a record, always encoded as a string.
type Key string

// ErrNotFound reports that the requested key is absent from the table.
var ErrNotFound = errors.New("storage: item not found")

// Error wraps a store failure with the table and operation that produced it.
type Error struct {
	Table string
	Op    string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Code returns a stable identifier for log err_code derivation.
func (e *Error) Code() string { return "STORAGE_ERROR" }

func wrapErr(table, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return &Error{Table: table, Op: op, Err: err}
}

// FieldOpKind enumerates supported field update operations.
type FieldOpKind int

const (
	// OpSet writes a value at the field path, creating the final key if absent.
	OpSet FieldOpKind = iota
	// OpRemove deletes the final key at the field path.
	OpRemove
)

// FieldOp is a single SET or REMOVE targeting a dotted field path.
// A path like "tickers.SBER" addresses one key inside a map-valued
// field without replacing its siblings.
type FieldOp struct {
	Kind  FieldOpKind
	Path  string
	Value any
}

// Set builds a SET field operation.
func Set(path string, value any) FieldOp {
	return FieldOp{Kind: OpSet, Path: path, Value: value}
}

// Remove builds a REMOVE field operation.
func Remove(path string) FieldOp {
	return FieldOp{Kind: OpRemove, Path: path}
}

// SplitPath breaks a dotted field path into its segments.
func SplitPath(path string) []string {
	return strings.Split(path, ".")
}

// Filter restricts a scan to records whose field matches one of the values.
// A single value is an equality check, several values a membership check.
type Filter struct {
	Field  string
	Values []any
}

// Eq builds an equality filter.
func Eq(field string, value any) *Filter {
	return &Filter{Field: field, Values: []any{value}}
}

// In builds a membership filter.
func In(field string, values ...any) *Filter {
	return &Filter{Field: field, Values: values}
}

// Store is the adapter contract over the underlying key-value engine.
type Store interface {
	// Get fetches a record by hash key; ErrNotFound when absent.
	Get(ctx context.Context, table string, key Key) (Record, error)
	// Put fully replaces the record stored under key.
	Put(ctx context.Context, table string, key Key, rec Record) error
	// Scan returns records matching the filter (all records when nil),
	// optionally projected to the named fields. Order is store-defined.
	Scan(ctx context.Context, table string, filter *Filter, projection []string) ([]Record, error)
	// Update applies SET/REMOVE field operations to an existing record.
	Update(ctx context.Context, table string, key Key, ops []FieldOp) error
	// EnsureTable idempotently creates the table and blocks until it is usable.
	EnsureTable(ctx context.Context, table string) error
}

// project returns a copy of rec limited to the named fields.
// Shared by implementations so both sides of a test behave identically.
func project(rec Record, fields []string) Record {
	if len(fields) == 0 {
		return rec
	}
	out := make(Record, len(fields))
	for _, f := range fields {
		if v, ok := rec[f]; ok {
			out[f] = v
		}
	}
	return out
}

func validTableName(name string) bool {
	return validIdent(name)
}

// validFieldName guards document field names before they are
// interpolated into SQL predicates.
func validFieldName(name string) bool {
	return validIdent(name)
}

func validIdent(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
