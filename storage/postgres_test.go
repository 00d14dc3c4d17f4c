package storage

import (
	"context"
	"errors"
	"testing"
)

// Validation runs before any query is issued, so no live database is
// needed for these.

func TestPostgresRejectsBadTableName(t *testing.T) {
	s := NewPostgres(nil)
	_, err := s.Get(context.Background(), "shares; DROP TABLE users", "SBER")
	if err == nil {
		t.Fatal("expected error for bad table name")
	}
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *storage.Error", err)
	}
}

func TestPostgresRejectsBadFilterField(t *testing.T) {
	s := NewPostgres(nil)
	_, err := s.Scan(context.Background(), "shares", Eq("ticker' OR '1'='1", "SBER"), nil)
	if err == nil {
		t.Fatal("expected error for bad filter field")
	}
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *storage.Error", err)
	}
}
