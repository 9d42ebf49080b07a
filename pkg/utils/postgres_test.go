package utils

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert agent: %w", &pgconn.PgError{Code: "23505", ConstraintName: "agents_email_key"})
	constraint, ok := UniqueViolation(err)
	if !ok {
		t.Fatalf("expected unique violation")
	}
	if constraint != "agents_email_key" {
		t.Fatalf("unexpected constraint %q", constraint)
	}

	if _, ok := UniqueViolation(&pgconn.PgError{Code: "23503"}); ok {
		t.Fatalf("foreign key violation is not a unique violation")
	}
	if _, ok := UniqueViolation(errors.New("boom")); ok {
		t.Fatalf("plain error is not a unique violation")
	}
}

func TestNullHelpers(t *testing.T) {
	if NullString("").Valid {
		t.Fatalf("empty string should be NULL")
	}
	if !NullString("x").Valid {
		t.Fatalf("non-empty string should be valid")
	}
	if NullTime(time.Time{}).Valid {
		t.Fatalf("zero time should be NULL")
	}
}

func TestPoolDefaults(t *testing.T) {
	p := PostgresPoolConfig{}.withDefaults()
	if p.MaxOpenConns != 25 || p.PingTimeout != 5*time.Second {
		t.Fatalf("unexpected defaults: %+v", p)
	}
}
