package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassifyStorageError_ConnectionClassIsTransient(t *testing.T) {
	for _, code := range []string{"08006", "40001", "53300", "57P01", "58000"} {
		err := classifyStorageError(&pgconn.PgError{Code: code})
		if !IsTransient(err) {
			t.Fatalf("expected code %s to classify as transient, got %v", code, err)
		}
	}
}

func TestClassifyStorageError_ConstraintAndSyntaxAreNot(t *testing.T) {
	for _, code := range []string{"23505", "23503", "42601", "22P02"} {
		err := classifyStorageError(&pgconn.PgError{Code: code})
		if IsTransient(err) {
			t.Fatalf("expected code %s to stay non-retryable", code)
		}
	}
}

func TestClassifyStorageError_NetworkFailureIsTransient(t *testing.T) {
	err := classifyStorageError(&net.OpError{Op: "dial", Err: errors.New("connection refused")})
	if !IsTransient(err) {
		t.Fatalf("expected network failure to classify as transient, got %v", err)
	}
}

func TestClassifyStorageError_DroppedConnectionIsTransient(t *testing.T) {
	if !IsTransient(classifyStorageError(fmt.Errorf("read message: %w", io.ErrUnexpectedEOF))) {
		t.Fatal("expected dropped connection to classify as transient")
	}
}

func TestClassifyStorageError_ScanFailureIsNotRetryable(t *testing.T) {
	// A malformed stored row must surface, not requeue forever.
	err := classifyStorageError(errors.New("can't scan into dest[3]: cannot scan NULL into *string"))
	if IsTransient(err) {
		t.Fatalf("expected scan failure to stay non-retryable, got %v", err)
	}
}

func TestClassifyStorageError_ContextCancellationIsTransient(t *testing.T) {
	if !IsTransient(classifyStorageError(context.Canceled)) {
		t.Fatal("expected context cancellation to classify as transient")
	}
	if !IsTransient(classifyStorageError(context.DeadlineExceeded)) {
		t.Fatal("expected context deadline to classify as transient")
	}
}

func TestClassifyStorageError_NilStaysNil(t *testing.T) {
	if classifyStorageError(nil) != nil {
		t.Fatal("expected nil error to stay nil")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("expected 23505 to report as unique violation")
	}
	if isUniqueViolation(errors.New("plain error")) {
		t.Fatal("expected plain error not to report as unique violation")
	}
}

func TestEstateSchemaName(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	got := estateSchemaName(id)
	want := "estate_11111111222233334444555555555555"
	if got != want {
		t.Fatalf("expected schema name %q, got %q", want, got)
	}
}
