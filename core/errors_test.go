package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestError_HTTPStatusMapping(t *testing.T) {
	tests := []struct {
		status StatusCode
		want   int
	}{
		{InvalidArgument, http.StatusBadRequest},
		{NotFound, http.StatusNotFound},
		{PermissionDenied, http.StatusForbidden},
		{Unauthenticated, http.StatusUnauthorized},
		{Unavailable, http.StatusServiceUnavailable},
		{Internal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			if got := NewError(tt.status, "boom").HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStatusCode_WireName(t *testing.T) {
	if got := Internal.WireName(); got != "INTERNAL_SERVER_ERROR" {
		t.Errorf("Internal wire name = %q, want INTERNAL_SERVER_ERROR", got)
	}
	if got := NotFound.WireName(); got != "NOT_FOUND" {
		t.Errorf("NotFound wire name = %q, want NOT_FOUND", got)
	}
	if got := InvalidArgument.WireName(); got != "BAD_REQUEST" {
		t.Errorf("InvalidArgument wire name = %q, want BAD_REQUEST", got)
	}
}

func TestNewError_FormatsMessage(t *testing.T) {
	err := NewError(NotFound, "stream %s not found", "abc")
	if err.Message != "stream abc not found" {
		t.Errorf("unexpected message %q", err.Message)
	}
	if err.Public() {
		t.Error("NewError must not be public")
	}
}

func TestNewPublicError(t *testing.T) {
	err := NewPublicError(InvalidArgument, "public error message", map[string]any{"field": "x"})
	if !err.Public() {
		t.Error("expected public error")
	}
	if err.Details == nil {
		t.Error("expected details to be set")
	}
}

func TestStatusOf(t *testing.T) {
	if got := StatusOf(NewError(PermissionDenied, "nope")); got != PermissionDenied {
		t.Errorf("StatusOf classified error = %v, want PermissionDenied", got)
	}
	if got := StatusOf(errors.New("plain")); got != Internal {
		t.Errorf("StatusOf plain error = %v, want Internal", got)
	}
	wrapped := fmt.Errorf("outer: %w", NewError(NotFound, "inner"))
	if got := StatusOf(wrapped); got != NotFound {
		t.Errorf("StatusOf wrapped error = %v, want NotFound", got)
	}
}

func TestToError_PassesThrough(t *testing.T) {
	orig := NewError(NotFound, "missing")
	if got := ToError(fmt.Errorf("wrap: %w", orig)); got != orig {
		t.Errorf("ToError did not unwrap to original, got %+v", got)
	}
	conv := ToError(errors.New("plain failure"))
	if conv.Status != Internal || conv.Message != "plain failure" {
		t.Errorf("ToError conversion wrong: %+v", conv)
	}
}
