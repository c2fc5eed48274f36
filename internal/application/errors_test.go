package application

import (
	"fmt"
	"testing"

	"github.com/example/interview-tracker/internal/lifecycle"
)

func TestValidationError(t *testing.T) {
	vErr := &ValidationError{}
	if vErr.HasErrors() {
		t.Fatal("expected fresh validation error to report no issues")
	}

	vErr.add("email", "email is required")
	vErr.add("email", "email is invalid")
	vErr.add("role", "role must be admin, standard, or caller")

	if !vErr.HasErrors() {
		t.Fatal("expected recorded issues to be reported")
	}
	if len(vErr.FieldErrors) != 2 {
		t.Fatalf("expected the latest message per field, got %v", vErr.FieldErrors)
	}
	if vErr.FieldErrors["email"] != "email is invalid" {
		t.Fatalf("expected later message to win, got %q", vErr.FieldErrors["email"])
	}
	if vErr.Error() != "validation failed" {
		t.Fatalf("unexpected error string: %q", vErr.Error())
	}

	var nilErr *ValidationError
	if nilErr.HasErrors() {
		t.Fatal("nil validation error must report no issues")
	}
}

func TestErrorKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrUnauthorized, "unauthorized"},
		{ErrNotFound, "not_found"},
		{ErrAlreadyExists, "already_exists"},
		{ErrSelfGrant, "self_grant"},
		{ErrInvalidCredentials, "invalid_credentials"},
		{ErrSessionExpired, "session_expired"},
		{ErrSessionRevoked, "session_revoked"},
		{lifecycle.ErrInvalidTransition, "invalid_transition"},
		{fmt.Errorf("wrapped: %w", ErrNotFound), "not_found"},
		{&ValidationError{FieldErrors: map[string]string{"email": "bad"}}, "validation"},
		{fmt.Errorf("boom"), "unexpected"},
	}

	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
