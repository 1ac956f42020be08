package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := New(CodeNotFound, "thread not found")
	if !errors.Is(err, New(CodeNotFound, "different message")) {
		t.Fatal("expected code match")
	}
	if errors.Is(err, New(CodeForbidden, "thread not found")) {
		t.Fatal("expected code mismatch")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk failure")
	err := Wrap(CodeUnknown, "load thread", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to match")
	}
	if err.Error() != "load thread" {
		t.Fatalf("message = %q, want load thread", err.Error())
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(New(CodeForbidden, "nope")); got != CodeForbidden {
		t.Fatalf("code = %q, want FORBIDDEN", got)
	}
	wrapped := fmt.Errorf("outer: %w", New(CodeValidation, "bad input"))
	if got := CodeOf(wrapped); got != CodeValidation {
		t.Fatalf("code = %q, want VALIDATION", got)
	}
	if got := CodeOf(errors.New("plain")); got != CodeUnknown {
		t.Fatalf("code = %q, want UNKNOWN", got)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		code Code
		want int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeConflict, http.StatusBadRequest},
		{CodeChatSelfThread, http.StatusBadRequest},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeAuthInvalidCredential, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeChatNotParticipant, http.StatusForbidden},
		{CodeAuthEmailUnverified, http.StatusForbidden},
		{CodeNotFound, http.StatusNotFound},
		{CodeUnknown, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Fatalf("%s status = %d, want %d", tc.code, got, tc.want)
		}
	}
}
