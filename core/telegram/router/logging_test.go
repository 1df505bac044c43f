package router

import (
	"errors"
	"fmt"
	"testing"
)

type codedErr struct{ code string }

func (e *codedErr) Error() string { return "coded" }
func (e *codedErr) Code() string  { return e.code }

type plainErr struct{}

func (plainErr) Error() string { return "plain" }

func TestNormalizeHandlerName(t *testing.T) {
	cases := map[string]string{
		"/start":   "start",
		"  ":       "unknown",
		"My Thing": "my_thing",
		"/Status":  "status",
	}
	for in, want := range cases {
		if got := normalizeHandlerName(in); got != want {
			t.Errorf("normalizeHandlerName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDeriveErrorCode(t *testing.T) {
	if got := deriveErrorCode(nil); got != "" {
		t.Fatalf("nil error code = %q", got)
	}
	wrapped := fmt.Errorf("generate: %w", &codedErr{code: "http 502"})
	if got := deriveErrorCode(wrapped); got != "HTTP_502" {
		t.Fatalf("wrapped coder = %q", got)
	}
	if got := deriveErrorCode(&plainErr{}); got != "PLAINERR" {
		t.Fatalf("pointer type name = %q", got)
	}
	if got := deriveErrorCode(errors.New("x")); got != "ERRORSTRING" {
		t.Fatalf("errors.New type name = %q", got)
	}
}
