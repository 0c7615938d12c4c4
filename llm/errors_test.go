package llm

import (
	"errors"
	"fmt"
	"testing"
)

func TestMatchStatus(t *testing.T) {
	cases := []struct {
		pattern string
		code    int
		want    bool
	}{
		{"5xx", 500, true},
		{"5xx", 503, true},
		{"5xx", 599, true},
		{"5xx", 499, false},
		{"5xx", 600, false},
		{"429", 429, true},
		{"429", 428, false},
		{"408", 408, true},
		{"4x9", 429, true},
		{"4x9", 439, true},
		{"4x9", 428, false},
		{"xxx", 404, true},
		{"5XX", 502, true},
		{"", 500, false},
		{"50", 500, false},
		{"5xxx", 500, false},
	}
	for _, tc := range cases {
		if got := MatchStatus(tc.pattern, tc.code); got != tc.want {
			t.Errorf("MatchStatus(%q, %d) = %v, want %v", tc.pattern, tc.code, got, tc.want)
		}
	}
}

func TestMatchAnyStatus(t *testing.T) {
	patterns := []string{"5xx", "408", "429"}
	if !MatchAnyStatus(patterns, 503) {
		t.Error("503 should match 5xx")
	}
	if !MatchAnyStatus(patterns, 429) {
		t.Error("429 should match exact pattern")
	}
	if MatchAnyStatus(patterns, 400) {
		t.Error("400 should not match any pattern")
	}
	if MatchAnyStatus(nil, 503) {
		t.Error("Empty pattern list matches nothing")
	}
}

func TestStatusCodeExtraction(t *testing.T) {
	direct := &Error{StatusCode: 503, Message: "down"}
	if StatusCode(direct) != 503 {
		t.Errorf("Expected 503, got %d", StatusCode(direct))
	}

	wrapped := fmt.Errorf("calling backend: %w", direct)
	if StatusCode(wrapped) != 503 {
		t.Errorf("Wrapped error should still report 503, got %d", StatusCode(wrapped))
	}

	opaque := errors.New("opaque")
	if StatusCode(opaque) != CodeUnexpected {
		t.Errorf("Untyped error should report CodeUnexpected, got %d", StatusCode(opaque))
	}
	if StatusCode(nil) != CodeUnexpected {
		t.Errorf("nil should report CodeUnexpected")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewServerError(502, "bad gateway", cause)
	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to find the cause")
	}
	if got := err.Error(); got == "" {
		t.Error("Error string should not be empty")
	}
}

func TestClassificationHelpers(t *testing.T) {
	if !IsClientError(NewClientError(404, "not found", nil)) {
		t.Error("404 is a client error")
	}
	if IsClientError(NewServerError(500, "boom", nil)) {
		t.Error("500 is not a client error")
	}
	if !IsServerError(NewServerError(503, "boom", nil)) {
		t.Error("503 is a server error")
	}
	if IsServerError(NewInternalError(CodeEmptyPlan, "empty", nil)) {
		t.Error("Engine codes are not server errors")
	}
}
