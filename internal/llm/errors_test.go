package llm

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestIsRetryable(t *testing.T) {
	retryable := []ErrorKind{KindRateLimitExceeded, KindTimeout, KindNetworkError, KindServerError}
	for _, kind := range retryable {
		if !kind.IsRetryable() {
			t.Errorf("%s should be retryable", kind)
		}
	}

	notRetryable := []ErrorKind{
		KindConfiguration, KindAuthenticationFailed, KindInvalidRequest,
		KindContentBlocked, KindQuotaExceeded, KindParseError,
		KindInvalidResponse, KindCliExecutionError, KindCliBinaryNotFound,
		KindProviderUnavailable,
	}
	for _, kind := range notRetryable {
		if kind.IsRetryable() {
			t.Errorf("%s should not be retryable", kind)
		}
	}
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		kind     ErrorKind
		expected time.Duration
	}{
		{KindRateLimitExceeded, 60 * time.Second},
		{KindTimeout, 5 * time.Second},
		{KindServerError, 30 * time.Second},
		{KindNetworkError, 0},
		{KindContentBlocked, 0},
	}
	for _, tt := range tests {
		if got := tt.kind.RetryAfter(); got != tt.expected {
			t.Errorf("RetryAfter(%s) = %v, want %v", tt.kind, got, tt.expected)
		}
	}
}

func TestUserMessage(t *testing.T) {
	err := &Error{Kind: KindCliBinaryNotFound, Path: "/usr/bin/claude"}
	msg := err.UserMessage()
	if !strings.Contains(msg, "/usr/bin/claude") {
		t.Errorf("UserMessage() = %q, want binary path", msg)
	}
	if !strings.Contains(msg, "not found") {
		t.Errorf("UserMessage() = %q, want 'not found'", msg)
	}

	rate := NewError(KindRateLimitExceeded, "google_ai", "429")
	if got := rate.UserMessage(); got != "Rate limit exceeded. Please wait a moment and try again." {
		t.Errorf("UserMessage() = %q", got)
	}

	timeout := NewTimeoutError("google_ai", 30)
	if !strings.Contains(timeout.UserMessage(), "30 seconds") {
		t.Errorf("UserMessage() = %q, want timeout seconds", timeout.UserMessage())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		msg      string
		expected ErrorKind
	}{
		{"context deadline exceeded", KindTimeout},
		{"429 too many requests", KindRateLimitExceeded},
		{"resource exhausted", KindRateLimitExceeded},
		{"401 unauthorized", KindAuthenticationFailed},
		{"permission denied", KindAuthenticationFailed},
		{"quota exceeded for project", KindQuotaExceeded},
		{"blocked by safety settings", KindContentBlocked},
		{"connection refused", KindNetworkError},
		{"503 service unavailable", KindServerError},
		{"internal server error", KindServerError},
		{"invalid argument: bad field", KindInvalidRequest},
		{"something inexplicable", KindServerError},
	}
	for _, tt := range tests {
		if got := Classify(errors.New(tt.msg)); got != tt.expected {
			t.Errorf("Classify(%q) = %v, want %v", tt.msg, got, tt.expected)
		}
	}
}

func TestWrapErrorPreservesTypedErrors(t *testing.T) {
	orig := NewError(KindContentBlocked, "google_ai", "blocked")
	wrapped := WrapError("google_ai", "gemini", fmt.Errorf("outer: %w", orig))
	if wrapped.Kind != KindContentBlocked {
		t.Errorf("Kind = %v, want %v", wrapped.Kind, KindContentBlocked)
	}
}

func TestAsError(t *testing.T) {
	err := fmt.Errorf("context: %w", NewError(KindServerError, "openai", "500"))
	llmErr, ok := AsError(err)
	if !ok {
		t.Fatal("AsError() should find wrapped *Error")
	}
	if llmErr.Kind != KindServerError {
		t.Errorf("Kind = %v", llmErr.Kind)
	}

	if _, ok := AsError(errors.New("plain")); ok {
		t.Error("AsError() should not match plain errors")
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected ErrorKind
	}{
		{401, KindAuthenticationFailed},
		{403, KindAuthenticationFailed},
		{402, KindQuotaExceeded},
		{429, KindRateLimitExceeded},
		{400, KindInvalidRequest},
		{408, KindTimeout},
		{500, KindServerError},
		{503, KindServerError},
		{302, KindInvalidResponse},
	}
	for _, tt := range tests {
		if got := ClassifyStatus(tt.status); got != tt.expected {
			t.Errorf("ClassifyStatus(%d) = %v, want %v", tt.status, got, tt.expected)
		}
	}
}
