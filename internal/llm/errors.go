// Package llm provides the provider-agnostic LLM client abstraction used by
// the analysis pipelines: a capability interface, a typed error taxonomy
// with retry classification, and adapters for hosted and CLI-bridged
// providers.
package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrorKind categorizes why an LLM request failed.
// This enables retry decisions and user-facing messaging.
type ErrorKind string

const (
	KindConfiguration        ErrorKind = "configuration_error"
	KindAuthenticationFailed ErrorKind = "authentication_failed"
	KindRateLimitExceeded    ErrorKind = "rate_limit_exceeded"
	KindTimeout              ErrorKind = "timeout"
	KindNetworkError         ErrorKind = "network_error"
	KindInvalidRequest       ErrorKind = "invalid_request"
	KindContentBlocked       ErrorKind = "content_blocked"
	KindQuotaExceeded        ErrorKind = "quota_exceeded"
	KindServerError          ErrorKind = "server_error"
	KindParseError           ErrorKind = "parse_error"
	KindInvalidResponse      ErrorKind = "invalid_response"
	KindCliExecutionError    ErrorKind = "cli_execution_error"
	KindCliBinaryNotFound    ErrorKind = "cli_binary_not_found"
	KindProviderUnavailable  ErrorKind = "provider_unavailable"
)

// IsRetryable reports whether the kind suggests retrying may succeed.
func (k ErrorKind) IsRetryable() bool {
	switch k {
	case KindRateLimitExceeded, KindTimeout, KindNetworkError, KindServerError:
		return true
	default:
		return false
	}
}

// RetryAfter returns the suggested delay before retrying, or 0 when the
// kind carries no suggestion.
func (k ErrorKind) RetryAfter() time.Duration {
	switch k {
	case KindRateLimitExceeded:
		return 60 * time.Second
	case KindServerError:
		return 30 * time.Second
	case KindTimeout:
		return 5 * time.Second
	default:
		return 0
	}
}

// Error is a structured error from an LLM provider. It captures the
// context needed for retry logic and user messaging.
type Error struct {
	// Kind categorizes the error for retry and messaging decisions.
	Kind ErrorKind

	// Provider is the provider name (e.g. "google_ai", "openai").
	Provider string

	// Model is the model that was requested, when known.
	Model string

	// Message is the human-readable error detail.
	Message string

	// TimeoutSecs is the configured timeout, set for KindTimeout.
	TimeoutSecs int64

	// Path is the missing binary path, set for KindCliBinaryNotFound.
	Path string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s]", e.Kind))
	if e.Provider != "" {
		parts = append(parts, e.Provider)
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}
	switch {
	case e.Kind == KindTimeout:
		parts = append(parts, fmt.Sprintf("request timed out after %ds", e.TimeoutSecs))
	case e.Kind == KindCliBinaryNotFound:
		parts = append(parts, fmt.Sprintf("binary not found: %s", e.Path))
	case e.Message != "":
		parts = append(parts, e.Message)
	case e.Cause != nil:
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Cause }

// IsRetryable reports whether the error should be retried.
func (e *Error) IsRetryable() bool { return e.Kind.IsRetryable() }

// RetryAfter returns the suggested retry delay for this error, or 0.
func (e *Error) RetryAfter() time.Duration { return e.Kind.RetryAfter() }

// UserMessage converts the error to a short human phrasing without
// internal detail.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindConfiguration:
		return fmt.Sprintf("Configuration error: %s", e.Message)
	case KindAuthenticationFailed:
		return "Authentication failed. Please check your API key or CLI setup."
	case KindRateLimitExceeded:
		return "Rate limit exceeded. Please wait a moment and try again."
	case KindTimeout:
		return fmt.Sprintf("Request timed out after %d seconds.", e.TimeoutSecs)
	case KindNetworkError:
		return "Network connection error. Please check your internet connection."
	case KindContentBlocked:
		return "Content was blocked by safety filters. Try rephrasing your request."
	case KindQuotaExceeded:
		return "API quota exceeded. Please check your usage limits."
	case KindServerError:
		return "Server is experiencing issues. Please try again later."
	case KindParseError:
		return "Error parsing response. Please try again."
	case KindInvalidResponse:
		return "Received invalid response. Please try again."
	case KindInvalidRequest:
		return fmt.Sprintf("Invalid request: %s", e.Message)
	case KindCliExecutionError:
		return fmt.Sprintf("CLI execution failed: %s", e.Message)
	case KindCliBinaryNotFound:
		return fmt.Sprintf("CLI binary not found at: %s. Please ensure it's installed and in PATH.", e.Path)
	case KindProviderUnavailable:
		return fmt.Sprintf("Provider unavailable: %s", e.Message)
	default:
		return e.Error()
	}
}

// NewError creates an Error of the given kind with a message.
func NewError(kind ErrorKind, provider, message string) *Error {
	return &Error{Kind: kind, Provider: provider, Message: message}
}

// NewTimeoutError creates a KindTimeout error carrying the configured timeout.
func NewTimeoutError(provider string, timeoutSecs int64) *Error {
	return &Error{Kind: KindTimeout, Provider: provider, TimeoutSecs: timeoutSecs}
}

// WrapError wraps an underlying provider error, classifying it by message
// when it is not already an *Error.
func WrapError(provider, model string, cause error) *Error {
	if cause == nil {
		return nil
	}
	var llmErr *Error
	if errors.As(cause, &llmErr) {
		return llmErr
	}
	return &Error{
		Kind:     Classify(cause),
		Provider: provider,
		Model:    model,
		Message:  cause.Error(),
		Cause:    cause,
	}
}

// AsError extracts an *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr, true
	}
	return nil, false
}

// IsRetryable checks whether an arbitrary error should be retried.
func IsRetryable(err error) bool {
	if llmErr, ok := AsError(err); ok {
		return llmErr.IsRetryable()
	}
	return Classify(err).IsRetryable()
}

// Classify inspects an untyped error and returns the matching kind.
// SDKs surface transport failures as plain errors, so the mapping is
// message-pattern based, mirroring HTTP status semantics.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindServerError
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "deadline exceeded"):
		return KindTimeout
	case strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "429"),
		strings.Contains(msg, "resource exhausted"):
		return KindRateLimitExceeded
	case strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "unauthenticated"),
		strings.Contains(msg, "invalid api key"),
		strings.Contains(msg, "authentication"),
		strings.Contains(msg, "401"),
		strings.Contains(msg, "permission denied"),
		strings.Contains(msg, "403"):
		return KindAuthenticationFailed
	case strings.Contains(msg, "quota"),
		strings.Contains(msg, "billing"),
		strings.Contains(msg, "402"):
		return KindQuotaExceeded
	case strings.Contains(msg, "safety"),
		strings.Contains(msg, "blocked"),
		strings.Contains(msg, "content policy"):
		return KindContentBlocked
	case strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "network"):
		return KindNetworkError
	case strings.Contains(msg, "500"),
		strings.Contains(msg, "502"),
		strings.Contains(msg, "503"),
		strings.Contains(msg, "504"),
		strings.Contains(msg, "internal server"),
		strings.Contains(msg, "bad gateway"),
		strings.Contains(msg, "service unavailable"),
		strings.Contains(msg, "overloaded"):
		return KindServerError
	case strings.Contains(msg, "400"),
		strings.Contains(msg, "invalid argument"),
		strings.Contains(msg, "invalid request"):
		return KindInvalidRequest
	default:
		return KindServerError
	}
}

// ClassifyStatus returns the kind matching an HTTP status code.
func ClassifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuthenticationFailed
	case status == http.StatusPaymentRequired:
		return KindQuotaExceeded
	case status == http.StatusTooManyRequests:
		return KindRateLimitExceeded
	case status == http.StatusBadRequest:
		return KindInvalidRequest
	case status == http.StatusRequestTimeout:
		return KindTimeout
	case status >= 500:
		return KindServerError
	default:
		return KindInvalidResponse
	}
}
