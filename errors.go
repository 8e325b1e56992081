package valyu

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind is the classification of a failed call. Exactly one kind is
// attached to every error returned by the client.
type ErrorKind int

const (
	KindInvalidAPIKey ErrorKind = iota + 1
	KindRateLimitExceeded
	KindServiceUnavailable
	KindInvalidRequest
	KindNetwork
	KindDeserialization
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidAPIKey:
		return "invalid_api_key"
	case KindRateLimitExceeded:
		return "rate_limit_exceeded"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindInvalidRequest:
		return "invalid_request"
	case KindNetwork:
		return "network"
	case KindDeserialization:
		return "deserialization"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by the client.
type Error struct {
	Kind ErrorKind
	// Message is the human readable detail. For InvalidRequest it carries the
	// service-provided message when there is one.
	Message string
	// StatusCode is the HTTP status that produced the error, 0 for errors
	// raised before or without a response.
	StatusCode int
	Err        error
}

var (
	ErrInvalidAPIKey      = &Error{Kind: KindInvalidAPIKey}
	ErrRateLimitExceeded  = &Error{Kind: KindRateLimitExceeded}
	ErrServiceUnavailable = &Error{Kind: KindServiceUnavailable}
	ErrInvalidRequest     = &Error{Kind: KindInvalidRequest}
	ErrNetwork            = &Error{Kind: KindNetwork}
	ErrDeserialization    = &Error{Kind: KindDeserialization}
	ErrTimeout            = &Error{Kind: KindTimeout}
)

func (e *Error) Error() string {
	var prefix string
	switch e.Kind {
	case KindInvalidAPIKey:
		prefix = "invalid API key"
	case KindRateLimitExceeded:
		prefix = "rate limit exceeded"
	case KindServiceUnavailable:
		prefix = "service unavailable"
	case KindInvalidRequest:
		prefix = "invalid request"
	case KindNetwork:
		prefix = "network error"
	case KindDeserialization:
		prefix = "failed to parse API response"
	case KindTimeout:
		prefix = "timeout"
	default:
		prefix = "valyu error"
	}

	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		return prefix
	}
	return prefix + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind, so that
// errors.Is(err, valyu.ErrRateLimitExceeded) works for any rate limit error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of err, or 0 if err is not a client error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsRetryable reports whether a caller-side retry policy may retry err.
// Only rate limiting and service unavailability qualify; the client itself
// never retries.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimitExceeded, KindServiceUnavailable:
		return true
	}
	return false
}

func invalidRequest(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

// envelope is the part every response body shares.
type envelope struct {
	Success *bool           `json:"success"`
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

// errorText returns the error field as text whether the service sent a
// string or an object.
func (e envelope) errorText() string {
	if len(e.Error) == 0 || string(e.Error) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(e.Error, &s) == nil {
		return s
	}
	return string(e.Error)
}

// classify maps a transport outcome to an error. It returns nil for a 2xx
// response; the body is then handled by decode.
func classify(resp *Response, sendErr error) error {
	if sendErr != nil {
		return &Error{Kind: KindNetwork, Err: sendErr}
	}

	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &Error{Kind: KindInvalidAPIKey, StatusCode: code}
	case code == http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimitExceeded, StatusCode: code}
	case code >= 500:
		return &Error{Kind: KindServiceUnavailable, StatusCode: code, Message: http.StatusText(code)}
	case code >= 400:
		return &Error{Kind: KindInvalidRequest, StatusCode: code, Message: serviceMessage(code, resp.Body)}
	default:
		return &Error{Kind: KindInvalidRequest, StatusCode: code, Message: fmt.Sprintf("unexpected status %d", code)}
	}
}

// decode classifies resp and, for a 2xx, checks the success flag before
// parsing the body into out.
func decode(resp *Response, sendErr error, out any) error {
	if err := classify(resp, sendErr); err != nil {
		return err
	}

	// 204 - валидный ответ без тела
	if resp.StatusCode == http.StatusNoContent && len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return &Error{Kind: KindDeserialization, StatusCode: resp.StatusCode, Err: err}
	}
	if env.Success != nil && !*env.Success {
		msg := firstNonEmpty(env.errorText(), env.Message, "API request was not successful")
		return &Error{Kind: KindInvalidRequest, StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &Error{Kind: KindDeserialization, StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}

func serviceMessage(code int, body []byte) string {
	var env envelope
	if json.Unmarshal(body, &env) == nil {
		if msg := firstNonEmpty(env.errorText(), env.Message); msg != "" {
			return msg
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return http.StatusText(code)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
