package valyu

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		resp     *Response
		sendErr  error
		wantKind ErrorKind
		wantMsg  string
	}{
		{
			name:     "transport failure",
			sendErr:  errors.New("connection refused"),
			wantKind: KindNetwork,
		},
		{
			name:     "401",
			resp:     &Response{StatusCode: 401, Body: []byte(`{"success":false,"error":"bad key"}`)},
			wantKind: KindInvalidAPIKey,
		},
		{
			name:     "403 with success body",
			resp:     &Response{StatusCode: 403, Body: []byte(`{"success":true}`)},
			wantKind: KindInvalidAPIKey,
		},
		{
			name:     "429 regardless of body",
			resp:     &Response{StatusCode: 429, Body: []byte(`not json`)},
			wantKind: KindRateLimitExceeded,
		},
		{
			name:     "500",
			resp:     &Response{StatusCode: 500},
			wantKind: KindServiceUnavailable,
		},
		{
			name:     "503",
			resp:     &Response{StatusCode: 503, Body: []byte(`{"error":"maintenance"}`)},
			wantKind: KindServiceUnavailable,
		},
		{
			name:     "400 with service message",
			resp:     &Response{StatusCode: 400, Body: []byte(`{"success":false,"error":"query too long"}`)},
			wantKind: KindInvalidRequest,
			wantMsg:  "query too long",
		},
		{
			name:     "404 plain text",
			resp:     &Response{StatusCode: 404, Body: []byte("Task not found")},
			wantKind: KindInvalidRequest,
			wantMsg:  "Task not found",
		},
		{
			name:     "409 message field",
			resp:     &Response{StatusCode: 409, Body: []byte(`{"message":"task already completed"}`)},
			wantKind: KindInvalidRequest,
			wantMsg:  "task already completed",
		},
		{
			name:     "302",
			resp:     &Response{StatusCode: 302},
			wantKind: KindInvalidRequest,
			wantMsg:  "unexpected status 302",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.resp, tt.sendErr)
			if err == nil {
				t.Fatal("classify() = nil, want error")
			}
			if got := KindOf(err); got != tt.wantKind {
				t.Errorf("KindOf() = %v, want %v", got, tt.wantKind)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestClassify_Success(t *testing.T) {
	for _, code := range []int{200, 201, 204} {
		if err := classify(&Response{StatusCode: code}, nil); err != nil {
			t.Errorf("classify(%d) = %v, want nil", code, err)
		}
	}
}

func TestDecode(t *testing.T) {
	type payload struct {
		Success bool   `json:"success"`
		Value   string `json:"value"`
	}

	t.Run("success", func(t *testing.T) {
		var out payload
		err := decode(&Response{StatusCode: 200, Body: []byte(`{"success":true,"value":"x"}`)}, nil, &out)
		if err != nil {
			t.Fatalf("decode() error = %v", err)
		}
		if out.Value != "x" {
			t.Errorf("Value = %q, want x", out.Value)
		}
	})

	t.Run("success false is invalid request", func(t *testing.T) {
		var out payload
		err := decode(&Response{StatusCode: 200, Body: []byte(`{"success":false,"error":"no credits"}`)}, nil, &out)
		if !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("decode() error = %v, want invalid request", err)
		}
		if !strings.Contains(err.Error(), "no credits") {
			t.Errorf("error = %q, want service message", err.Error())
		}
	})

	t.Run("error object", func(t *testing.T) {
		err := decode(&Response{StatusCode: 200, Body: []byte(`{"success":false,"error":{"code":"E1"}}`)}, nil, nil)
		if !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("decode() error = %v, want invalid request", err)
		}
		if !strings.Contains(err.Error(), "E1") {
			t.Errorf("error = %q, want raw error object", err.Error())
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		var out payload
		err := decode(&Response{StatusCode: 200, Body: []byte(`{"success":`)}, nil, &out)
		if !errors.Is(err, ErrDeserialization) {
			t.Fatalf("decode() error = %v, want deserialization", err)
		}
	})

	t.Run("type mismatch", func(t *testing.T) {
		var out payload
		err := decode(&Response{StatusCode: 200, Body: []byte(`{"success":true,"value":42}`)}, nil, &out)
		if !errors.Is(err, ErrDeserialization) {
			t.Fatalf("decode() error = %v, want deserialization", err)
		}
	})

	t.Run("empty 200", func(t *testing.T) {
		var out payload
		err := decode(&Response{StatusCode: 200}, nil, &out)
		if !errors.Is(err, ErrDeserialization) {
			t.Fatalf("decode() error = %v, want deserialization", err)
		}
	})

	t.Run("empty 204", func(t *testing.T) {
		var out payload
		if err := decode(&Response{StatusCode: http.StatusNoContent}, nil, &out); err != nil {
			t.Fatalf("decode() error = %v", err)
		}
	})
}

func TestError_Is(t *testing.T) {
	err := fmt.Errorf("search: %w", &Error{Kind: KindRateLimitExceeded, StatusCode: 429})

	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Error("expected errors.Is to match rate limit sentinel")
	}
	if errors.Is(err, ErrServiceUnavailable) {
		t.Error("rate limit must not match service unavailable")
	}
	if KindOf(errors.New("other")) != 0 {
		t.Error("KindOf(foreign error) should be 0")
	}
}

func TestError_UnwrapsCause(t *testing.T) {
	err := classify(nil, fmt.Errorf("do request: %w", context.Canceled))
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("error = %v, want network", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Error("network error should unwrap to context.Canceled")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want bool
	}{
		{KindRateLimitExceeded, true},
		{KindServiceUnavailable, true},
		{KindInvalidAPIKey, false},
		{KindInvalidRequest, false},
		{KindNetwork, false},
		{KindDeserialization, false},
		{KindTimeout, false},
	}
	for _, tt := range tests {
		if got := IsRetryable(&Error{Kind: tt.kind}); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestError_Message(t *testing.T) {
	err := &Error{Kind: KindInvalidAPIKey}
	if err.Error() != "invalid API key" {
		t.Errorf("Error() = %q", err.Error())
	}
	err = invalidRequest("query must not be empty")
	if err.Error() != "invalid request: query must not be empty" {
		t.Errorf("Error() = %q", err.Error())
	}
}
