package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"testing"

	conderr "conductor/internal/errors"
)

// --- wrapRequestError ---

func TestWrapRequestError_ContextCanceled(t *testing.T) {
	err := wrapRequestError(context.Canceled)
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled passthrough, got %v", err)
	}
}

func TestWrapRequestError_DeadlineExceeded(t *testing.T) {
	err := wrapRequestError(context.DeadlineExceeded)
	var terr *conderr.TransientError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransientError, got %T", err)
	}
}

func TestWrapRequestError_NetTimeout(t *testing.T) {
	err := wrapRequestError(&net.DNSError{IsTimeout: true})
	var terr *conderr.TransientError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransientError for net timeout, got %T", err)
	}
}

func TestWrapRequestError_GenericError(t *testing.T) {
	err := wrapRequestError(net.ErrClosed)
	var terr *conderr.TransientError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransientError for generic error, got %T", err)
	}
}

// --- mapHTTPError ---

func TestMapHTTPError_Unauthorized(t *testing.T) {
	err := mapHTTPError(401, []byte("unauthorized"), nil)
	var perr *conderr.PermanentError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PermanentError, got %T", err)
	}
	if perr.StatusCode != 401 {
		t.Fatalf("expected status 401, got %d", perr.StatusCode)
	}
}

func TestMapHTTPError_Forbidden(t *testing.T) {
	err := mapHTTPError(403, []byte("forbidden"), nil)
	var perr *conderr.PermanentError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PermanentError for 403, got %T", err)
	}
}

func TestMapHTTPError_RateLimit(t *testing.T) {
	headers := http.Header{}
	headers.Set("Retry-After", "30")
	err := mapHTTPError(429, []byte("rate limited"), headers)
	var terr *conderr.TransientError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransientError for 429, got %T", err)
	}
	if terr.StatusCode != 429 {
		t.Fatalf("expected status 429, got %d", terr.StatusCode)
	}
	if terr.RetryAfter != 30 {
		t.Fatalf("expected RetryAfter 30, got %d", terr.RetryAfter)
	}
}

func TestMapHTTPError_Timeout(t *testing.T) {
	for _, status := range []int{408, 504} {
		err := mapHTTPError(status, nil, nil)
		var terr *conderr.TransientError
		if !errors.As(err, &terr) {
			t.Fatalf("expected TransientError for %d, got %T", status, err)
		}
	}
}

func TestMapHTTPError_ServerError(t *testing.T) {
	err := mapHTTPError(500, []byte("internal server error"), nil)
	var terr *conderr.TransientError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransientError for 500, got %T", err)
	}
}

func TestMapHTTPError_ClientError(t *testing.T) {
	err := mapHTTPError(400, []byte("bad request"), nil)
	var perr *conderr.PermanentError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PermanentError for 400, got %T", err)
	}
}

func TestMapHTTPError_EmptyBody(t *testing.T) {
	err := mapHTTPError(500, nil, nil)
	var terr *conderr.TransientError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransientError, got %T", err)
	}
	if terr.Err == nil {
		t.Fatal("expected wrapped error")
	}
	if !strings.Contains(terr.Err.Error(), "Internal Server Error") {
		t.Fatalf("expected status text in wrapped error, got %q", terr.Err.Error())
	}
}

func TestMapHTTPError_DefaultCase(t *testing.T) {
	// Status < 400 and not in specific cases: should be transient
	err := mapHTTPError(301, []byte("moved"), nil)
	var terr *conderr.TransientError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransientError for default case, got %T", err)
	}
}

// --- parseRetryAfter ---

func TestParseRetryAfter(t *testing.T) {
	cases := []struct {
		value string
		want  int
	}{
		{"60", 60},
		{"", 0},
		{"-5", 0},
		{"0", 0},
		{"not-a-number-or-date", 0},
	}
	for _, tc := range cases {
		if got := parseRetryAfter(tc.value); got != tc.want {
			t.Errorf("parseRetryAfter(%q) = %d, want %d", tc.value, got, tc.want)
		}
	}
}
