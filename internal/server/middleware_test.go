package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// QueueHeadersMiddleware Tests
// =============================================================================

func TestQueueHeadersMiddleware(t *testing.T) {
	tests := []struct {
		name          string
		info          QueueInfo
		wantLimit     string
		wantRemaining string
	}{
		{name: "partially filled", info: QueueInfo{Depth: 4, Capacity: 16}, wantLimit: "16", wantRemaining: "12"},
		{name: "full", info: QueueInfo{Depth: 16, Capacity: 16}, wantLimit: "16", wantRemaining: "0"},
		{name: "not reported", info: QueueInfo{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if info := GetQueueInfo(r.Context()); info != nil {
					*info = tt.info
				}
				w.WriteHeader(http.StatusAccepted)
			})

			rec := httptest.NewRecorder()
			QueueHeadersMiddleware(handler).ServeHTTP(rec, httptest.NewRequest("POST", "/v1/commands", nil))

			checkHeader(t, rec, "x-ratelimit-limit-commands", tt.wantLimit)
			checkHeader(t, rec, "x-ratelimit-remaining-commands", tt.wantRemaining)
		})
	}
}

func TestGetQueueInfo_NotSet(t *testing.T) {
	if info := GetQueueInfo(context.Background()); info != nil {
		t.Errorf("GetQueueInfo() = %+v, want nil", info)
	}
}

func checkHeader(t *testing.T, rec *httptest.ResponseRecorder, name, want string) {
	t.Helper()
	if got := rec.Header().Get(name); got != want {
		t.Errorf("header %s = %q, want %q", name, got, want)
	}
}

// =============================================================================
// RequestIDMiddleware Tests
// =============================================================================

func TestRequestIDMiddleware(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRequestID(r.Context()) == "" {
			t.Error("Expected request ID in context")
		}
		w.WriteHeader(http.StatusOK)
	})

	wrapped := RequestIDMiddleware(handler)

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header to be set")
	}
}

func TestRequestIDMiddleware_ReusesCallerID(t *testing.T) {
	var seen string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "sdk-retry-7")
	rec := httptest.NewRecorder()
	RequestIDMiddleware(handler).ServeHTTP(rec, req)

	if seen != "sdk-retry-7" {
		t.Errorf("context request ID = %q, want sdk-retry-7", seen)
	}
	checkHeader(t, rec, "X-Request-ID", "sdk-retry-7")
}

func TestRequestIDMiddleware_UniqueIDs(t *testing.T) {
	wrapped := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec1 := httptest.NewRecorder()
	wrapped.ServeHTTP(rec1, httptest.NewRequest("GET", "/", nil))
	rec2 := httptest.NewRecorder()
	wrapped.ServeHTTP(rec2, httptest.NewRequest("GET", "/", nil))

	if id1, id2 := rec1.Header().Get("X-Request-ID"), rec2.Header().Get("X-Request-ID"); id1 == id2 {
		t.Errorf("Expected unique request IDs, got same: %s", id1)
	}
}

func TestGetRequestID_NotSet(t *testing.T) {
	if id := GetRequestID(context.Background()); id != "" {
		t.Errorf("Expected empty string, got %q", id)
	}
}

// =============================================================================
// TimeoutMiddleware Tests
// =============================================================================

func TestTimeoutMiddleware(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Deadline(); !ok {
			t.Error("Expected context to have deadline")
		}
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	TimeoutMiddleware(30*time.Second)(handler).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestTimeoutMiddleware_Disabled(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Deadline(); ok {
			t.Error("Expected no deadline when timeout is disabled")
		}
	})

	TimeoutMiddleware(0)(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
}

func TestTimeoutMiddleware_ContextCancelled(t *testing.T) {
	contextCancelled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			contextCancelled = true
		case <-time.After(time.Second):
		}
	})

	rec := httptest.NewRecorder()
	TimeoutMiddleware(10*time.Millisecond)(handler).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if !contextCancelled {
		t.Error("Expected context to be cancelled due to timeout")
	}
}

// =============================================================================
// ClientTokenMiddleware Tests
// =============================================================================

func TestClientTokenMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		tokens     []string
		header     string
		value      string
		wantStatus int
	}{
		{name: "disabled", tokens: nil, wantStatus: http.StatusOK},
		{name: "bearer", tokens: []string{"pub123"}, header: "Authorization", value: "Bearer pub123", wantStatus: http.StatusOK},
		{name: "raw authorization", tokens: []string{"pub123"}, header: "Authorization", value: "pub123", wantStatus: http.StatusOK},
		{name: "client token header", tokens: []string{"a", "pub123"}, header: ClientTokenHeader, value: "pub123", wantStatus: http.StatusOK},
		{name: "missing", tokens: []string{"pub123"}, wantStatus: http.StatusUnauthorized},
		{name: "wrong", tokens: []string{"pub123"}, header: "Authorization", value: "Bearer nope", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if len(tt.tokens) > 0 && GetClient(r.Context()) != Fingerprint("pub123") {
					t.Errorf("client = %q, want fingerprint of pub123", GetClient(r.Context()))
				}
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest("POST", "/v1/commands", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			ClientTokenMiddleware(tt.tokens)(handler).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestFingerprint(t *testing.T) {
	a, b := Fingerprint("token-a"), Fingerprint("token-b")
	if len(a) != 16 {
		t.Errorf("fingerprint length = %d, want 16", len(a))
	}
	if a == b {
		t.Error("different tokens should have different fingerprints")
	}
	if a != Fingerprint("token-a") {
		t.Error("fingerprint should be stable")
	}
	if strings.Contains(a, "token") {
		t.Error("fingerprint should not contain the token")
	}
}

// =============================================================================
// LoggingMiddleware Tests
// =============================================================================

func newBufferLogger(buf *strings.Builder, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level}))
}

func TestLoggingMiddleware(t *testing.T) {
	var buf strings.Builder
	logger := newBufferLogger(&buf, slog.LevelDebug)

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wrapped := RequestIDMiddleware(LoggingMiddleware(logger)(testHandler))
	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/test-path", nil))

	output := buf.String()
	for _, want := range []string{"request started", "request completed", "/test-path", "status=200", "bytes=2"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in log output, got: %s", want, output)
		}
	}
}

func TestLoggingMiddleware_ServerErrorLevel(t *testing.T) {
	var buf strings.Builder
	logger := newBufferLogger(&buf, slog.LevelInfo)

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	LoggingMiddleware(logger)(testHandler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/v1/flush", nil))

	output := buf.String()
	if !strings.Contains(output, "level=ERROR") {
		t.Errorf("Expected error level for 503, got: %s", output)
	}
	if strings.Contains(output, "request started") {
		t.Errorf("start line should be debug only, got: %s", output)
	}
}

func TestAddLogField(t *testing.T) {
	var buf strings.Builder
	logger := newBufferLogger(&buf, slog.LevelInfo)

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AddLogField(r.Context(), "accepted", "3")
		AddLogField(r.Context(), "empty_field", "")
		w.WriteHeader(http.StatusAccepted)
	})

	LoggingMiddleware(logger)(testHandler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/", nil))

	output := buf.String()
	if !strings.Contains(output, "accepted=3") {
		t.Errorf("Expected custom field in log output, got: %s", output)
	}
	if strings.Contains(output, "empty_field") {
		t.Errorf("Empty field should not be in log output, got: %s", output)
	}
}

func TestAddLogField_NoContext(t *testing.T) {
	AddLogField(context.Background(), "key", "value")
}

func TestAddError(t *testing.T) {
	var buf strings.Builder
	logger := newBufferLogger(&buf, slog.LevelInfo)

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AddError(r.Context(), errors.New("test error message"))
		AddError(r.Context(), nil)
		w.WriteHeader(http.StatusBadRequest)
	})

	LoggingMiddleware(logger)(testHandler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	output := buf.String()
	if !strings.Contains(output, "test error message") {
		t.Errorf("Expected error in log output, got: %s", output)
	}
	if !strings.Contains(output, "level=WARN") {
		t.Errorf("Expected warn level for 400, got: %s", output)
	}
}
