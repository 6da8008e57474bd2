package server

import (
	"context"
	"net/http"
	"strconv"
)

type queueInfoKey struct{}

// QueueInfo describes the monitor command queue after a request was
// accepted.
type QueueInfo struct {
	Depth    int
	Capacity int
}

// Remaining is the number of commands the queue can take before Submit
// blocks.
func (q QueueInfo) Remaining() int {
	if r := q.Capacity - q.Depth; r > 0 {
		return r
	}
	return 0
}

// SetQueueInfo stores queue info in the request context. The pointer lets
// handlers fill it after QueueHeadersMiddleware has run.
func SetQueueInfo(ctx context.Context, info *QueueInfo) context.Context {
	return context.WithValue(ctx, queueInfoKey{}, info)
}

// GetQueueInfo returns the queue info slot of the request, or nil.
func GetQueueInfo(ctx context.Context) *QueueInfo {
	if q, ok := ctx.Value(queueInfoKey{}).(*QueueInfo); ok {
		return q
	}
	return nil
}

// QueueHeadersMiddleware writes x-ratelimit-*-commands headers so clients
// can back off before the intake starts blocking.
func QueueHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := &QueueInfo{}
		wrapped := &queueResponseWriter{ResponseWriter: w, info: info}
		next.ServeHTTP(wrapped, r.WithContext(SetQueueInfo(r.Context(), info)))
	})
}

type queueResponseWriter struct {
	http.ResponseWriter
	info         *QueueInfo
	wroteHeaders bool
}

func (rw *queueResponseWriter) WriteHeader(code int) {
	rw.writeQueueHeaders()
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *queueResponseWriter) Write(b []byte) (int, error) {
	rw.writeQueueHeaders()
	return rw.ResponseWriter.Write(b)
}

func (rw *queueResponseWriter) writeQueueHeaders() {
	if rw.wroteHeaders {
		return
	}
	rw.wroteHeaders = true
	if rw.info.Capacity == 0 {
		return
	}
	h := rw.Header()
	h.Set("x-ratelimit-limit-commands", strconv.Itoa(rw.info.Capacity))
	h.Set("x-ratelimit-remaining-commands", strconv.Itoa(rw.info.Remaining()))
}

func (rw *queueResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
