package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ClientTokenHeader carries the intake client token when no Authorization
// header is sent.
const ClientTokenHeader = "X-Client-Token"

type clientKey struct{}

// ClientTokenMiddleware rejects requests that do not present one of tokens.
// With no tokens configured every request is accepted.
// The accepted token's fingerprint is added to the request log and context.
func ClientTokenMiddleware(tokens []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if t != "" {
			allowed[t] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		if len(allowed) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := clientToken(r)
			if token == "" {
				http.Error(w, "Missing client token", http.StatusUnauthorized)
				return
			}
			if _, ok := allowed[token]; !ok {
				http.Error(w, "Invalid client token", http.StatusUnauthorized)
				return
			}

			fingerprint := Fingerprint(token)
			AddLogField(r.Context(), "client", fingerprint)
			ctx := context.WithValue(r.Context(), clientKey{}, fingerprint)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func clientToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get(ClientTokenHeader)
}

// Fingerprint returns a stable, non-reversible identifier for a token.
func Fingerprint(token string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(token))
}

// GetClient returns the fingerprint of the authenticated client token, or
// an empty string.
func GetClient(ctx context.Context) string {
	if c, ok := ctx.Value(clientKey{}).(string); ok {
		return c
	}
	return ""
}
