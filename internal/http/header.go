package http

import "net/http"

// BuildHeader merges caller-supplied headers with bearer token authorization.
// Caller entries are applied last, so an explicit Authorization header is
// never replaced by the token.
func BuildHeader(token string, extra map[string]string) http.Header {
	h := make(http.Header, len(extra)+1)
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	for k, v := range extra {
		h.Set(k, v)
	}
	return h
}
