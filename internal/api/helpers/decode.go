package helpers

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// DecodeJSON decodes a JSON request body, rejecting unknown fields so
// malformed or probing payloads fail fast rather than being silently
// ignored.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// RealIP returns the best-effort caller address for logging/rate
// limiting, preferring X-Forwarded-For when present (chi's RealIP
// middleware already normalizes r.RemoteAddr from it upstream).
func RealIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}
