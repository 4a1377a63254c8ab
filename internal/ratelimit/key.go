package ratelimit

import (
	"net/http"
	"strings"
)

// UnknownKey is used when no client address header is present.
const UnknownKey = "unknown"

// ClientIPHeaders lists the headers consulted by DeriveKey, in order.
var ClientIPHeaders = []string{
	"X-Forwarded-For",
	"X-Real-IP",
	"CF-Connecting-IP",
	"X-Client-IP",
}

// DeriveKey returns the client address carried by the first present header in
// ClientIPHeaders. For X-Forwarded-For only the first hop is used. A nil header
// collection yields the empty key, which the Store never admits.
func DeriveKey(h http.Header) string {
	if h == nil {
		return ""
	}
	for _, name := range ClientIPHeaders {
		value := strings.TrimSpace(h.Get(name))
		if value == "" {
			continue
		}
		if first, _, found := strings.Cut(value, ","); found {
			value = strings.TrimSpace(first)
		}
		if value != "" {
			return value
		}
	}
	return UnknownKey
}
