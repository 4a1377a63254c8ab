package ratelimit

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveKey(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{
			name:    "forwarded for first hop",
			headers: map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.1", "X-Real-IP": "10.0.0.2"},
			want:    "198.51.100.1",
		},
		{
			name:    "real ip when no forwarded for",
			headers: map[string]string{"X-Real-IP": " 198.51.100.2 "},
			want:    "198.51.100.2",
		},
		{
			name:    "cloudflare header",
			headers: map[string]string{"CF-Connecting-IP": "198.51.100.3"},
			want:    "198.51.100.3",
		},
		{
			name:    "blank forwarded for falls through",
			headers: map[string]string{"X-Forwarded-For": "  ", "X-Client-IP": "198.51.100.4"},
			want:    "198.51.100.4",
		},
		{
			name:    "empty first hop falls through",
			headers: map[string]string{"X-Forwarded-For": ", 10.0.0.1", "X-Real-IP": "198.51.100.5"},
			want:    "198.51.100.5",
		},
		{
			name: "nothing present",
			want: UnknownKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			assert.Equal(t, tt.want, DeriveKey(h))
		})
	}
}

func TestDeriveKey_NilHeaderIsNotAdmitted(t *testing.T) {
	key := DeriveKey(nil)
	assert.Empty(t, key)

	store := NewStore(Config{})
	assert.False(t, store.Admit(key))
	assert.Equal(t, 0, store.Len())
}
