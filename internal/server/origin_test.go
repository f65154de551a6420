package server

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginPolicy(t *testing.T) {
	policy, invalid := newOriginPolicy([]string{"HTTP://LocalHost:8080", " ", "not a url"})
	assert.Equal(t, []string{"not a url"}, invalid)

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{"exact match", "http://localhost:8080", true},
		{"case-insensitive", "http://LOCALHOST:8080", true},
		{"other host", "http://evil.example", false},
		{"other port", "http://localhost:9090", false},
		{"garbage", "::::", false},
		{"no origin header", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, policy.allows(r))
		})
	}
}

func TestOriginPolicyWildcard(t *testing.T) {
	policy, _ := newOriginPolicy([]string{"*"})
	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "http://anything.example")
	assert.True(t, policy.allows(r))
}
