package httpx

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterPerIP(t *testing.T) {
	l := NewRateLimiter(0.001, 1)
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))
}

func TestRemoteIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, "192.0.2.7", remoteIP(r))
	r.RemoteAddr = "192.0.2.7"
	assert.Equal(t, "192.0.2.7", remoteIP(r))
}
