package rpc

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAllowSourceWindow(t *testing.T) {
	server := &Server{rateLimiters: make(map[string]*rateLimiter)}
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < maxTxPerWindow; i++ {
		require.True(t, server.allowSource("10.0.0.1", now), "request %d should pass", i)
	}
	require.False(t, server.allowSource("10.0.0.1", now), "window should be exhausted")

	// A different source has its own budget.
	require.True(t, server.allowSource("10.0.0.2", now))

	// The window resets after a minute.
	require.True(t, server.allowSource("10.0.0.1", now.Add(rateLimitWindow)))
}

func TestClientSourcePrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest("POST", "/", nil)
	req.RemoteAddr = "192.0.2.1:9999"
	require.Equal(t, "192.0.2.1", clientSource(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	require.Equal(t, "203.0.113.7", clientSource(req))
}

func TestRequireAuth(t *testing.T) {
	server := &Server{authToken: "secret"}

	req := httptest.NewRequest("POST", "/", nil)
	require.NotNil(t, server.requireAuth(req), "missing header must fail")

	req.Header.Set("Authorization", "Basic secret")
	require.NotNil(t, server.requireAuth(req), "non-bearer scheme must fail")

	req.Header.Set("Authorization", "Bearer wrong")
	require.NotNil(t, server.requireAuth(req), "wrong token must fail")

	req.Header.Set("Authorization", "Bearer secret")
	require.Nil(t, server.requireAuth(req))

	unconfigured := &Server{}
	require.NotNil(t, unconfigured.requireAuth(req), "auth must fail closed without a configured token")
}
