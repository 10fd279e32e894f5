// File: internal/network/httpclient_test.go
package network

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionClient_UserAgentAndCookies(t *testing.T) {
	const wantUA = "campusdaily-test-agent"

	var gotUA, gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		if c, err := r.Cookie("session"); err == nil {
			gotCookie = c.Value
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc123"})
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	client, err := NewSessionClient(ClientConfig{UserAgent: wantUA})
	require.NoError(t, err)
	defer CloseIdle(client)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, wantUA, gotUA)
	assert.Empty(t, gotCookie)

	// The private jar replays the session cookie on the second request.
	resp, err = client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc123", gotCookie)
}

func TestNewSessionClient_SeparateJars(t *testing.T) {
	a, err := NewSessionClient(ClientConfig{})
	require.NoError(t, err)
	b, err := NewSessionClient(ClientConfig{})
	require.NoError(t, err)
	assert.NotSame(t, a.Jar, b.Jar)
}

func TestPacedRoundTripper_RespectsContextCancellation(t *testing.T) {
	client, err := NewSessionClient(ClientConfig{RatePerSecond: 0.001, RateBurst: 1})
	require.NoError(t, err)
	defer CloseIdle(client)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	// First request consumes the only token.
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	// The second would wait ~1000s for a token; a cancelled context must cut
	// it short.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	_, err = client.Do(req)
	assert.Error(t, err)
}
