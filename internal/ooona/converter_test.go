package ooona

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"subtitle-batcher/internal/domain"
)

func testSettings(baseURL string) domain.OoonaSettings {
	return domain.OoonaSettings{
		Enabled:      true,
		BaseURL:      baseURL,
		ClientID:     "client",
		ClientSecret: "shh",
		APIKey:       "key",
		APIName:      "batcher",
	}
}

func newTestServer(t *testing.T, tokenCalls *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(tokenCalls, 1)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "secret", r.PostFormValue("grant_type"))
		require.Equal(t, "client", r.PostFormValue("client_id"))
		require.Equal(t, "shh", r.PostFormValue("client_secret"))
		require.Equal(t, "key", r.PostFormValue("secret"))
		require.Equal(t, "batcher", r.PostFormValue("name"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-123","expires_in":3600}`))
	})
	mux.HandleFunc("/external/convert/srt/ooona", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _ = w.Write([]byte(`{"project":"converted"}`))
	})
	return httptest.NewServer(mux)
}

// TestConvert authenticates, uploads the SRT, and returns the project JSON.
func TestConvert(t *testing.T) {
	var tokenCalls int32
	server := newTestServer(t, &tokenCalls)
	defer server.Close()

	c, err := New(testSettings(server.URL))
	require.NoError(t, err)

	out, err := c.Convert(context.Background(), "1\n00:00:00,000 --> 00:00:01,000\nhi\n")
	require.NoError(t, err)
	require.Equal(t, `{"project":"converted"}`, out)
	require.EqualValues(t, 1, atomic.LoadInt32(&tokenCalls))
}

// TestConvertReusesToken verifies the cached token is reused until close
// to expiry, then refreshed.
func TestConvertReusesToken(t *testing.T) {
	var tokenCalls int32
	server := newTestServer(t, &tokenCalls)
	defer server.Close()

	c, err := New(testSettings(server.URL))
	require.NoError(t, err)

	current := time.Now()
	c.now = func() time.Time { return current }

	_, err = c.Convert(context.Background(), "srt")
	require.NoError(t, err)
	_, err = c.Convert(context.Background(), "srt")
	require.NoError(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&tokenCalls))

	// Move the clock past the renewal point.
	current = current.Add(time.Hour)
	_, err = c.Convert(context.Background(), "srt")
	require.NoError(t, err)
	require.EqualValues(t, 2, atomic.LoadInt32(&tokenCalls))
}

// TestConvertAuthFailure surfaces token endpoint errors.
func TestConvertAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer server.Close()

	c, err := New(testSettings(server.URL))
	require.NoError(t, err)

	_, err = c.Convert(context.Background(), "srt")
	require.Error(t, err)
	require.Contains(t, err.Error(), "ooona auth")
}

// TestNewValidatesSettings lists every missing credential field.
func TestNewValidatesSettings(t *testing.T) {
	_, err := New(domain.OoonaSettings{Enabled: true, BaseURL: "http://x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "client ID")
	require.Contains(t, err.Error(), "client secret")
	require.Contains(t, err.Error(), "API key")
	require.Contains(t, err.Error(), "API name")

	_, err = New(domain.OoonaSettings{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "base URL")
}
