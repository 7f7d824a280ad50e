package routers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mi-ganesh/Document-Editor/internal/api"
	"github.com/mi-ganesh/Document-Editor/internal/relay"
	"github.com/mi-ganesh/Document-Editor/internal/session"
	"github.com/mi-ganesh/Document-Editor/internal/testhelpers"
)

var origins = []string{"http://localhost:3000", "http://localhost:5000"}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	st := testhelpers.SetupTestStore(t)
	require.NoError(t, st.Upsert(context.Background(), "room-1", "hello"))
	rl := relay.New(zap.NewNop(), st, session.NewHub(), relay.Options{})
	h := api.NewHandlers(zap.NewNop(), rl, st, api.Options{AllowedOrigins: origins})
	server := httptest.NewServer(New(h, origins))
	t.Cleanup(server.Close)
	return server
}

func TestNewRouterHealthEndpoint(t *testing.T) {
	server := newServer(t)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDownloadRoute(t *testing.T) {
	server := newServer(t)

	resp, err := http.Get(server.URL + "/download/room-1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/download/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	server := newServer(t)

	for _, origin := range origins {
		req, _ := http.NewRequest(http.MethodGet, server.URL+"/health", nil)
		req.Header.Set("Origin", origin)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, origin, resp.Header.Get("Access-Control-Allow-Origin"))
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	server := newServer(t)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "codeeditor_http_requests_total")
}
