package clients

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tap-hookdeck/pkg/testutil"
)

func TestWithTokenSourceSetsBearerHeader(t *testing.T) {
	var gotAuth, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	base := NewHTTPClient(nil, testutil.TestLogger(t))
	defer base.Close()

	authed := base.WithTokenSource(BearerTokenSource("sk_test"))
	resp, err := authed.Get(ctx, srv.URL, nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer sk_test", gotAuth)
	assert.Equal(t, "tap-hookdeck", gotUA)

	// the base client stays unauthenticated
	resp, err = base.Get(ctx, srv.URL, map[string]string{"User-Agent": "custom"})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, gotAuth)
	assert.Equal(t, "custom", gotUA)
}

func TestStatsCountFailures(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	c := NewHTTPClient(nil, testutil.TestLogger(t))
	_, err := c.Get(ctx, "http://127.0.0.1:1/unreachable", nil)
	require.Error(t, err)

	stats := c.GetStats()
	assert.Equal(t, int64(1), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.FailedRequests)
	assert.Equal(t, 0.0, stats.SuccessRate)
}

func TestDerivedClientsShareCounters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	base := NewHTTPClient(nil, testutil.TestLogger(t))
	for _, key := range []string{"a", "b"} {
		resp, err := base.WithTokenSource(BearerTokenSource(key)).Get(ctx, srv.URL, nil)
		require.NoError(t, err)
		resp.Body.Close()
	}

	assert.Equal(t, int64(2), base.GetStats().TotalRequests)
	assert.Equal(t, 100.0, base.GetStats().SuccessRate)
}
