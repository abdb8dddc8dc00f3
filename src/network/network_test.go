package network

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"mtm-hub/src/logger"
	"mtm-hub/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(retries int) *HTTPManager {
	cfg := &models.MConfig{Network: models.MNetworkConfig{RequestTimeout: 2, MaxRetries: retries}}
	nm := NewHTTPManager(cfg, logger.NewNopLogger())
	nm.Backoff = time.Millisecond
	return nm
}

func TestGetPassesParamsAndUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/MTM", r.URL.Path)
		assert.Equal(t, "A1", r.URL.Query().Get("UserID"))
		assert.Equal(t, defaultUserAgent, r.Header.Get("User-Agent"))
		w.Write([]byte(`{"response":1}`))
	}))
	defer srv.Close()

	body, err := newManager(0).Get(context.Background(), srv.URL+"/MTM", map[string]string{"UserID": "A1"})
	require.NoError(t, err)
	assert.Equal(t, `{"response":1}`, string(body))
}

func TestGetNon2xxIsError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newManager(0).Get(context.Background(), srv.URL, nil)
	assert.ErrorContains(t, err, "502")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := newManager(2).Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newManager(3).Get(ctx, srv.URL, nil)
	assert.Error(t, err)
}
