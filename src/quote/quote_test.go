package quote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mtm-hub/src/helpers"
	"mtm-hub/src/logger"
	"mtm-hub/src/models"
	"mtm-hub/src/network"
	"mtm-hub/src/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMTMPayload(t *testing.T) {
	ok := map[string]float64{
		`{"response": 130.5}`:                   130.5,
		`{"response": "-42"}`:                   -42,
		`{"response": " 7.25 ", "extra": true}`: 7.25,
		`"{\"response\": 99}"`:                  99,
		`"{\"response\": \"12\"}"`:              12,
	}
	for body, want := range ok {
		got, err := DecodeMTMPayload([]byte(body))
		require.NoError(t, err, body)
		assert.Equal(t, want, got, body)
	}

	bad := []string{
		``,
		`not json`,
		`[1,2]`,
		`{"mtm": 1}`,
		`{"response": null}`,
		`{"response": "abc"}`,
		`{"response": true}`,
		`{"response": "NaN"}`,
		`"\"{\\\"response\\\": 1}\""`, // encoded three times
		`"plain string"`,
	}
	for _, body := range bad {
		_, err := DecodeMTMPayload([]byte(body))
		assert.Error(t, err, body)
	}
}

func TestTerminalURL(t *testing.T) {
	assert.Equal(t, "http://10.0.0.1:8556/MTM", TerminalURL("10.0.0.1:8556"))
	assert.Equal(t, "https://host/MTM", TerminalURL("https://host/"))
}

func newClient(clock *utils.FakeClock) *TerminalClient {
	cfg := &models.MConfig{Network: models.MNetworkConfig{RequestTimeout: 2}}
	return NewTerminalClient(network.NewHTTPManager(cfg, logger.NewNopLogger()), clock, logger.NewNopLogger())
}

func TestFetchMTM(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/MTM", r.URL.Path)
		assert.Equal(t, "A1", r.URL.Query().Get("UserID"))
		w.Write([]byte(`"{\"response\": 130}"`))
	}))
	defer srv.Close()

	now := time.Date(2025, 3, 10, 9, 20, 0, 0, time.UTC)
	q, err := newClient(utils.NewFakeClock(now)).FetchMTM(context.Background(),
		models.MAccount{UserID: "A1", Address: strings.TrimPrefix(srv.URL, "http://")})
	require.NoError(t, err)
	assert.Equal(t, 130.0, q.AbsoluteMTM)
	assert.Equal(t, "A1", q.UserID)
	assert.Equal(t, now, q.FetchedAt)
	assert.NotEmpty(t, q.RawPayload)
}

func TestFetchMTMFailuresAreFetchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("UserID") == "DOWN" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := newClient(utils.NewFakeClock(time.Now()))
	addr := strings.TrimPrefix(srv.URL, "http://")

	_, err := c.FetchMTM(context.Background(), models.MAccount{UserID: "DOWN", Address: addr})
	assert.True(t, helpers.IsFetchFailure(err))

	_, err = c.FetchMTM(context.Background(), models.MAccount{UserID: "A1", Address: addr})
	assert.True(t, helpers.IsFetchFailure(err))
	assert.ErrorIs(t, err, helpers.ErrFetchFailed)
}
