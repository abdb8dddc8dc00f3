package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"mtm-hub/src/logger"
	"mtm-hub/src/quote"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, doubleEncode bool, target string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := newRouter(newWalker(7, 10), doubleEncode, 0, logger.NewNopLogger())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestPayloadDecodes(t *testing.T) {
	for _, double := range []bool{false, true} {
		rec := serve(t, double, "/MTM?UserID=A1")
		require.Equal(t, http.StatusOK, rec.Code)

		v, err := quote.DecodeMTMPayload(rec.Body.Bytes())
		require.NoError(t, err)
		assert.InDelta(t, 0, v, 10)
	}
}

func TestMissingUser(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, serve(t, false, "/MTM").Code)
}

func TestWalkIsPerUser(t *testing.T) {
	w := newWalker(3, 5)
	a := w.next("A1")
	w.next("B2")
	assert.InDelta(t, a, w.next("A1"), 5)
}
