package logging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	Replace(zap.New(core))
	t.Cleanup(func() { Replace(zap.NewNop()) })

	var seen string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tree", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	done := logs.FilterMessage("request completed").All()
	require.Len(t, done, 1)
	assert.Equal(t, int64(http.StatusTeapot), done[0].ContextMap()["status"])
	assert.Equal(t, seen, done[0].ContextMap()["request_id"])
}

func TestMiddlewareKeepsIncomingRequestID(t *testing.T) {
	Replace(zap.NewNop())

	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}

func TestWithContextFallsBack(t *testing.T) {
	Replace(zap.NewNop())
	assert.NotNil(t, WithContext(context.Background()))
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestInitRejectsNothing(t *testing.T) {
	require.NoError(t, Init(Config{Level: "bogus", Format: "console", OutputPath: "stderr"}))
	SetLevel("debug")
	assert.True(t, L().Core().Enabled(zap.DebugLevel))
	SetLevel("info")
}
