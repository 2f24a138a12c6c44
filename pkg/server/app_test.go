package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"ReviewCast/pkg/config"
	xhttp "ReviewCast/pkg/http"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScheduler struct{ started, stopped bool }

func (f *fakeScheduler) Start() { f.started = true }
func (f *fakeScheduler) Stop(_ context.Context) { f.stopped = true }

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error { return xhttp.SuccessResponse(c, "pong") })
}

func TestServerRoutes(t *testing.T) {
	cfg := config.Default()
	a := New(cfg, nil, pingHandler{}, nil)

	for _, path := range []string{"/ping", cfg.Metrics.Path} {
		rec := httptest.NewRecorder()
		a.Server().Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRunContextLifecycle(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	sched := &fakeScheduler{}
	a := New(cfg, nil, pingHandler{}, sched)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, a.RunContext(ctx))
	assert.True(t, sched.started)
	assert.True(t, sched.stopped)
}
