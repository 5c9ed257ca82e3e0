package openroute_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/openroute"
)

func TestRecovery(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := openroute.New(openroute.WithLogger(logger))
	e.Use("recovery", openroute.Recovery(logger))

	_, err := e.AddRoute(context.Background(), openroute.RouteDecl{
		Path: "/boom",
		Handler: func(_ http.ResponseWriter, _ *http.Request) {
			panic("kaboom")
		},
	})
	require.NoError(t, err)

	srv := httptest.NewServer(e)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/boom")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	e := openroute.New(openroute.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	e.Use("logging", openroute.RequestLogger(logger))

	_, err := e.AddRoute(context.Background(), openroute.RouteDecl{Path: "/logged", Handler: echoHandler})
	require.NoError(t, err)

	srv := httptest.NewServer(e)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/logged")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	out := buf.String()
	assert.Contains(t, out, "method=GET")
	assert.Contains(t, out, "path=/logged")
	assert.Contains(t, out, "status=200")
}
