package openroute_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/openroute"
)

func writeRouteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func echoHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // best-effort response write
	w.Write([]byte("ok"))
}

func TestLoadAll_wellformed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeRouteFile(t, dir, "users.route.json", `{
		"path": "/v1/users",
		"methods": ["get", "post"],
		"handler": "echo"
	}`)
	writeRouteFile(t, dir, "health.route.json", `{
		"path": "/health/live",
		"method": "get",
		"handler": "echo"
	}`)

	e := openroute.New(openroute.WithHandler("echo", echoHandler))
	require.NoError(t, e.LoadAll(context.Background(), dir))

	// Route count is verb×declaration pairs.
	assert.Equal(t, 3, e.RouteCount())

	users, ok := e.Route("users")
	require.True(t, ok)
	assert.Equal(t, openroute.KindObject, users.Kind)
	assert.Len(t, users.Endpoints, 2)

	srv := httptest.NewServer(e)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/users")
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoadAll_partial_failure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeRouteFile(t, dir, "users.route.json", `{"path": "/v1/users", "method": "get", "handler": "echo"}`)
	writeRouteFile(t, dir, "shape.route.json", `["not", "an", "object"]`)
	writeRouteFile(t, dir, "method.route.json", `{"path": "/v1/x", "method": "yeet", "handler": "echo"}`)
	writeRouteFile(t, dir, "handler.route.json", `{"path": "/v1/y", "method": "get", "handler": "nope"}`)

	e := openroute.New(openroute.WithHandler("echo", echoHandler))
	err := e.LoadAll(context.Background(), dir)
	require.Error(t, err)

	var aggErr *openroute.AggregateLoadError
	require.ErrorAs(t, err, &aggErr)
	assert.Equal(t, 3, aggErr.Count())

	// Well-formed siblings stay registered.
	assert.Equal(t, 1, e.RouteCount())
	_, ok := e.Route("users")
	assert.True(t, ok)

	assert.False(t, e.Status().Healthy)
}

func TestLoadAll_failure_kinds(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		content string
		check   func(t *testing.T, err error)
	}{
		"bad shape": {
			content: `"just a string"`,
			check: func(t *testing.T, err error) {
				var shapeErr *openroute.LoadShapeError
				require.ErrorAs(t, err, &shapeErr)
				assert.Equal(t, "string", shapeErr.Got)
			},
		},
		"invalid method": {
			content: `{"path": "/v1/z", "method": "teapot", "handler": "echo"}`,
			check: func(t *testing.T, err error) {
				var methodErr *openroute.InvalidMethodError
				require.ErrorAs(t, err, &methodErr)
				assert.Equal(t, "teapot", methodErr.Method)
			},
		},
		"unknown handler": {
			content: `{"path": "/v1/z", "method": "get", "handler": "ghost"}`,
			check: func(t *testing.T, err error) {
				var handlerErr *openroute.MissingHandlerError
				require.ErrorAs(t, err, &handlerErr)
				assert.Equal(t, "ghost", handlerErr.Handler)
			},
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			path := writeRouteFile(t, dir, "bad.route.json", tc.content)

			e := openroute.New(openroute.WithHandler("echo", echoHandler))
			err := e.LoadOne(context.Background(), path)
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestLoadAll_missing_directory(t *testing.T) {
	t.Parallel()

	e := openroute.New()
	require.NoError(t, e.LoadAll(context.Background(), filepath.Join(t.TempDir(), "missing")))
	assert.Equal(t, 0, e.RouteCount())
}

func TestDiscover_nested(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "admin"), 0o750))
	writeRouteFile(t, dir, "users.route.json", `{}`)
	writeRouteFile(t, filepath.Join(dir, "admin"), "audit.route.json", `{}`)
	writeRouteFile(t, dir, "notes.txt", "not a route")

	e := openroute.New()
	candidates, err := e.Discover(dir)
	require.NoError(t, err)
	assert.Len(t, candidates, 2)
}

func TestReload_reflects_disk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeRouteFile(t, dir, "users.route.json", `{"path": "/v1/users", "method": "get", "handler": "echo"}`)

	e := openroute.New(openroute.WithHandler("echo", echoHandler))
	require.NoError(t, e.LoadAll(context.Background(), dir))

	srv := httptest.NewServer(e)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/users")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Edit the module on disk, then reload by name.
	require.NoError(t, os.WriteFile(path, []byte(`{"path": "/v1/accounts", "method": "get", "handler": "echo"}`), 0o600))
	require.NoError(t, e.Reload(context.Background(), "users"))

	info, ok := e.Route("users")
	require.True(t, ok)
	require.Len(t, info.Endpoints, 1)
	assert.Equal(t, "/v1/accounts", info.Endpoints[0].Path)

	resp, err = http.Get(srv.URL + "/v1/accounts")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// The superseded endpoint answers 404 without any router mutation.
	resp, err = http.Get(srv.URL + "/v1/users")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReload_unknown_route(t *testing.T) {
	t.Parallel()

	e := openroute.New()
	err := e.Reload(context.Background(), "ghost")

	var notFound *openroute.RouteNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "ghost", notFound.Name)
}
