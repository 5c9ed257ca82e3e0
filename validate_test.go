package openroute_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/openroute"
)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func decodeProblem(t *testing.T, resp *http.Response) openroute.ProblemDetail {
	t.Helper()
	var problem openroute.ProblemDetail
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&problem))
	require.NoError(t, resp.Body.Close())
	return problem
}

func problemFields(p openroute.ProblemDetail) []string {
	fields := make([]string, 0, len(p.Errors))
	for _, e := range p.Errors {
		fields = append(fields, e.Field)
	}
	return fields
}

func TestValidation_body(t *testing.T) {
	t.Parallel()

	var handlerCalled atomic.Bool
	e := openroute.New()
	_, err := e.AddRoute(context.Background(), openroute.RouteDecl{
		Path:   "/api/widgets",
		Method: http.MethodPost,
		Handler: func(w http.ResponseWriter, _ *http.Request) {
			handlerCalled.Store(true)
			w.WriteHeader(http.StatusCreated)
		},
		Validate: &openroute.ValidateSpec{
			Body: &openroute.Rules{
				Type:     "object",
				Required: []string{"name"},
				Properties: map[string]*openroute.Rules{
					"name": {Type: "string", MinLength: intp(3)},
				},
			},
		},
	})
	require.NoError(t, err)

	srv := httptest.NewServer(e)
	defer srv.Close()

	// Missing required field fails before the handler runs.
	resp, err := http.Post(srv.URL+"/api/widgets", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))

	problem := decodeProblem(t, resp)
	assert.Equal(t, http.StatusBadRequest, problem.Status)
	assert.Equal(t, "Validation Failed", problem.Title)
	assert.Contains(t, problemFields(problem), "body.name")
	assert.False(t, handlerCalled.Load())

	// Constraint violation on a present field.
	resp, err = http.Post(srv.URL+"/api/widgets", "application/json", strings.NewReader(`{"name": "ab"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	problem = decodeProblem(t, resp)
	assert.Contains(t, problemFields(problem), "body.name")
	assert.False(t, handlerCalled.Load())

	// Unparsable body.
	resp, err = http.Post(srv.URL+"/api/widgets", "application/json", strings.NewReader(`not json`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	problem = decodeProblem(t, resp)
	assert.Contains(t, problemFields(problem), "body")
	assert.False(t, handlerCalled.Load())

	// A valid body reaches the handler.
	resp, err = http.Post(srv.URL+"/api/widgets", "application/json", strings.NewReader(`{"name": "gizmo"}`))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, handlerCalled.Load())
}

func TestValidation_path_params(t *testing.T) {
	t.Parallel()

	e := openroute.New()
	_, err := e.AddRoute(context.Background(), openroute.RouteDecl{
		Path:    "/items/{itemId}",
		Handler: echoHandler,
		Validate: &openroute.ValidateSpec{
			Params: &openroute.Rules{
				Type: "object",
				Properties: map[string]*openroute.Rules{
					"itemId": {Type: "integer", Minimum: floatp(1)},
				},
			},
		},
	})
	require.NoError(t, err)

	srv := httptest.NewServer(e)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/items/abc")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	problem := decodeProblem(t, resp)
	assert.Contains(t, problemFields(problem), "params.itemId")

	resp, err = http.Get(srv.URL + "/items/42")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestValidation_query(t *testing.T) {
	t.Parallel()

	e := openroute.New()
	_, err := e.AddRoute(context.Background(), openroute.RouteDecl{
		Path:    "/search",
		Handler: echoHandler,
		Validate: &openroute.ValidateSpec{
			Query: &openroute.Rules{
				Type:     "object",
				Required: []string{"q"},
				Properties: map[string]*openroute.Rules{
					"q":     {Type: "string"},
					"limit": {Type: "integer", Maximum: floatp(100)},
				},
			},
		},
	})
	require.NoError(t, err)

	srv := httptest.NewServer(e)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/search")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	problem := decodeProblem(t, resp)
	assert.Contains(t, problemFields(problem), "query.q")

	resp, err = http.Get(srv.URL + "/search?q=widget&limit=500")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	problem = decodeProblem(t, resp)
	assert.Contains(t, problemFields(problem), "query.limit")

	resp, err = http.Get(srv.URL + "/search?q=widget&limit=10")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestValidation_opaque_schema(t *testing.T) {
	t.Parallel()

	reject := openroute.SchemaFunc(func(_ any) []openroute.ValidationError {
		return []openroute.ValidationError{{Field: "name", Message: "taken"}}
	})

	e := openroute.New()
	_, err := e.AddRoute(context.Background(), openroute.RouteDecl{
		Path:     "/api/widgets",
		Method:   http.MethodPost,
		Handler:  echoHandler,
		Validate: &openroute.ValidateSpec{Body: reject},
	})
	require.NoError(t, err)

	srv := httptest.NewServer(e)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/widgets", "application/json", strings.NewReader(`{"name": "x"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	problem := decodeProblem(t, resp)
	assert.Contains(t, problemFields(problem), "body.name")
}

func TestRules_validate(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		rules      *openroute.Rules
		data       any
		wantFields []string
	}{
		"valid object": {
			rules: &openroute.Rules{
				Type:     "object",
				Required: []string{"name"},
				Properties: map[string]*openroute.Rules{
					"name": {Type: "string"},
				},
			},
			data: map[string]any{"name": "widget"},
		},
		"type mismatch": {
			rules: &openroute.Rules{
				Type:       "object",
				Properties: map[string]*openroute.Rules{"age": {Type: "integer"}},
			},
			data:       map[string]any{"age": "old"},
			wantFields: []string{"age"},
		},
		"number bounds": {
			rules: &openroute.Rules{
				Type:       "object",
				Properties: map[string]*openroute.Rules{"age": {Type: "integer", Minimum: floatp(0), Maximum: floatp(150)}},
			},
			data:       map[string]any{"age": float64(200)},
			wantFields: []string{"age"},
		},
		"enum violation": {
			rules: &openroute.Rules{
				Type:       "object",
				Properties: map[string]*openroute.Rules{"size": {Type: "string", Enum: []string{"s", "m", "l"}}},
			},
			data:       map[string]any{"size": "xxl"},
			wantFields: []string{"size"},
		},
		"pattern violation": {
			rules: &openroute.Rules{
				Type:       "object",
				Properties: map[string]*openroute.Rules{"code": {Type: "string", Pattern: `^[A-Z]{3}$`}},
			},
			data:       map[string]any{"code": "abc"},
			wantFields: []string{"code"},
		},
		"array items": {
			rules: &openroute.Rules{
				Type:     "array",
				MinItems: intp(2),
				Items:    &openroute.Rules{Type: "string"},
			},
			data:       []any{float64(1)},
			wantFields: []string{".", ".[0]"},
		},
		"nested required": {
			rules: &openroute.Rules{
				Type: "object",
				Properties: map[string]*openroute.Rules{
					"owner": {Type: "object", Required: []string{"email"}},
				},
			},
			data:       map[string]any{"owner": map[string]any{}},
			wantFields: []string{"owner.email"},
		},
		"stringly typed params": {
			rules: &openroute.Rules{
				Type: "object",
				Properties: map[string]*openroute.Rules{
					"count":  {Type: "integer"},
					"active": {Type: "boolean"},
				},
			},
			data: map[string]string{"count": "7", "active": "true"},
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			errs := tc.rules.Validate(tc.data)
			if len(tc.wantFields) == 0 {
				assert.Empty(t, errs)
				return
			}
			fields := make([]string, 0, len(errs))
			for _, e := range errs {
				fields = append(fields, e.Field)
			}
			for _, want := range tc.wantFields {
				assert.Contains(t, fields, want)
			}
		})
	}
}
