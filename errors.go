package openroute

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-multierror"
)

// LoadShapeError reports a route module whose content is neither a
// function declaration nor an object declaration.
type LoadShapeError struct {
	Source string // originating module path
	Got    string // what was found instead
}

func (e *LoadShapeError) Error() string {
	return fmt.Sprintf("load %s: declaration must be a function or an object, got %s", e.Source, e.Got)
}

// LoadFailure is a single module failure inside an AggregateLoadError.
type LoadFailure struct {
	Path string
	Err  error
}

// AggregateLoadError wraps the per-file failures from a directory load.
// Every module that loaded successfully remains registered; the error
// only describes the modules that did not.
type AggregateLoadError struct {
	Failures []LoadFailure

	errs *multierror.Error
}

func newAggregateLoadError(failures []LoadFailure) *AggregateLoadError {
	var merr *multierror.Error
	for _, f := range failures {
		merr = multierror.Append(merr, fmt.Errorf("%s: %w", f.Path, f.Err))
	}
	return &AggregateLoadError{Failures: failures, errs: merr}
}

func (e *AggregateLoadError) Error() string {
	return fmt.Sprintf("route load: %d module(s) failed: %s", len(e.Failures), e.errs.Error())
}

// Count returns the number of modules that failed to load.
func (e *AggregateLoadError) Count() int { return len(e.Failures) }

// Unwrap exposes the underlying per-file errors for errors.Is/As.
func (e *AggregateLoadError) Unwrap() error { return e.errs }

// MissingHandlerError reports an object declaration without a usable handler.
type MissingHandlerError struct {
	Source  string
	Handler string // named handler reference, if any
}

func (e *MissingHandlerError) Error() string {
	if e.Handler != "" {
		return fmt.Sprintf("register %s: handler %q is not registered", e.Source, e.Handler)
	}
	return fmt.Sprintf("register %s: declaration has no handler", e.Source)
}

// InvalidMethodError reports an HTTP verb outside the supported set.
type InvalidMethodError struct {
	Method string
}

func (e *InvalidMethodError) Error() string {
	return fmt.Sprintf("invalid HTTP method %q", e.Method)
}

// MissingPluginNameError reports a plugin declaration without a name.
type MissingPluginNameError struct {
	Source string // route or module that carried the plugin
}

func (e *MissingPluginNameError) Error() string {
	return fmt.Sprintf("register plugin from %s: plugin has no name", e.Source)
}

// DependencyNotFoundError reports a plugin dependency that has not been
// registered yet. Dependencies must be registered before their dependents.
type DependencyNotFoundError struct {
	Plugin     string
	Dependency string
}

func (e *DependencyNotFoundError) Error() string {
	return fmt.Sprintf("plugin %q: dependency %q is not registered", e.Plugin, e.Dependency)
}

// RouteNotFoundError reports a reload or removal of an unknown route name.
type RouteNotFoundError struct {
	Name string
}

func (e *RouteNotFoundError) Error() string {
	return fmt.Sprintf("route %q is not registered", e.Name)
}

// ProblemDetail is an RFC 9457 problem details response. The synthesized
// validation middleware responds with one when a request fails validation.
//
//nolint:errname // RFC 9457 standard name
type ProblemDetail struct {
	Type     string            `json:"type,omitempty"`
	Title    string            `json:"title,omitempty"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// Error returns the detail message (or title if detail is empty).
func (p *ProblemDetail) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}

// ValidationError describes a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// writeProblem writes a ProblemDetail as application/problem+json.
func writeProblem(w http.ResponseWriter, p *ProblemDetail) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	//nolint:errcheck,gosec // best-effort after WriteHeader
	json.NewEncoder(w).Encode(p)
}
