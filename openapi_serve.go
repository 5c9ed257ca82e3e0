package openroute

import (
	"encoding/json"
	"io"
	"net/http"

	"gopkg.in/yaml.v3"
)

// ServeSpec registers a GET handler at the given path that serves the live
// API document as JSON. The response is a snapshot and safe to cache.
func (e *Engine) ServeSpec(pattern string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.staticLocked(pattern, func(w http.ResponseWriter, _ *http.Request) {
		doc := e.Spec()
		w.Header().Set("Content-Type", "application/json")
		//nolint:errcheck,gosec // best-effort after WriteHeader
		json.NewEncoder(w).Encode(doc)
	})
}

// ServeSpecYAML registers a GET handler at the given path that serves the
// live API document as YAML.
func (e *Engine) ServeSpecYAML(pattern string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.staticLocked(pattern, func(w http.ResponseWriter, _ *http.Request) {
		doc := e.Spec()
		w.Header().Set("Content-Type", "application/yaml")
		//nolint:errcheck,gosec // best-effort after WriteHeader
		yaml.NewEncoder(w).Encode(doc)
	})
}

// ServeStatus registers a GET handler at the given path that serves the
// administrative status snapshot.
func (e *Engine) ServeStatus(pattern string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.staticLocked(pattern, func(w http.ResponseWriter, _ *http.Request) {
		status := e.Status()
		w.Header().Set("Content-Type", "application/json")
		if !status.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		//nolint:errcheck,gosec // best-effort after WriteHeader
		json.NewEncoder(w).Encode(status)
	})
}

// WriteSpec writes the API document as indented JSON to w.
func (e *Engine) WriteSpec(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(e.Spec())
}

// WriteSpecYAML writes the API document as YAML to w.
func (e *Engine) WriteSpecYAML(w io.Writer) error {
	return yaml.NewEncoder(w).Encode(e.Spec())
}
