package openroute

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
)

// Engine is the owned context object holding all registries: routes,
// plugins, named middleware, handlers, and the live API document. There is
// no process-wide state; independent engines coexist freely. Engine
// implements http.Handler.
type Engine struct {
	mu sync.RWMutex

	// router is swapped wholesale whenever the mount table changes.
	// Requests load it atomically, so chi's trie is never mutated while a
	// request traverses it.
	router atomic.Pointer[chi.Mux]

	logger *slog.Logger
	config *Config

	routes   map[string]*routeEntry
	bindings map[string]string // "METHOD path" → route name
	mounted  map[string]bool   // dispatcher already on the router
	statics  []staticRoute     // fixed endpoints replayed on router rebuilds

	middleware  []namedMiddleware
	plugins     map[string]pluginRecord
	pluginOrder []string

	handlers map[string]http.HandlerFunc
	fallback http.HandlerFunc

	spec    *specBuilder
	loadErr error
}

// staticRoute is a fixed GET endpoint (document, status) kept outside the
// route registry.
type staticRoute struct {
	pattern string
	handler http.HandlerFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithConfig sets the engine configuration.
func WithConfig(cfg *Config) Option {
	return func(e *Engine) {
		e.config = cfg
	}
}

// WithHandler registers a named handler that route declaration files can
// reference.
func WithHandler(name string, h http.HandlerFunc) Option {
	return func(e *Engine) {
		e.handlers[name] = h
	}
}

// WithHandlerFallback sets a handler used when a declaration references a
// name that is not registered. Intended for document-only tooling; without
// it an unresolved reference is a MissingHandlerError.
func WithHandlerFallback(h http.HandlerFunc) Option {
	return func(e *Engine) {
		e.fallback = h
	}
}

// New creates an Engine with the given options.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:   slog.Default(),
		config:   DefaultConfig(),
		routes:   make(map[string]*routeEntry),
		bindings: make(map[string]string),
		mounted:  make(map[string]bool),
		plugins:  make(map[string]pluginRecord),
		handlers: make(map[string]http.HandlerFunc),
	}
	e.router.Store(chi.NewRouter())
	for _, opt := range opts {
		opt(e)
	}
	e.config.applyDefaults()
	e.spec = newSpecBuilder(e.config)
	return e
}

// rebuildRouterLocked builds a fresh router carrying every mounted
// dispatcher and static endpoint, then swaps it in. In-flight requests keep
// the previous router; dispatch resolves entries through the registry at
// request time, so a swap is never observable as a behavior change.
func (e *Engine) rebuildRouterLocked() {
	mux := chi.NewRouter()
	for key := range e.mounted {
		method, path, ok := strings.Cut(key, " ")
		if !ok {
			continue
		}
		mux.Method(method, path, e.dispatcher(method, path))
	}
	for _, s := range e.statics {
		mux.Get(s.pattern, s.handler)
	}
	e.router.Store(mux)
}

// staticLocked records a fixed endpoint and rebuilds the router with it.
func (e *Engine) staticLocked(pattern string, h http.HandlerFunc) {
	e.statics = append(e.statics, staticRoute{pattern: pattern, handler: h})
	e.rebuildRouterLocked()
}

// Use registers a global middleware under a name. Insertion order defines
// the chain prefix inherited by every route registered afterwards;
// re-using a name replaces the function but keeps its position.
func (e *Engine) Use(name string, mw Middleware) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.useLocked(name, mw)
}

func (e *Engine) useLocked(name string, mw Middleware) {
	for i := range e.middleware {
		if e.middleware[i].name == name {
			e.middleware[i].mw = mw
			return
		}
	}
	e.middleware = append(e.middleware, namedMiddleware{name: name, mw: mw})
}

// globalChainLocked snapshots the current global middleware chain.
func (e *Engine) globalChainLocked() []Middleware {
	chain := make([]Middleware, 0, len(e.middleware))
	for _, m := range e.middleware {
		chain = append(chain, m.mw)
	}
	return chain
}

// MiddlewareCount returns the number of globally registered middlewares.
func (e *Engine) MiddlewareCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.middleware)
}

// RegisterHandler adds a named handler to the engine's handler table.
// Declaration files bind to handlers by these names.
func (e *Engine) RegisterHandler(name string, h http.HandlerFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[name] = h
}

// Spec returns a read-only snapshot of the live API document.
func (e *Engine) Spec() Document {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.spec.snapshot()
}

// AddSchema inserts a named schema into the document's reusable schema
// table.
func (e *Engine) AddSchema(name string, schema JSONSchema) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spec.addSchema(name, schema)
}

// Status is the administrative snapshot consumed by health and status
// collaborators.
type Status struct {
	Routes     int  `json:"routes"`
	Plugins    int  `json:"plugins"`
	Middleware int  `json:"middleware"`
	Paths      int  `json:"paths"`
	Healthy    bool `json:"healthy"`
}

// Status reports registry counts and the aggregate health flag. The engine
// is healthy while the last directory load completed without failures.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	routes := 0
	for _, entry := range e.routes {
		routes += len(entry.registrations)
	}
	return Status{
		Routes:     routes,
		Plugins:    len(e.plugins),
		Middleware: len(e.middleware),
		Paths:      e.spec.pathCount(),
		Healthy:    e.loadErr == nil,
	}
}

// ServeHTTP implements http.Handler.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.router.Load().ServeHTTP(w, r)
}

// ListenAndServe starts an HTTP server on the given address. It blocks
// until the context is cancelled, then shuts down gracefully.
func (e *Engine) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
