package openroute

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// registration is one verb×path pair of a route entry with its fully
// composed handler chain.
type registration struct {
	method  string
	path    string
	handler http.Handler
}

// routeEntry is the registry record for one derived name. A single entry
// may carry several registrations when the declaration expanded to
// multiple verbs.
type routeEntry struct {
	name          string
	source        RouteSource
	kind          DeclarationKind
	custom        bool // carries hand-authored document metadata
	registrations []registration
}

// Endpoint is one verb×path pair in a route listing.
type Endpoint struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// RouteInfo is the read-only listing entry for a registered route.
type RouteInfo struct {
	Name      string          `json:"name"`
	Source    string          `json:"source"`
	Kind      DeclarationKind `json:"kind"`
	Custom    bool            `json:"custom"`
	Endpoints []Endpoint      `json:"endpoints"`
}

// RegisterSource loads a declaration from the given source and registers it.
func (e *Engine) RegisterSource(ctx context.Context, src RouteSource) error {
	decl, err := src.Load()
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registerDeclarationLocked(ctx, decl, src)
}

// RegisterFunction registers an imperative function declaration under the
// given source name. The function is re-invoked on reload.
func (e *Engine) RegisterFunction(name string, fn RouterFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registerFunctionLocked(fn, funcSource{name: name, fn: fn})
}

// AddRoute registers an object declaration directly, bypassing module
// loading. The route name is synthesized since there is no source file to
// derive one from; the synthesized name is returned.
func (e *Engine) AddRoute(ctx context.Context, decl RouteDecl) (string, error) {
	src := declSource{
		name: "route_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		decl: ObjectDeclaration(decl),
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.registerObjectLocked(ctx, decl, src); err != nil {
		return "", err
	}
	return src.name, nil
}

// Reload re-loads the named route from its recorded source and re-runs full
// registration. The previous chain and document entry are superseded
// atomically: dispatch resolves the current entry at request time.
func (e *Engine) Reload(ctx context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.routes[name]
	if !ok {
		return &RouteNotFoundError{Name: name}
	}

	decl, err := entry.source.Load()
	if err != nil {
		return fmt.Errorf("reload %q: %w", name, err)
	}
	return e.registerDeclarationLocked(ctx, decl, entry.source)
}

// Remove deletes the named route and regenerates the document. The route's
// dispatch bindings are dropped, so requests to its endpoints answer 404
// immediately; the router's mount table is not touched.
func (e *Engine) Remove(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.routes[name]; !ok {
		return &RouteNotFoundError{Name: name}
	}

	delete(e.routes, name)
	for key, owner := range e.bindings {
		if owner == name {
			delete(e.bindings, key)
		}
	}

	e.regenerateLocked()
	e.logger.Info("route removed", "route", name)
	return nil
}

// RouteCount returns the number of registered verb×path pairs.
func (e *Engine) RouteCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	n := 0
	for _, entry := range e.routes {
		n += len(entry.registrations)
	}
	return n
}

// Route returns the listing entry for one route name.
func (e *Engine) Route(name string) (RouteInfo, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	entry, ok := e.routes[name]
	if !ok {
		return RouteInfo{}, false
	}
	return entry.info(), true
}

// Routes lists all registered routes sorted by name.
func (e *Engine) Routes() []RouteInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]RouteInfo, 0, len(e.routes))
	for _, entry := range e.routes {
		out = append(out, entry.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (entry *routeEntry) info() RouteInfo {
	info := RouteInfo{
		Name:   entry.name,
		Source: entry.source.Location(),
		Kind:   entry.kind,
		Custom: entry.custom,
	}
	for _, reg := range entry.registrations {
		info.Endpoints = append(info.Endpoints, Endpoint{Method: reg.method, Path: reg.path})
	}
	return info
}

// registerDeclarationLocked dispatches on the declaration's kind.
func (e *Engine) registerDeclarationLocked(ctx context.Context, decl Declaration, src RouteSource) error {
	switch decl.kind {
	case KindFunction:
		return e.registerFunctionLocked(decl.fn, src)
	case KindObject, KindPlugin:
		return e.registerObjectLocked(ctx, *decl.object, src)
	default:
		return &LoadShapeError{Source: src.Location(), Got: "empty declaration"}
	}
}

// registerObjectLocked normalizes an object declaration into a route entry:
// plugin first, then handler resolution, verb validation, chain composition,
// dispatch binding, and document regeneration. Verbs are validated before
// anything is registered, so a bad verb never leaves partial registrations.
func (e *Engine) registerObjectLocked(ctx context.Context, decl RouteDecl, src RouteSource) error {
	name := deriveRouteName(src.Location())

	if decl.Path == "" || decl.Path[0] != '/' {
		return fmt.Errorf("register %s: route path %q must begin with '/'", src.Location(), decl.Path)
	}

	if decl.Plugin != nil {
		if err := e.registerPluginLocked(ctx, *decl.Plugin, name); err != nil {
			return err
		}
	}

	var handler http.Handler
	switch {
	case decl.Handler != nil:
		handler = decl.Handler
	case decl.HandlerRef != "":
		if h, ok := e.handlers[decl.HandlerRef]; ok {
			handler = h
		}
	}
	if handler == nil && e.fallback != nil {
		handler = e.fallback
	}
	if handler == nil {
		return &MissingHandlerError{Source: src.Location(), Handler: decl.HandlerRef}
	}

	methods, err := normalizeMethods(&decl)
	if err != nil {
		return err
	}

	chain := e.globalChainLocked()
	chain = append(chain, decl.Middleware...)
	if decl.Validate != nil {
		chain = append(chain, validationMiddleware(decl.Validate))
	}
	composed := compose(handler, chain)

	kind := KindObject
	if decl.Plugin != nil {
		kind = KindPlugin
	}
	switch s := src.(type) {
	case pluginSource:
		kind = KindPlugin
	case declSource:
		// Reload clears the carried plugin; the kind stays plugin.
		if s.decl.kind == KindPlugin {
			kind = KindPlugin
		}
	}
	entry := &routeEntry{
		name:   name,
		source: src,
		kind:   kind,
		custom: decl.OpenAPI != nil,
	}
	for _, m := range methods {
		entry.registrations = append(entry.registrations, registration{method: m, path: decl.Path, handler: composed})
	}

	e.storeEntryLocked(entry)

	if decl.OpenAPI != nil {
		for _, m := range methods {
			e.spec.addCustomPath(decl.Path, m, *decl.OpenAPI, decl.Validate)
		}
	}

	e.regenerateLocked()
	e.logger.Info("route registered", "route", name, "kind", kind, "endpoints", len(entry.registrations))
	return nil
}

// registerFunctionLocked runs a function declaration against a fresh
// sub-scope, introspects what it registered, and mounts the result on the
// main router under a single route entry.
func (e *Engine) registerFunctionLocked(fn RouterFunc, src RouteSource) error {
	sub := chi.NewRouter()
	fn(sub, Env{Logger: e.logger, Config: e.config})

	global := e.globalChainLocked()
	entry := &routeEntry{
		name:   deriveRouteName(src.Location()),
		source: src,
		kind:   KindFunction,
	}

	err := chi.Walk(sub, func(method, route string, handler http.Handler, mws ...func(http.Handler) http.Handler) error {
		chain := append([]Middleware(nil), global...)
		for _, m := range mws {
			chain = append(chain, Middleware(m))
		}
		entry.registrations = append(entry.registrations, registration{
			method:  method,
			path:    normalizeWalkRoute(route),
			handler: compose(handler, chain),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("introspect %s: %w", src.Location(), err)
	}

	e.storeEntryLocked(entry)
	e.regenerateLocked()
	e.logger.Info("route registered", "route", entry.name, "kind", KindFunction, "endpoints", len(entry.registrations))
	return nil
}

// storeEntryLocked replaces any previous entry under the same name
// (last-write-wins), rebinds dispatch, and ensures each verb×path pair is
// mounted on the router exactly once. Replacement is total: custom document
// entries pinned by the old declaration are unpinned, so a re-declaration
// that drops its metadata falls back to auto-generation.
func (e *Engine) storeEntryLocked(entry *routeEntry) {
	if old, ok := e.routes[entry.name]; ok {
		for _, reg := range old.registrations {
			key := bindingKey(reg.method, reg.path)
			if e.bindings[key] == entry.name {
				delete(e.bindings, key)
			}
			if old.custom {
				e.spec.removeCustom(reg.method, reg.path)
			}
		}
	}

	e.routes[entry.name] = entry
	for _, reg := range entry.registrations {
		key := bindingKey(reg.method, reg.path)
		e.bindings[key] = entry.name
		e.mountLocked(reg.method, reg.path)
	}
}

// mountLocked adds a verb×path pair to the mount table, once, and swaps in
// a router that carries it. All later rebinds and removals are handled by
// the dispatcher's registry lookup, never by touching the router again.
func (e *Engine) mountLocked(method, path string) {
	key := bindingKey(method, path)
	if e.mounted[key] {
		return
	}
	e.mounted[key] = true
	e.rebuildRouterLocked()
}

// dispatcher resolves the current route entry for a verb×path pair at
// request time. A removed or superseded binding answers 404 without any
// router mutation.
func (e *Engine) dispatcher(method, path string) http.Handler {
	key := bindingKey(method, path)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var h http.Handler
		e.mu.RLock()
		if name, ok := e.bindings[key]; ok {
			if entry, ok := e.routes[name]; ok {
				for _, reg := range entry.registrations {
					if reg.method == method && reg.path == path {
						h = reg.handler
						break
					}
				}
			}
		}
		e.mu.RUnlock()

		if h == nil {
			http.NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func bindingKey(method, path string) string {
	return method + " " + path
}

// regenerateLocked recomputes the document from every non-custom entry.
func (e *Engine) regenerateLocked() {
	var endpoints []endpointRef
	for _, entry := range e.routes {
		if entry.custom {
			continue
		}
		for _, reg := range entry.registrations {
			endpoints = append(endpoints, endpointRef{method: reg.method, path: reg.path})
		}
	}
	e.spec.regenerate(endpoints)
}

// normalizeWalkRoute cleans up the route patterns chi.Walk reports for
// nested routers.
func normalizeWalkRoute(route string) string {
	if len(route) > 1 {
		route = strings.TrimSuffix(route, "/")
	}
	return route
}
