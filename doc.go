// Package openroute is a dynamic route-registration and OpenAPI-generation
// engine. Route declarations are discovered from a filesystem tree or
// supplied programmatically, registered against a chi router, and a live
// OpenAPI 3.1 document is derived from the registry on every mutation:
// auto-generated entries for undocumented routes, hand-authored entries
// preserved verbatim.
//
// An Engine owns all state: the route registry, the plugin registry, the
// named middleware registry, and the document. Independent engines coexist
// freely.
//
//	e := openroute.New(
//	    openroute.WithConfig(cfg),
//	    openroute.WithHandler("widgets.create", createWidget),
//	)
//	e.Use("recovery", openroute.Recovery(logger))
//	if err := e.LoadAll(ctx, cfg.RoutesDir); err != nil { ... }
//	e.ServeSpec("/openapi.json")
//
// Routes come in three declaration styles: imperative functions that
// register sub-routes on a router handle, declarative objects (including
// *.route.json files on disk), and plugin-wrapped declarations. Object
// declarations may carry declarative validation rules; the engine
// synthesizes middleware that rejects invalid requests with an RFC 9457
// problem response before the handler runs.
//
// Reload and removal resolve through a dispatch indirection: the router's
// mount table is written once per verb×path pair, and every request looks
// up the current registry entry, so a reloaded route serves its new
// handler immediately and a removed route answers 404.
package openroute
