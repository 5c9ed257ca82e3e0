package openroute

import (
	"context"
	"fmt"
	"time"
)

// Plugin is a named, versioned extension unit. A plugin may contribute a
// one-time initialization hook, a globally registered middleware, and a set
// of object-style route declarations. Dependencies name plugins that must
// already be registered; there is no deferred resolution.
type Plugin struct {
	Name         string
	Version      string
	Dependencies []string

	// Init runs to completion before the plugin's middleware and routes are
	// registered. It must not register routes on the engine itself.
	Init func(ctx context.Context) error

	// Middleware is registered globally under a derived name. It affects
	// routes registered after the plugin, never retroactively.
	Middleware Middleware

	Routes []RouteDecl
}

// PluginInfo is the read-only listing entry for a registered plugin.
type PluginInfo struct {
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	Dependencies []string  `json:"dependencies,omitempty"`
	Routes       int       `json:"routes"`
	RegisteredAt time.Time `json:"registered_at"`
}

// pluginRecord is the immutable registration record of one plugin.
type pluginRecord struct {
	plugin       Plugin
	owner        string // route or module the plugin arrived with
	registeredAt time.Time
}

// RegisterPlugin registers a standalone plugin: dependency check, init hook,
// global middleware, then the plugin's own routes.
func (e *Engine) RegisterPlugin(ctx context.Context, p Plugin) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registerPluginLocked(ctx, p, "api")
}

func (e *Engine) registerPluginLocked(ctx context.Context, p Plugin, owner string) error {
	if p.Name == "" {
		return &MissingPluginNameError{Source: owner}
	}
	if _, exists := e.plugins[p.Name]; exists {
		return fmt.Errorf("plugin %q is already registered", p.Name)
	}

	for _, dep := range p.Dependencies {
		if _, ok := e.plugins[dep]; !ok {
			return &DependencyNotFoundError{Plugin: p.Name, Dependency: dep}
		}
	}

	if p.Init != nil {
		if err := p.Init(ctx); err != nil {
			return fmt.Errorf("plugin %q: init: %w", p.Name, err)
		}
	}

	if p.Middleware != nil {
		e.useLocked("plugin_"+sanitizeName(p.Name), p.Middleware)
	}

	for _, decl := range p.Routes {
		src := pluginSource{plugin: p.Name, decl: decl}
		if err := e.registerObjectLocked(ctx, decl, src); err != nil {
			return fmt.Errorf("plugin %q: route %s: %w", p.Name, decl.Path, err)
		}
	}

	e.plugins[p.Name] = pluginRecord{plugin: p, owner: owner, registeredAt: time.Now()}
	e.pluginOrder = append(e.pluginOrder, p.Name)

	e.logger.Info("plugin registered",
		"plugin", p.Name,
		"version", p.Version,
		"routes", len(p.Routes),
		"owner", owner,
	)
	return nil
}

// PluginCount returns the number of registered plugins.
func (e *Engine) PluginCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.plugins)
}

// Plugins lists registered plugins in registration order.
func (e *Engine) Plugins() []PluginInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]PluginInfo, 0, len(e.pluginOrder))
	for _, name := range e.pluginOrder {
		rec := e.plugins[name]
		out = append(out, PluginInfo{
			Name:         rec.plugin.Name,
			Version:      rec.plugin.Version,
			Dependencies: append([]string(nil), rec.plugin.Dependencies...),
			Routes:       len(rec.plugin.Routes),
			RegisteredAt: rec.registeredAt,
		})
	}
	return out
}

// pluginSource attributes plugin-contributed routes to their plugin and
// keeps them reload-capable.
type pluginSource struct {
	plugin string
	decl   RouteDecl
}

func (s pluginSource) Location() string {
	return fmt.Sprintf("plugin:%s%s", s.plugin, s.decl.Path)
}

func (s pluginSource) Load() (Declaration, error) {
	decl := s.decl
	decl.Plugin = nil // the plugin itself registers once
	return ObjectDeclaration(decl), nil
}
