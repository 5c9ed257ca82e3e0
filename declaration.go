package openroute

import (
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// DeclarationKind identifies which authoring style produced a route.
type DeclarationKind string

const (
	// KindFunction is an imperative function declaration that registers
	// its own sub-routes on a router handle.
	KindFunction DeclarationKind = "function"

	// KindObject is a declarative object declaration.
	KindObject DeclarationKind = "object"

	// KindPlugin is an object declaration wrapped in a plugin.
	KindPlugin DeclarationKind = "plugin"
)

// Env carries the collaborators handed to function declarations.
type Env struct {
	Logger *slog.Logger
	Config *Config
}

// RouterFunc is a function declaration. It receives a fresh sub-scope of
// the router and registers routes on it imperatively.
type RouterFunc func(r chi.Router, env Env)

// RouteDecl is a declarative object declaration for one endpoint. A
// declaration may expand to several verbs; each verb produces a distinct
// registration under the same derived name.
type RouteDecl struct {
	Path string

	// Method or Methods selects the HTTP verbs. Both empty defaults to GET.
	Method  string
	Methods []string

	// Handler is the terminal request handler. HandlerRef names a handler
	// registered on the engine's handler table instead; it is how
	// declaration files on disk bind to code.
	Handler    http.HandlerFunc
	HandlerRef string

	// Middleware runs after global middleware and before validation.
	Middleware []Middleware

	Validate *ValidateSpec

	// OpenAPI is a hand-authored document fragment. Its presence marks the
	// path+verb entries as custom: auto-generation never overwrites them.
	OpenAPI *Operation

	// Plugin, when set, is registered before the route itself.
	Plugin *Plugin
}

// ValidateSpec holds up to three opaque schemas keyed by request part.
type ValidateSpec struct {
	Body   Schema
	Params Schema
	Query  Schema
}

// Declaration is the tagged union produced by a RouteSource. The shape is
// decoded once at load time; registration dispatches on Kind.
type Declaration struct {
	kind   DeclarationKind
	fn     RouterFunc
	object *RouteDecl
}

// FunctionDeclaration wraps an imperative function declaration.
func FunctionDeclaration(fn RouterFunc) Declaration {
	return Declaration{kind: KindFunction, fn: fn}
}

// ObjectDeclaration wraps a declarative object declaration. A declaration
// carrying a plugin is classified as plugin-wrapped.
func ObjectDeclaration(decl RouteDecl) Declaration {
	kind := KindObject
	if decl.Plugin != nil {
		kind = KindPlugin
	}
	d := decl
	return Declaration{kind: kind, object: &d}
}

// Kind returns the declaration's authoring style.
func (d Declaration) Kind() DeclarationKind { return d.kind }

// allowedMethods is the fixed verb set accepted by object declarations.
var allowedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// normalizeMethods expands a declaration's verb selection into a list of
// canonical uppercase verbs, rejecting anything outside the allowed set.
func normalizeMethods(decl *RouteDecl) ([]string, error) {
	raw := decl.Methods
	if len(raw) == 0 {
		if decl.Method != "" {
			raw = []string{decl.Method}
		} else {
			raw = []string{http.MethodGet}
		}
	}

	methods := make([]string, 0, len(raw))
	for _, m := range raw {
		verb := strings.ToUpper(strings.TrimSpace(m))
		if !allowedMethods[verb] {
			return nil, &InvalidMethodError{Method: m}
		}
		methods = append(methods, verb)
	}
	return methods, nil
}

const routeFileSuffix = ".route.json"

// deriveRouteName derives the registry key for a route from its source
// location, sanitized to an identifier charset. File sources use the base
// filename; plugin sources use the plugin name plus the route path.
func deriveRouteName(location string) string {
	if rest, ok := strings.CutPrefix(location, "plugin:"); ok {
		return sanitizeName(rest)
	}
	name := strings.TrimSuffix(filepath.Base(location), routeFileSuffix)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return sanitizeName(name)
}

// sanitizeName maps every character outside [A-Za-z0-9_] to an underscore.
func sanitizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
