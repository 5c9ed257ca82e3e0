package openroute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// RouteSource is the capability a route declaration arrives through: a file
// on disk, a programmatic declaration, or a plugin-contributed route. Load
// must produce a fresh declaration on every call so that a reload reflects
// the source's current state.
type RouteSource interface {
	Location() string
	Load() (Declaration, error)
}

// FileSource loads an object declaration from a *.route.json file. Every
// Load re-reads the file, so on-disk edits are picked up by reload.
type FileSource struct {
	Path string
}

// Location implements RouteSource.
func (s FileSource) Location() string { return s.Path }

// Load implements RouteSource.
func (s FileSource) Load() (Declaration, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return Declaration{}, err
	}

	// The file's top level must be an object; anything else is a shape
	// error rather than a syntax error.
	var probe any
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Declaration{}, fmt.Errorf("decode %s: %w", s.Path, err)
	}
	if _, ok := probe.(map[string]any); !ok {
		return Declaration{}, &LoadShapeError{Source: s.Path, Got: jsonShape(probe)}
	}

	var fd fileDecl
	if err := json.Unmarshal(raw, &fd); err != nil {
		return Declaration{}, fmt.Errorf("decode %s: %w", s.Path, err)
	}
	return ObjectDeclaration(fd.routeDecl()), nil
}

// fileDecl is the on-disk shape of an object declaration.
type fileDecl struct {
	Path     string        `json:"path"`
	Method   string        `json:"method"`
	Methods  []string      `json:"methods"`
	Handler  string        `json:"handler"`
	Validate *fileValidate `json:"validate"`
	OpenAPI  *Operation    `json:"openapi"`
}

type fileValidate struct {
	Body   *Rules `json:"body"`
	Params *Rules `json:"params"`
	Query  *Rules `json:"query"`
}

func (fd *fileDecl) routeDecl() RouteDecl {
	decl := RouteDecl{
		Path:       fd.Path,
		Method:     fd.Method,
		Methods:    fd.Methods,
		HandlerRef: fd.Handler,
		OpenAPI:    fd.OpenAPI,
	}
	if v := fd.Validate; v != nil {
		spec := &ValidateSpec{}
		if v.Body != nil {
			spec.Body = v.Body
		}
		if v.Params != nil {
			spec.Params = v.Params
		}
		if v.Query != nil {
			spec.Query = v.Query
		}
		decl.Validate = spec
	}
	return decl
}

func jsonShape(v any) string {
	switch v.(type) {
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// declSource wraps a programmatic object declaration (AddRoute).
type declSource struct {
	name string
	decl Declaration
}

func (s declSource) Location() string { return s.name }

// Load implements RouteSource. A carried plugin registers once at first
// registration; reload must not register it again.
func (s declSource) Load() (Declaration, error) {
	decl := s.decl
	if decl.object != nil && decl.object.Plugin != nil {
		obj := *decl.object
		obj.Plugin = nil
		decl.object = &obj
	}
	return decl, nil
}

// funcSource wraps a function declaration; reload re-invokes the function.
type funcSource struct {
	name string
	fn   RouterFunc
}

func (s funcSource) Location() string           { return s.name }
func (s funcSource) Load() (Declaration, error) { return FunctionDeclaration(s.fn), nil }

// Discover lists the route declaration files under rootDir, sorted. A
// missing directory is not an error: it yields an empty list and a warning.
// Any other traversal error propagates.
func (e *Engine) Discover(rootDir string) ([]string, error) {
	var candidates []string

	err := filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), routeFileSuffix) {
			candidates = append(candidates, path)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			e.logger.Warn("routes directory does not exist", "dir", rootDir)
			return nil, nil
		}
		return nil, fmt.Errorf("discover %s: %w", rootDir, err)
	}

	sort.Strings(candidates)
	return candidates, nil
}

// LoadAll discovers every route module under rootDir and loads them all
// concurrently. Each load runs to completion independently; a broken module
// never blocks its siblings and is never rolled back over. When any module
// fails the call returns an AggregateLoadError carrying the per-file
// reasons, with every successfully loaded route still registered.
func (e *Engine) LoadAll(ctx context.Context, rootDir string) error {
	candidates, err := e.Discover(rootDir)
	if err != nil {
		e.setLoadErr(err)
		return err
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []LoadFailure
	)
	for _, path := range candidates {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			if err := e.LoadOne(ctx, path); err != nil {
				mu.Lock()
				failures = append(failures, LoadFailure{Path: path, Err: err})
				mu.Unlock()
			}
		}(path)
	}
	wg.Wait()

	if len(failures) > 0 {
		sort.Slice(failures, func(i, j int) bool { return failures[i].Path < failures[j].Path })
		aggErr := newAggregateLoadError(failures)
		e.setLoadErr(aggErr)
		e.logger.Error("route load completed with failures",
			"dir", rootDir,
			"loaded", len(candidates)-len(failures),
			"failed", len(failures),
		)
		return aggErr
	}

	e.setLoadErr(nil)
	e.logger.Info("routes loaded", "dir", rootDir, "modules", len(candidates))
	return nil
}

// LoadOne loads a single route module from disk and registers it. The file
// is read fresh on every call.
func (e *Engine) LoadOne(ctx context.Context, path string) error {
	return e.RegisterSource(ctx, FileSource{Path: path})
}

func (e *Engine) setLoadErr(err error) {
	e.mu.Lock()
	e.loadErr = err
	e.mu.Unlock()
}
