package openroute

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Schema is the opaque validation capability. A schema inspects decoded
// request data and reports per-field violations; an empty result means the
// data is valid.
type Schema interface {
	Validate(data any) []ValidationError
}

// SchemaFunc adapts a plain function to the Schema interface.
type SchemaFunc func(data any) []ValidationError

// Validate implements Schema.
func (f SchemaFunc) Validate(data any) []ValidationError { return f(data) }

// Rules is a declarative schema decodable from route declaration files.
// It implements Schema and converts to a document JSONSchema for spec
// generation.
type Rules struct {
	Type       string            `json:"type,omitempty"`
	Required   []string          `json:"required,omitempty"`
	Properties map[string]*Rules `json:"properties,omitempty"`
	MinLength  *int              `json:"minLength,omitempty"`
	MaxLength  *int              `json:"maxLength,omitempty"`
	Minimum    *float64          `json:"minimum,omitempty"`
	Maximum    *float64          `json:"maximum,omitempty"`
	Pattern    string            `json:"pattern,omitempty"`
	Enum       []string          `json:"enum,omitempty"`
	MinItems   *int              `json:"minItems,omitempty"`
	MaxItems   *int              `json:"maxItems,omitempty"`
	Items      *Rules            `json:"items,omitempty"`
}

// Validate implements Schema.
func (r *Rules) Validate(data any) []ValidationError {
	var errs []ValidationError
	r.check(data, "", &errs)
	return errs
}

func (r *Rules) check(v any, path string, errs *[]ValidationError) {
	switch r.Type {
	case "object", "":
		obj, ok := asObject(v)
		if !ok {
			*errs = append(*errs, ValidationError{Field: orRoot(path), Message: "must be an object", Value: v})
			return
		}
		for _, req := range r.Required {
			if _, present := obj[req]; !present {
				*errs = append(*errs, ValidationError{Field: join(path, req), Message: "is required"})
			}
		}
		for name, prop := range r.Properties {
			val, present := obj[name]
			if !present {
				continue
			}
			prop.check(val, join(path, name), errs)
		}

	case "string":
		s, ok := v.(string)
		if !ok {
			*errs = append(*errs, ValidationError{Field: orRoot(path), Message: "must be a string", Value: v})
			return
		}
		if r.MinLength != nil && len(s) < *r.MinLength {
			*errs = append(*errs, ValidationError{Field: orRoot(path), Message: fmt.Sprintf("must be at least %d characters", *r.MinLength), Value: s})
		}
		if r.MaxLength != nil && len(s) > *r.MaxLength {
			*errs = append(*errs, ValidationError{Field: orRoot(path), Message: fmt.Sprintf("must be at most %d characters", *r.MaxLength), Value: s})
		}
		if r.Pattern != "" {
			if matched, err := regexp.MatchString(r.Pattern, s); err == nil && !matched {
				*errs = append(*errs, ValidationError{Field: orRoot(path), Message: fmt.Sprintf("must match pattern %s", r.Pattern), Value: s})
			}
		}
		if len(r.Enum) > 0 && !contains(r.Enum, s) {
			*errs = append(*errs, ValidationError{Field: orRoot(path), Message: fmt.Sprintf("must be one of %v", r.Enum), Value: s})
		}

	case "integer", "number":
		f, ok := asNumber(v)
		if !ok || (r.Type == "integer" && f != float64(int64(f))) {
			*errs = append(*errs, ValidationError{Field: orRoot(path), Message: "must be a " + r.Type, Value: v})
			return
		}
		if r.Minimum != nil && f < *r.Minimum {
			*errs = append(*errs, ValidationError{Field: orRoot(path), Message: fmt.Sprintf("must be at least %v", *r.Minimum), Value: f})
		}
		if r.Maximum != nil && f > *r.Maximum {
			*errs = append(*errs, ValidationError{Field: orRoot(path), Message: fmt.Sprintf("must be at most %v", *r.Maximum), Value: f})
		}

	case "boolean":
		switch v := v.(type) {
		case bool:
		case string:
			if v != "true" && v != "false" {
				*errs = append(*errs, ValidationError{Field: orRoot(path), Message: "must be a boolean", Value: v})
			}
		default:
			*errs = append(*errs, ValidationError{Field: orRoot(path), Message: "must be a boolean", Value: v})
		}

	case "array":
		items, ok := v.([]any)
		if !ok {
			*errs = append(*errs, ValidationError{Field: orRoot(path), Message: "must be an array", Value: v})
			return
		}
		if r.MinItems != nil && len(items) < *r.MinItems {
			*errs = append(*errs, ValidationError{Field: orRoot(path), Message: fmt.Sprintf("must have at least %d items", *r.MinItems), Value: len(items)})
		}
		if r.MaxItems != nil && len(items) > *r.MaxItems {
			*errs = append(*errs, ValidationError{Field: orRoot(path), Message: fmt.Sprintf("must have at most %d items", *r.MaxItems), Value: len(items)})
		}
		if r.Items != nil {
			for i, item := range items {
				r.Items.check(item, fmt.Sprintf("%s[%d]", orRoot(path), i), errs)
			}
		}
	}
}

// asObject accepts the decoded-JSON and param-map shapes the middleware
// produces.
func asObject(v any) (map[string]any, bool) {
	switch v := v.(type) {
	case map[string]any:
		return v, true
	case map[string]string:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// asNumber coerces JSON numbers and the string values that path and query
// parameters arrive as.
func asNumber(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func orRoot(path string) string {
	if path == "" {
		return "."
	}
	return path
}

// validationMiddleware synthesizes the middleware for a declaration's
// validate spec. It always runs last in the chain, immediately before the
// handler: a request that fails validation is answered with a 400
// ProblemDetail and the handler never sees it.
func validationMiddleware(spec *ValidateSpec) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var errs []ValidationError

			if spec.Body != nil {
				body, err := readBody(r)
				if err != nil {
					errs = append(errs, ValidationError{Field: "body", Message: "must be a valid JSON object"})
				} else {
					errs = append(errs, prefixed("body", spec.Body.Validate(body))...)
				}
			}

			if spec.Params != nil {
				errs = append(errs, prefixed("params", spec.Params.Validate(routeParams(r)))...)
			}

			if spec.Query != nil {
				query := make(map[string]any)
				for k, vals := range r.URL.Query() {
					if len(vals) > 0 {
						query[k] = vals[0]
					}
				}
				errs = append(errs, prefixed("query", spec.Query.Validate(query))...)
			}

			if len(errs) > 0 {
				writeProblem(w, &ProblemDetail{
					Type:   "about:blank",
					Title:  "Validation Failed",
					Status: http.StatusBadRequest,
					Detail: fmt.Sprintf("%d validation error(s)", len(errs)),
					Errors: errs,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// readBody decodes the request body as JSON and restores it so the handler
// can read it again.
func readBody(r *http.Request) (any, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// routeParams collects the chi URL parameters of the current request.
func routeParams(r *http.Request) map[string]any {
	params := make(map[string]any)
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		for i, key := range rctx.URLParams.Keys {
			if key == "*" {
				continue
			}
			params[key] = rctx.URLParams.Values[i]
		}
	}
	return params
}

func prefixed(prefix string, errs []ValidationError) []ValidationError {
	for i := range errs {
		if errs[i].Field == "." {
			errs[i].Field = prefix
			continue
		}
		errs[i].Field = prefix + "." + errs[i].Field
	}
	return errs
}
