package openroute

import (
	"encoding/json"
	"sort"
	"strings"
)

// Document is the top-level OpenAPI 3.1 document.
type Document struct {
	OpenAPI    string              `json:"openapi" yaml:"openapi"`
	Info       Info                `json:"info" yaml:"info"`
	Servers    []Server            `json:"servers,omitempty" yaml:"servers,omitempty"`
	Paths      map[string]PathItem `json:"paths" yaml:"paths"`
	Components Components          `json:"components" yaml:"components"`
	Tags       []Tag               `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Info holds API metadata, fixed at engine construction.
type Info struct {
	Title       string   `json:"title" yaml:"title"`
	Version     string   `json:"version" yaml:"version"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Contact     *Contact `json:"contact,omitempty" yaml:"contact,omitempty"`
	License     *License `json:"license,omitempty" yaml:"license,omitempty"`
}

// Contact is the API contact block.
type Contact struct {
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
	URL   string `json:"url,omitempty" yaml:"url,omitempty"`
}

// License is the API license block.
type License struct {
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	URL  string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Server is one entry of the servers array.
type Server struct {
	URL         string `json:"url" yaml:"url"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Tag is a named tag seen across path entries.
type Tag struct {
	Name string `json:"name" yaml:"name"`
}

// PathItem maps lowercase HTTP verbs to operations.
type PathItem map[string]*Operation

// Operation describes a single API operation on a path.
type Operation struct {
	Summary     string                `json:"summary,omitempty" yaml:"summary,omitempty"`
	Description string                `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string              `json:"tags,omitempty" yaml:"tags,omitempty"`
	OperationID string                `json:"operationId,omitempty" yaml:"operationId,omitempty"`
	Parameters  []Parameter           `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	RequestBody *RequestBody          `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Responses   map[string]Response   `json:"responses,omitempty" yaml:"responses,omitempty"`
	Security    []map[string][]string `json:"security,omitempty" yaml:"security,omitempty"`
	Deprecated  bool                  `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
}

// Parameter describes a single operation parameter.
type Parameter struct {
	Name        string      `json:"name" yaml:"name"`
	In          string      `json:"in" yaml:"in"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool        `json:"required,omitempty" yaml:"required,omitempty"`
	Schema      *JSONSchema `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// RequestBody describes the request body.
type RequestBody struct {
	Required bool             `json:"required" yaml:"required"`
	Content  map[string]Media `json:"content" yaml:"content"`
}

// Media is a media type object with an optional schema.
type Media struct {
	Schema *JSONSchema `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// Response describes a single response, inline or by reference.
type Response struct {
	Ref         string           `json:"$ref,omitempty" yaml:"$ref,omitempty"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Content     map[string]Media `json:"content,omitempty" yaml:"content,omitempty"`
}

// Components holds the document's reusable definitions. Security schemes
// and shared responses are fixed at construction; schemas are populated
// only by explicit AddSchema calls.
type Components struct {
	Schemas         map[string]*JSONSchema    `json:"schemas,omitempty" yaml:"schemas,omitempty"`
	SecuritySchemes map[string]SecurityScheme `json:"securitySchemes,omitempty" yaml:"securitySchemes,omitempty"`
	Responses       map[string]Response       `json:"responses,omitempty" yaml:"responses,omitempty"`
}

// SecurityScheme describes an authentication scheme.
type SecurityScheme struct {
	Type         string `json:"type" yaml:"type"`
	Scheme       string `json:"scheme,omitempty" yaml:"scheme,omitempty"`
	BearerFormat string `json:"bearerFormat,omitempty" yaml:"bearerFormat,omitempty"`
	In           string `json:"in,omitempty" yaml:"in,omitempty"`
	Name         string `json:"name,omitempty" yaml:"name,omitempty"`
}

// JSONSchema represents a JSON Schema object (subset for OpenAPI 3.1).
type JSONSchema struct {
	Type                 string                 `json:"type,omitempty" yaml:"type,omitempty"`
	Format               string                 `json:"format,omitempty" yaml:"format,omitempty"`
	Properties           map[string]*JSONSchema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Items                *JSONSchema            `json:"items,omitempty" yaml:"items,omitempty"`
	Required             []string               `json:"required,omitempty" yaml:"required,omitempty"`
	Description          string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Enum                 []string               `json:"enum,omitempty" yaml:"enum,omitempty"`
	Ref                  string                 `json:"$ref,omitempty" yaml:"$ref,omitempty"`
	AdditionalProperties *JSONSchema            `json:"additionalProperties,omitempty" yaml:"additionalProperties,omitempty"`
}

// endpointRef identifies one registered path+verb pair fed to regeneration.
type endpointRef struct {
	method string
	path   string
}

// specBuilder owns the live API document: the fixed info and components,
// the auto-generation heuristics, and the custom-entry bookkeeping.
type specBuilder struct {
	doc    Document
	custom map[string]bool // "verb path" entries pinned by hand-authored metadata
	tags   map[string]bool // tag names ever seen
	public []string        // path prefixes exempt from security requirements
}

func newSpecBuilder(cfg *Config) *specBuilder {
	b := &specBuilder{
		custom: make(map[string]bool),
		tags:   make(map[string]bool),
		public: cfg.PublicPaths,
		doc: Document{
			OpenAPI: "3.1.0",
			Info: Info{
				Title:       cfg.Title,
				Version:     cfg.Version,
				Description: cfg.Description,
				Contact:     cfg.Contact.block(),
				License:     cfg.License.block(),
			},
			Paths: make(map[string]PathItem),
			Components: Components{
				Schemas: make(map[string]*JSONSchema),
				SecuritySchemes: map[string]SecurityScheme{
					"bearerAuth": {Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
					"apiKeyAuth": {Type: "apiKey", In: "header", Name: "X-API-Key"},
				},
				Responses: sharedResponses(),
			},
		},
	}
	for _, s := range cfg.Servers {
		b.doc.Servers = append(b.doc.Servers, Server{URL: s.URL, Description: s.Description})
	}
	return b
}

func sharedResponses() map[string]Response {
	problem := &JSONSchema{
		Type: "object",
		Properties: map[string]*JSONSchema{
			"title":  {Type: "string"},
			"status": {Type: "integer"},
			"detail": {Type: "string"},
			"errors": {Type: "array", Items: &JSONSchema{
				Type: "object",
				Properties: map[string]*JSONSchema{
					"field":   {Type: "string"},
					"message": {Type: "string"},
				},
			}},
		},
	}
	errBody := &JSONSchema{
		Type: "object",
		Properties: map[string]*JSONSchema{
			"status":  {Type: "integer"},
			"message": {Type: "string"},
		},
	}
	return map[string]Response{
		"ValidationError": {
			Description: "Request validation failed",
			Content:     map[string]Media{"application/problem+json": {Schema: problem}},
		},
		"NotFound": {
			Description: "Resource not found",
			Content:     map[string]Media{"application/json": {Schema: errBody}},
		},
		"InternalError": {
			Description: "Internal server error",
			Content:     map[string]Media{"application/json": {Schema: errBody}},
		},
	}
}

func entryKey(method, path string) string {
	return strings.ToLower(method) + " " + path
}

// regenerate rebuilds the document's paths: every custom entry survives
// untouched, every non-custom entry is discarded and recomputed from the
// endpoints currently registered.
func (b *specBuilder) regenerate(endpoints []endpointRef) {
	paths := make(map[string]PathItem)

	for path, item := range b.doc.Paths {
		for verb, op := range item {
			if !b.custom[entryKey(verb, path)] {
				continue
			}
			if paths[path] == nil {
				paths[path] = make(PathItem)
			}
			paths[path][verb] = op
		}
	}

	for _, ep := range endpoints {
		verb := strings.ToLower(ep.method)
		if b.custom[entryKey(verb, ep.path)] {
			continue
		}
		if paths[ep.path] == nil {
			paths[ep.path] = make(PathItem)
		}
		paths[ep.path][verb] = b.autoOperation(ep.method, ep.path)
	}

	b.doc.Paths = paths
	b.doc.Tags = b.tagList()
}

// addCustomPath installs a hand-authored document entry and pins it so
// future regeneration passes leave it alone.
func (b *specBuilder) addCustomPath(path, method string, op Operation, v *ValidateSpec) {
	merged := op
	merged.Parameters = mergeParameters(derivedParameters(v), merged.Parameters)
	if merged.RequestBody == nil {
		if body := derivedRequestBody(v); body != nil {
			merged.RequestBody = body
		}
	}
	if merged.Responses == nil {
		merged.Responses = defaultResponses(strings.ToUpper(method))
	}
	if merged.Security == nil && !b.isPublic(path) {
		merged.Security = securityRequirements()
	}

	for _, t := range merged.Tags {
		b.tags[t] = true
	}

	verb := strings.ToLower(method)
	if b.doc.Paths[path] == nil {
		b.doc.Paths[path] = make(PathItem)
	}
	b.doc.Paths[path][verb] = &merged
	b.custom[entryKey(verb, path)] = true
	b.doc.Tags = b.tagList()
}

// removeCustom unpins a hand-authored entry. The next regeneration drops it
// or replaces it with an auto entry for the still-registered endpoint.
func (b *specBuilder) removeCustom(method, path string) {
	delete(b.custom, entryKey(method, path))
}

// addSchema inserts into the reusable schema table. The schema's own shape
// is not validated.
func (b *specBuilder) addSchema(name string, schema JSONSchema) {
	s := schema
	b.doc.Components.Schemas[name] = &s
}

// snapshot returns a deep copy of the current document. Callers may not
// observe later registry mutations through it.
func (b *specBuilder) snapshot() Document {
	raw, err := json.Marshal(b.doc)
	if err != nil {
		return b.doc
	}
	var out Document
	if err := json.Unmarshal(raw, &out); err != nil {
		return b.doc
	}
	if out.Paths == nil {
		out.Paths = make(map[string]PathItem)
	}
	return out
}

func (b *specBuilder) pathCount() int { return len(b.doc.Paths) }

func (b *specBuilder) tagList() []Tag {
	names := make([]string, 0, len(b.tags))
	for name := range b.tags {
		names = append(names, name)
	}
	sort.Strings(names)
	tags := make([]Tag, len(names))
	for i, name := range names {
		tags[i] = Tag{Name: name}
	}
	return tags
}

func (b *specBuilder) isPublic(path string) bool {
	for _, prefix := range b.public {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// autoOperation synthesizes a document entry for an undocumented route.
func (b *specBuilder) autoOperation(method, path string) *Operation {
	verb := strings.ToUpper(method)
	resource := resourceNoun(path)

	op := &Operation{
		Summary:     summaryFor(verb, resource),
		Description: descriptionFor(verb, resource),
		Tags:        []string{tagFor(path)},
		Parameters:  pathParameters(path),
		Responses:   defaultResponses(verb),
	}

	if verb == "POST" || verb == "PUT" || verb == "PATCH" {
		op.RequestBody = &RequestBody{
			Required: true,
			Content:  map[string]Media{"application/json": {Schema: &JSONSchema{Type: "object"}}},
		}
	}

	if !b.isPublic(path) {
		op.Security = securityRequirements()
	}

	b.tags[op.Tags[0]] = true
	return op
}

func securityRequirements() []map[string][]string {
	return []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
}

// tagFor derives a tag from the last non-parameter path segment.
func tagFor(path string) string {
	segments := splitPath(path)
	for i := len(segments) - 1; i >= 0; i-- {
		if !isParamSegment(segments[i]) {
			return capitalize(segments[i])
		}
	}
	return "Default"
}

// resourceNoun is the last path segment, parameter or not, else "resource".
func resourceNoun(path string) string {
	segments := splitPath(path)
	if len(segments) == 0 {
		return "resource"
	}
	last := segments[len(segments)-1]
	if isParamSegment(last) {
		return strings.Trim(last, "{}")
	}
	return last
}

func summaryFor(verb, resource string) string {
	switch verb {
	case "GET":
		return "Get " + resource
	case "POST":
		return "Create " + resource
	case "PUT":
		return "Update " + resource
	case "PATCH":
		return "Partially update " + resource
	case "DELETE":
		return "Delete " + resource
	default:
		return verb + " " + resource
	}
}

func descriptionFor(verb, resource string) string {
	switch verb {
	case "GET":
		return "Retrieve " + resource + " items"
	case "POST":
		return "Create a new " + resource + " with the provided data"
	case "PUT":
		return "Update an existing " + resource + " with the provided data"
	case "PATCH":
		return "Apply a partial update to an existing " + resource
	case "DELETE":
		return "Delete an existing " + resource
	default:
		return verb + " " + resource
	}
}

// pathParameters yields a required path parameter for every {name} token.
// A token whose name contains "id" is typed integer, everything else string.
func pathParameters(path string) []Parameter {
	var params []Parameter
	for _, seg := range splitPath(path) {
		if !isParamSegment(seg) {
			continue
		}
		name := strings.Trim(seg, "{}")
		typ := "string"
		if strings.Contains(strings.ToLower(name), "id") {
			typ = "integer"
		}
		params = append(params, Parameter{
			Name:     name,
			In:       "path",
			Required: true,
			Schema:   &JSONSchema{Type: typ},
		})
	}
	return params
}

func defaultResponses(verb string) map[string]Response {
	resp := make(map[string]Response)

	switch verb {
	case "POST":
		resp["201"] = Response{Description: "Created"}
	case "DELETE":
		resp["204"] = Response{Description: "No content"}
	default:
		resp["200"] = Response{
			Description: "Successful response",
			Content:     map[string]Media{"application/json": {Schema: &JSONSchema{Type: "object"}}},
		}
	}

	resp["400"] = Response{Ref: "#/components/responses/ValidationError"}
	resp["500"] = Response{Ref: "#/components/responses/InternalError"}

	switch verb {
	case "GET", "PUT", "PATCH", "DELETE":
		resp["404"] = Response{Ref: "#/components/responses/NotFound"}
	}

	return resp
}

// mergeParameters combines validation-derived and hand-authored parameters.
// A hand-authored parameter supersedes a derived one with the same name and
// location.
func mergeParameters(derived, authored []Parameter) []Parameter {
	if len(derived) == 0 {
		return authored
	}
	seen := make(map[string]bool, len(authored))
	for _, p := range authored {
		seen[p.In+" "+p.Name] = true
	}
	merged := make([]Parameter, 0, len(derived)+len(authored))
	for _, p := range derived {
		if !seen[p.In+" "+p.Name] {
			merged = append(merged, p)
		}
	}
	return append(merged, authored...)
}

// derivedParameters folds a validate spec's params and query rules into
// document parameters. Only declarative Rules schemas contribute; opaque
// schemas stay opaque.
func derivedParameters(v *ValidateSpec) []Parameter {
	if v == nil {
		return nil
	}
	var params []Parameter
	params = append(params, rulesToParameters("path", v.Params)...)
	params = append(params, rulesToParameters("query", v.Query)...)
	return params
}

func rulesToParameters(in string, s Schema) []Parameter {
	rules, ok := s.(*Rules)
	if !ok || rules == nil {
		return nil
	}

	names := make([]string, 0, len(rules.Properties))
	for name := range rules.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]Parameter, 0, len(names))
	for _, name := range names {
		schema := rules.Properties[name].toJSONSchema()
		params = append(params, Parameter{
			Name:     name,
			In:       in,
			Required: in == "path" || contains(rules.Required, name),
			Schema:   schema,
		})
	}
	return params
}

func derivedRequestBody(v *ValidateSpec) *RequestBody {
	if v == nil {
		return nil
	}
	rules, ok := v.Body.(*Rules)
	if !ok || rules == nil {
		return nil
	}
	return &RequestBody{
		Required: true,
		Content:  map[string]Media{"application/json": {Schema: rules.toJSONSchema()}},
	}
}

// toJSONSchema converts declarative rules to their document form.
func (r *Rules) toJSONSchema() *JSONSchema {
	if r == nil {
		return nil
	}
	s := &JSONSchema{
		Type:     r.Type,
		Required: append([]string(nil), r.Required...),
		Enum:     append([]string(nil), r.Enum...),
		Items:    r.Items.toJSONSchema(),
	}
	if s.Type == "" {
		s.Type = "object"
	}
	if len(r.Properties) > 0 {
		s.Properties = make(map[string]*JSONSchema, len(r.Properties))
		for name, prop := range r.Properties {
			s.Properties[name] = prop.toJSONSchema()
		}
	}
	return s
}

func splitPath(path string) []string {
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}

func isParamSegment(seg string) bool {
	return strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
