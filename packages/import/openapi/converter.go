// Package openapi turns the multipart operations of an OpenAPI 3 document
// into hitupload configurations.
package openapi

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/abdul-hamid-achik/hitupload/packages/core/config"
)

const multipartFormData = "multipart/form-data"

// Converter converts OpenAPI specs to upload configurations.
type Converter struct {
	baseURL   string
	operation string
}

// Option is a functional option for Converter
type Option func(*Converter)

// WithBaseURL sets a custom base URL, overriding the document's first server.
func WithBaseURL(url string) Option {
	return func(c *Converter) {
		c.baseURL = url
	}
}

// WithOperation selects the operation to convert by operationId or by
// "METHOD /path".
func WithOperation(op string) Option {
	return func(c *Converter) {
		c.operation = op
	}
}

// NewConverter creates a new OpenAPI converter
func NewConverter(opts ...Option) *Converter {
	c := &Converter{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload is one operation that accepts multipart/form-data.
type Upload struct {
	OperationID string
	Method      string
	Path        string
	Summary     string
	FileField   string
	Multiple    bool
	Fields      []config.Field
	Status      []int

	// Warnings describe parts of the operation a config cannot express.
	Warnings []string
}

// Key identifies the operation as "METHOD /path".
func (u *Upload) Key() string {
	return u.Method + " " + u.Path
}

// Load reads an OpenAPI document from a file path or an http(s) URL.
func Load(ctx context.Context, source string) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	loader.IsExternalRefsAllowed = true

	var (
		doc *openapi3.T
		err error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		var u *url.URL
		u, err = url.Parse(source)
		if err == nil {
			doc, err = loader.LoadFromURI(u)
		}
	} else {
		doc, err = loader.LoadFromFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI spec: %w", err)
	}
	return doc, nil
}

// Uploads lists every multipart operation in doc, sorted by path and method.
func (c *Converter) Uploads(doc *openapi3.T) []*Upload {
	if doc.Paths == nil {
		return nil
	}

	paths := make([]string, 0, len(doc.Paths.Map()))
	for path := range doc.Paths.Map() {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var uploads []*Upload
	for _, path := range paths {
		item := doc.Paths.Map()[path]
		if item == nil {
			continue
		}
		ops := item.Operations()
		methods := make([]string, 0, len(ops))
		for m := range ops {
			methods = append(methods, m)
		}
		sort.Strings(methods)

		for _, method := range methods {
			if u := convertOperation(path, method, ops[method], item.Parameters); u != nil {
				uploads = append(uploads, u)
			}
		}
	}
	return uploads
}

// Convert picks one upload operation from doc and builds its config. With
// no operation selected the document must have exactly one.
func (c *Converter) Convert(doc *openapi3.T) (*config.Config, *Upload, error) {
	uploads := c.Uploads(doc)
	if len(uploads) == 0 {
		return nil, nil, fmt.Errorf("no operation accepts %s", multipartFormData)
	}

	var chosen *Upload
	switch {
	case c.operation != "":
		for _, u := range uploads {
			if u.OperationID == c.operation || strings.EqualFold(u.Key(), c.operation) {
				chosen = u
				break
			}
		}
		if chosen == nil {
			return nil, nil, fmt.Errorf("operation %q not found among upload operations: %s", c.operation, describe(uploads))
		}
	case len(uploads) == 1:
		chosen = uploads[0]
	default:
		return nil, nil, fmt.Errorf("spec has %d upload operations, pick one with --operation: %s", len(uploads), describe(uploads))
	}

	baseURL := c.baseURL
	if baseURL == "" {
		baseURL = serverURL(doc)
	}

	cfg := &config.Config{
		URL:       strings.TrimSuffix(baseURL, "/") + chosen.Path,
		FileField: chosen.FileField,
		Fields:    chosen.Fields,
	}
	if chosen.Method != "POST" {
		cfg.Method = chosen.Method
	}
	cfg.Expect.Status = chosen.Status
	return cfg, chosen, nil
}

// ConvertFile loads source and converts it.
func (c *Converter) ConvertFile(ctx context.Context, source string) (*config.Config, *Upload, error) {
	doc, err := Load(ctx, source)
	if err != nil {
		return nil, nil, err
	}
	return c.Convert(doc)
}

func describe(uploads []*Upload) string {
	names := make([]string, 0, len(uploads))
	for _, u := range uploads {
		name := u.Key()
		if u.OperationID != "" {
			name = u.OperationID + " (" + name + ")"
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

func convertOperation(path, method string, op *openapi3.Operation, pathParams openapi3.Parameters) *Upload {
	if op == nil || op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}
	media := op.RequestBody.Value.Content.Get(multipartFormData)
	if media == nil {
		return nil
	}

	u := &Upload{
		OperationID: op.OperationID,
		Method:      strings.ToUpper(method),
		Path:        convertPathParams(path, append(append(openapi3.Parameters{}, pathParams...), op.Parameters...)),
		Summary:     op.Summary,
		Status:      successStatus(op),
	}

	var schema *openapi3.Schema
	if media.Schema != nil {
		schema = media.Schema.Value
	}
	if schema == nil {
		u.FileField = config.DefaultFileField
		u.Warnings = append(u.Warnings, "multipart body has no schema, using the default file field")
		return u
	}

	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ref := schema.Properties[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		prop := ref.Value

		if isBinary(prop) || isBinaryArray(prop) {
			if u.FileField == "" {
				u.FileField = name
				u.Multiple = isBinaryArray(prop)
			} else {
				u.Warnings = append(u.Warnings, fmt.Sprintf("file property %q skipped, files are sent under %q", name, u.FileField))
			}
			continue
		}

		value, ok := exampleValue(prop)
		if !ok {
			if !required[name] {
				continue
			}
			value = "{{" + name + "}}"
		}
		u.Fields = append(u.Fields, config.Field{Name: name, Value: value})
	}

	if u.FileField == "" {
		u.FileField = config.DefaultFileField
		u.Warnings = append(u.Warnings, "schema has no binary property, using the default file field")
	}
	return u
}

func schemaType(s *openapi3.Schema) string {
	if s == nil || s.Type == nil {
		return ""
	}
	if types := s.Type.Slice(); len(types) > 0 {
		return types[0]
	}
	return ""
}

func isBinary(s *openapi3.Schema) bool {
	return schemaType(s) == "string" && (s.Format == "binary" || s.Format == "base64")
}

func isBinaryArray(s *openapi3.Schema) bool {
	return schemaType(s) == "array" && s.Items != nil && isBinary(s.Items.Value)
}

// exampleValue returns the text a field should carry, from its example,
// default or first enum value.
func exampleValue(s *openapi3.Schema) (string, bool) {
	for _, v := range []any{s.Example, s.Default} {
		if v != nil {
			return fmt.Sprintf("%v", v), true
		}
	}
	if len(s.Enum) > 0 {
		return fmt.Sprintf("%v", s.Enum[0]), true
	}
	return "", false
}

// successStatus returns the documented 2xx codes of op.
func successStatus(op *openapi3.Operation) []int {
	if op.Responses == nil {
		return nil
	}
	var codes []int
	for code := range op.Responses.Map() {
		if !strings.HasPrefix(code, "2") {
			continue
		}
		if n, err := strconv.Atoi(code); err == nil {
			codes = append(codes, n)
		}
	}
	sort.Ints(codes)
	return codes
}

// convertPathParams turns {param} into the {{param}} placeholder form.
func convertPathParams(path string, params openapi3.Parameters) string {
	for _, ref := range params {
		if ref == nil || ref.Value == nil || ref.Value.In != "path" {
			continue
		}
		path = strings.ReplaceAll(path, "{"+ref.Value.Name+"}", "{{"+ref.Value.Name+"}}")
	}
	return path
}

// serverURL returns the first server with its variables set to their
// defaults.
func serverURL(doc *openapi3.T) string {
	if len(doc.Servers) == 0 || doc.Servers[0] == nil || doc.Servers[0].URL == "" {
		return "http://localhost:8080"
	}
	s := doc.Servers[0]
	u := s.URL
	for name, v := range s.Variables {
		if v != nil {
			u = strings.ReplaceAll(u, "{"+name+"}", v.Default)
		}
	}
	return u
}
