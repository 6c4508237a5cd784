// ABOUTME: Immutable registry of the tools this server exposes over MCP.
// ABOUTME: Built once at startup; compiles every input schema and validates call arguments.

package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrDuplicateTool indicates two descriptors share the same name.
var ErrDuplicateTool = errors.New("duplicate tool name")

// ErrInvalidSchema indicates a descriptor's input schema could not be compiled.
var ErrInvalidSchema = errors.New("invalid input schema")

// ErrUnknownTool indicates the requested tool is not in the registry.
var ErrUnknownTool = errors.New("unknown tool")

// ErrInvalidArguments indicates call arguments do not satisfy the tool's schema.
var ErrInvalidArguments = errors.New("invalid arguments")

// Descriptor describes a tool as published by tools/list.
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

type entry struct {
	desc   Descriptor
	schema *gojsonschema.Schema
}

// Registry is the read-only tool catalog. It is never mutated after NewRegistry
// returns, so concurrent readers need no locking.
type Registry struct {
	order  []string
	byName map[string]*entry
}

// NewRegistry validates and stores the given descriptors in order.
// Returns ErrDuplicateTool if any name repeats and ErrInvalidSchema if a schema
// does not compile.
func NewRegistry(descs []Descriptor) (*Registry, error) {
	r := &Registry{
		order:  make([]string, 0, len(descs)),
		byName: make(map[string]*entry, len(descs)),
	}

	for _, d := range descs {
		if d.Name == "" {
			return nil, errors.New("tool name is required")
		}
		if _, exists := r.byName[d.Name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTool, d.Name)
		}

		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(d.InputSchema))
		if err != nil {
			return nil, fmt.Errorf("%w: tool %q: %v", ErrInvalidSchema, d.Name, err)
		}

		// Own a copy of the schema bytes so callers cannot mutate the catalog.
		raw := make(json.RawMessage, len(d.InputSchema))
		copy(raw, d.InputSchema)
		d.InputSchema = raw

		r.byName[d.Name] = &entry{desc: d, schema: schema}
		r.order = append(r.order, d.Name)
	}

	return r, nil
}

// List returns every descriptor in catalog order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, len(r.order))
	for i, name := range r.order {
		out[i] = r.byName[name].desc
	}
	return out
}

// Describe returns the descriptor for name, if registered.
func (r *Registry) Describe(name string) (Descriptor, bool) {
	e, ok := r.byName[name]
	if !ok {
		return Descriptor{}, false
	}
	return e.desc, true
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.order)
}

// Validate checks args against the named tool's input schema.
// Empty args are treated as an empty object.
func (r *Registry) Validate(name string, args json.RawMessage) error {
	e, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage("{}")
	}

	result, err := e.schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		msgs = append(msgs, re.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidArguments, strings.Join(msgs, "; "))
}
