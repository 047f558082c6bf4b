// Package webhook exposes an HTTP endpoint for external triggers (CI,
// GitHub, Zapier) that feed tasks into the pipeline. Handlers live in an
// explicit registry constructed once per process and registered at
// startup.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Handler processes one webhook delivery and returns the response body
// text.
type Handler func(ctx context.Context, payload map[string]interface{}) (string, error)

// Endpoint describes one registered webhook.
type Endpoint struct {
	Path               string `json:"path"`
	Method             string `json:"method"`
	Secret             string `json:"secret,omitempty"`
	SignatureHeader    string `json:"signature_header,omitempty"`
	SignatureAlgorithm string `json:"signature_algorithm,omitempty"` // "sha256" or "sha1"
	Description        string `json:"description,omitempty"`

	Handler Handler `json:"-"`
}

// Registry holds the process's webhook endpoints.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]*Endpoint // key: METHOD path
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		endpoints: make(map[string]*Endpoint),
	}
}

func key(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

// Register adds an endpoint. Registering the same method/path twice
// replaces the earlier entry.
func (r *Registry) Register(e Endpoint) error {
	if e.Path == "" || !strings.HasPrefix(e.Path, "/") {
		return fmt.Errorf("webhook path must start with '/', got %q", e.Path)
	}
	if e.Method == "" {
		e.Method = "POST"
	}
	if e.Handler == nil {
		return fmt.Errorf("webhook %s %s has no handler", e.Method, e.Path)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[key(e.Method, e.Path)] = &e
	return nil
}

// Lookup returns the endpoint for a method/path pair.
func (r *Registry) Lookup(method, path string) (*Endpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.endpoints[key(method, path)]
	return e, ok
}

// List returns all registered endpoints.
func (r *Registry) List() []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Endpoint, 0, len(r.endpoints))
	for _, e := range r.endpoints {
		out = append(out, *e)
	}
	return out
}

// registryFileSchema validates persisted endpoint definitions.
const registryFileSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["path"],
		"properties": {
			"path": {"type": "string", "pattern": "^/"},
			"method": {"type": "string", "enum": ["GET", "POST", "PUT", "DELETE"]},
			"secret": {"type": "string"},
			"signature_header": {"type": "string"},
			"signature_algorithm": {"type": "string", "enum": ["sha256", "sha1"]},
			"description": {"type": "string"}
		},
		"additionalProperties": false
	}
}`

// LoadFile registers endpoints from a JSON file, attaching the supplied
// handler to each. The file is validated against a schema before any
// endpoint is registered.
func (r *Registry) LoadFile(path string, handler Handler) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read webhook registry: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(registryFileSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("failed to validate webhook registry: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return fmt.Errorf("invalid webhook registry: %s", strings.Join(problems, "; "))
	}

	var endpoints []Endpoint
	if err := json.Unmarshal(data, &endpoints); err != nil {
		return fmt.Errorf("failed to parse webhook registry: %w", err)
	}

	for _, e := range endpoints {
		e.Handler = handler
		if err := r.Register(e); err != nil {
			return err
		}
	}
	return nil
}
