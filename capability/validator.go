package capability

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/storekit/hooks/event"
)

// Validator validates event payloads against optional per-type JSON Schemas.
// Types without a registered schema pass validation unconditionally.
type Validator struct {
	mu       sync.RWMutex
	schemas  map[event.Type]json.RawMessage
	compiled map[string]*jsonschema.Schema // keyed by schema JSON content
}

// NewValidator creates a new schema validator.
func NewValidator() *Validator {
	return &Validator{
		schemas:  make(map[event.Type]json.RawMessage),
		compiled: make(map[string]*jsonschema.Schema),
	}
}

// RegisterSchema attaches a JSON Schema (draft-07 or later) to an event type.
// The schema is compiled eagerly so a malformed schema fails at registration,
// not at publish time.
func (v *Validator) RegisterSchema(t event.Type, schema json.RawMessage) error {
	if _, err := v.compile(schema); err != nil {
		return fmt.Errorf("capability: schema for %s: %w", t, err)
	}

	v.mu.Lock()
	v.schemas[t] = schema
	v.mu.Unlock()
	return nil
}

// Validate checks the payload against the schema registered for the type.
func (v *Validator) Validate(t event.Type, data map[string]any) error {
	v.mu.RLock()
	schema, ok := v.schemas[t]
	v.mu.RUnlock()
	if !ok {
		return nil
	}

	compiled, err := v.compile(schema)
	if err != nil {
		return fmt.Errorf("schema compilation error: %w", err)
	}

	// The compiler validates generic JSON values; maps of any are fine.
	var doc any = map[string]any(data)
	return compiled.Validate(doc)
}

// compile returns a compiled schema, using the cache for previously-seen schemas.
func (v *Validator) compile(schema json.RawMessage) (*jsonschema.Schema, error) {
	key := string(schema)

	v.mu.RLock()
	if cached, ok := v.compiled[key]; ok {
		v.mu.RUnlock()
		return cached, nil
	}
	v.mu.RUnlock()

	var doc any
	if err := json.Unmarshal(schema, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	// Use a unique URL as the schema resource identifier.
	url := "hooks://schema/" + sanitizeKey(key)

	c := jsonschema.NewCompiler()
	if addErr := c.AddResource(url, doc); addErr != nil {
		return nil, fmt.Errorf("add schema resource: %w", addErr)
	}

	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v.mu.Lock()
	v.compiled[key] = compiled
	v.mu.Unlock()

	return compiled, nil
}

// sanitizeKey creates a safe URL path segment from a schema key.
func sanitizeKey(key string) string {
	r := strings.NewReplacer(
		`"`, "",
		`{`, "",
		`}`, "",
		` `, "_",
		"\n", "_",
		"\r", "_",
		"\t", "_",
		`:`, "",
	)
	s := r.Replace(key)
	if len(s) > 64 {
		s = s[:64]
	}
	return s
}
