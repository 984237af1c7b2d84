package capability_test

import (
	"encoding/json"
	"testing"

	"github.com/storekit/hooks/capability"
	"github.com/storekit/hooks/event"
)

func TestValidatorNoSchemaRegistered(t *testing.T) {
	v := capability.NewValidator()

	if err := v.Validate(event.TypeOrderPaid, map[string]any{"anything": "goes"}); err != nil {
		t.Fatal("types without a schema should skip validation, got:", err)
	}
}

func TestValidatorValidPayload(t *testing.T) {
	v := capability.NewValidator()

	schema := json.RawMessage(`{
		"type": "object",
		"properties": {
			"orderId":  {"type": "integer"},
			"total":    {"type": "number"},
			"currency": {"type": "string"}
		},
		"required": ["orderId", "total"]
	}`)

	if err := v.RegisterSchema(event.TypeOrderPaid, schema); err != nil {
		t.Fatal(err)
	}

	data := map[string]any{
		"orderId":  float64(42),
		"total":    99.50,
		"currency": "USD",
	}

	if err := v.Validate(event.TypeOrderPaid, data); err != nil {
		t.Fatal("valid payload should pass, got:", err)
	}
}

func TestValidatorMissingRequired(t *testing.T) {
	v := capability.NewValidator()

	schema := json.RawMessage(`{
		"type": "object",
		"properties": {"name": {"type": "string"}},
		"required": ["name"]
	}`)

	if err := v.RegisterSchema(event.TypeCustomerCreated, schema); err != nil {
		t.Fatal(err)
	}

	err := v.Validate(event.TypeCustomerCreated, map[string]any{"other": "value"})
	if err == nil {
		t.Fatal("expected validation error for missing required field")
	}
}

func TestValidatorWrongType(t *testing.T) {
	v := capability.NewValidator()

	schema := json.RawMessage(`{
		"type": "object",
		"properties": {"count": {"type": "integer"}}
	}`)

	if err := v.RegisterSchema(event.TypeInventoryUpdated, schema); err != nil {
		t.Fatal(err)
	}

	err := v.Validate(event.TypeInventoryUpdated, map[string]any{"count": "not-a-number"})
	if err == nil {
		t.Fatal("expected validation error for wrong type")
	}
}

func TestValidatorSchemaScopedPerType(t *testing.T) {
	v := capability.NewValidator()

	schema := json.RawMessage(`{
		"type": "object",
		"required": ["orderId"]
	}`)

	if err := v.RegisterSchema(event.TypeOrderPaid, schema); err != nil {
		t.Fatal(err)
	}

	// Another type is unaffected by the registration.
	if err := v.Validate(event.TypeProductCreated, map[string]any{}); err != nil {
		t.Fatal("unrelated type should not be validated, got:", err)
	}
}

func TestValidatorRejectsMalformedSchema(t *testing.T) {
	v := capability.NewValidator()

	if err := v.RegisterSchema(event.TypeOrderPaid, json.RawMessage(`{not json`)); err == nil {
		t.Fatal("expected error registering malformed schema")
	}
}

func TestValidatorReplacesSchema(t *testing.T) {
	v := capability.NewValidator()

	strict := json.RawMessage(`{"type": "object", "required": ["a"]}`)
	loose := json.RawMessage(`{"type": "object"}`)

	if err := v.RegisterSchema(event.TypeOrderPaid, strict); err != nil {
		t.Fatal(err)
	}
	if err := v.Validate(event.TypeOrderPaid, map[string]any{}); err == nil {
		t.Fatal("strict schema should reject empty payload")
	}

	if err := v.RegisterSchema(event.TypeOrderPaid, loose); err != nil {
		t.Fatal(err)
	}
	if err := v.Validate(event.TypeOrderPaid, map[string]any{}); err != nil {
		t.Fatal("replaced schema should accept empty payload, got:", err)
	}
}
