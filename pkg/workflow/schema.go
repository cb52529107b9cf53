package workflow

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/workflow.schema.json
var workflowSchemaJSON []byte

// ValidateDocument checks an assembled manifest against the embedded
// workflow schema. The compiler should never produce an invalid document;
// this is the guard that turns an emitter bug into a loud failure instead
// of a document the orchestrator rejects at submit time.
func ValidateDocument(doc *Document) error {
	schemaDoc, err := jsonschema.UnmarshalJSON(bytes.NewReader(workflowSchemaJSON))
	if err != nil {
		return fmt.Errorf("failed to parse embedded workflow schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("workflow.schema.json", schemaDoc); err != nil {
		return fmt.Errorf("failed to load embedded workflow schema: %w", err)
	}
	schema, err := compiler.Compile("workflow.schema.json")
	if err != nil {
		return fmt.Errorf("failed to compile embedded workflow schema: %w", err)
	}

	encoded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document for validation: %w", err)
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("failed to decode document for validation: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("emitted document violates the workflow schema: %w", err)
	}
	return nil
}
