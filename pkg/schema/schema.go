// Package schema validates on-disk TUF role documents against JSON
// Schema before the typed codec in pkg/tuf attempts to decode them,
// giving callers a MalformedMetadata error with a pointer to the
// offending field rather than a generic unmarshal failure.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Mindburn-Labs/reposign/pkg/errors"
)

// Validator holds the compiled envelope schema shared by all four
// top-level role kinds; it has no separate schema per role kind.
type Validator struct {
	envelope *jsonschema.Schema
}

// Compile builds a Validator from the envelope schema source (the
// {"signed": ..., "signatures": [...]} wrapper every role document
// shares). Per-payload schemas are deliberately loose here: §4.1 only
// requires structural validity, not full TUF semantic checking, which
// belongs to the invariant checks elsewhere in the engine.
func Compile() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("envelope.json", bytes.NewReader([]byte(envelopeSchema))); err != nil {
		return nil, fmt.Errorf("schema: add envelope resource: %w", err)
	}
	sch, err := compiler.Compile("envelope.json")
	if err != nil {
		return nil, fmt.Errorf("schema: compile envelope: %w", err)
	}
	return &Validator{envelope: sch}, nil
}

// ValidateEnvelope checks that data has the shape every role document
// must have: a "signed" object with "_type"/"spec_version"/"version"/
// "expires", and a "signatures" array of {keyid, sig} objects.
func (v *Validator) ValidateEnvelope(data []byte) error {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return errors.Wrap(errors.MalformedMetadata, "parse metadata document", err)
	}
	if err := v.envelope.Validate(doc); err != nil {
		return errors.Wrap(errors.MalformedMetadata, "metadata document failed schema validation", err)
	}
	return nil
}

const envelopeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["signed", "signatures"],
  "properties": {
    "signed": {
      "type": "object",
      "required": ["_type", "spec_version", "version", "expires"],
      "properties": {
        "_type": {"type": "string", "enum": ["root", "targets", "snapshot", "timestamp"]},
        "spec_version": {"type": "string"},
        "version": {"type": "integer", "minimum": 0},
        "expires": {"type": "string"}
      }
    },
    "signatures": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["keyid", "sig"],
        "properties": {
          "keyid": {"type": "string"},
          "sig": {"type": "string"}
        }
      }
    }
  }
}`
