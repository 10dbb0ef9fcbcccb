package schema

import (
	"testing"

	"github.com/Mindburn-Labs/reposign/pkg/errors"
)

func TestValidateEnvelope_AcceptsWellFormedDocument(t *testing.T) {
	v, err := Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	doc := []byte(`{
		"signed": {
			"_type": "timestamp",
			"spec_version": "1.0.31",
			"version": 1,
			"expires": "2026-01-01T00:00:00Z"
		},
		"signatures": [
			{"keyid": "abc123", "sig": "deadbeef"}
		]
	}`)
	if err := v.ValidateEnvelope(doc); err != nil {
		t.Fatalf("expected valid envelope, got %v", err)
	}
}

func TestValidateEnvelope_RejectsUnknownType(t *testing.T) {
	v, err := Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	doc := []byte(`{
		"signed": {
			"_type": "bogus",
			"spec_version": "1.0.31",
			"version": 1,
			"expires": "2026-01-01T00:00:00Z"
		},
		"signatures": []
	}`)
	err = v.ValidateEnvelope(doc)
	if err == nil {
		t.Fatal("expected validation error for unknown _type")
	}
	if !errors.ErrMalformedMetadata.Is(err) {
		t.Fatalf("expected MalformedMetadata kind, got %v", err)
	}
}

func TestValidateEnvelope_RejectsMissingSignatures(t *testing.T) {
	v, err := Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	doc := []byte(`{"signed": {"_type": "root", "spec_version": "1.0.31", "version": 1, "expires": "2026-01-01T00:00:00Z"}}`)
	if err := v.ValidateEnvelope(doc); err == nil {
		t.Fatal("expected validation error for missing signatures array")
	}
}

func TestValidateEnvelope_RejectsMalformedJSON(t *testing.T) {
	v, err := Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if err := v.ValidateEnvelope([]byte("not json")); err == nil {
		t.Fatal("expected parse error for malformed JSON")
	}
}
