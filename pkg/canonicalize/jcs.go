// Package canonicalize provides RFC 8785 (JSON Canonicalization Scheme)
// compliant serialization used to derive keyids and signable byte streams
// for repository metadata.
package canonicalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// JCS returns the RFC 8785 canonical JSON representation of v.
//
// v is first passed through encoding/json so struct tags (json:"...",
// omitempty) are honored, then the intermediate bytes are re-canonicalized
// by gowebpki/jcs, which performs the sorted-key, no-whitespace,
// ECMAScript-number-formatting transform required by the spec.
func JCS(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: pre-marshal failed: %w", err)
	}

	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: jcs transform failed: %w", err)
	}
	return out, nil
}

// TransformBytes canonicalizes an already-serialized JSON document without
// going through a struct first. Useful when the caller holds a
// json.RawMessage (e.g. the "signed" portion of a metadata file) and wants
// to canonicalize exactly those bytes rather than a re-marshaled copy.
func TransformBytes(raw []byte) ([]byte, error) {
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: jcs transform failed: %w", err)
	}
	return out, nil
}

// CanonicalHash returns the SHA-256 hex digest of the canonical JSON
// representation of v. This is the basis for keyid derivation and for the
// content hashes recorded in snapshot/timestamp meta entries.
func CanonicalHash(v interface{}) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes computes the SHA-256 hash of raw bytes and returns it as hex.
func HashBytes(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// JCSString returns the JCS canonical form as a string.
func JCSString(v interface{}) (string, error) {
	data, err := JCS(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
