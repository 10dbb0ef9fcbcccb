package tuf

import (
	"encoding/json"

	"github.com/Mindburn-Labs/reposign/pkg/canonicalize"
	"github.com/Mindburn-Labs/reposign/pkg/errors"
)

// CanonicalBytes returns the RFC 8785 canonical-JSON encoding of a Signed
// payload, the exact byte string every signature in a Metadata envelope is
// computed and verified over. Any structural failure is reported as a
// MalformedMetadata error, never a bare encoding error.
func CanonicalBytes[T Roles](signed T) ([]byte, error) {
	out, err := canonicalize.JCS(signed)
	if err != nil {
		return nil, errors.Wrap(errors.MalformedMetadata, "canonicalize signed payload", err)
	}
	return out, nil
}

// DecodeMetadata parses a full signed envelope (the on-disk shape of
// <role>.json) into a Metadata[T], rejecting malformed JSON up front
// rather than letting it surface later as a nil-pointer panic.
func DecodeMetadata[T Roles](data []byte) (*Metadata[T], error) {
	var m Metadata[T]
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.MalformedMetadata, "decode metadata envelope", err)
	}
	return &m, nil
}

// EncodeMetadata serializes a full signed envelope back to its on-disk
// JSON form. This is NOT the canonical encoding used for signing — it's
// the convenience pretty/plain form written to metadata/<role>.json.
func EncodeMetadata[T Roles](m *Metadata[T]) ([]byte, error) {
	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.MalformedMetadata, "encode metadata envelope", err)
	}
	return out, nil
}
