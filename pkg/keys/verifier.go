package keys

import (
	"crypto/ed25519"
	"fmt"
)

// Ed25519Verifier checks ed25519 signatures against a fixed public key.
type Ed25519Verifier struct {
	PublicKey ed25519.PublicKey
}

// NewEd25519Verifier wraps a raw ed25519 public key as a Verifier.
func NewEd25519Verifier(pubKey ed25519.PublicKey) (*Ed25519Verifier, error) {
	if len(pubKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid ed25519 public key size: got %d, want %d", len(pubKey), ed25519.PublicKeySize)
	}
	return &Ed25519Verifier{PublicKey: pubKey}, nil
}

func (v *Ed25519Verifier) Verify(payload []byte, signature []byte) bool {
	return ed25519.Verify(v.PublicKey, payload, signature)
}

// VerifyAny reports whether signature over payload validates against any
// one of keys, returning the keyid of the first match.
func VerifyAny(keys map[string]ed25519.PublicKey, payload []byte, signature []byte) (keyID string, ok bool) {
	for id, pub := range keys {
		if ed25519.Verify(pub, payload, signature) {
			return id, true
		}
	}
	return "", false
}
