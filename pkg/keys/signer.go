// Package keys implements the Signer/Verifier abstraction this engine
// signs and verifies TUF metadata through: sign(canonical_payload_bytes,
// key) -> signature_bytes, and its inverse. Concrete signer backends are
// looked up by scheme from an opaque "signer URI" (file:, sigstore:,
// hsm:..., gcpkms:..., azurekms:..., awskms:...). The backends in this
// package are file:, localkms:, webhook: and sigstore:; hsm: and the
// cloud KMS schemes have no backend here and resolve only once a caller
// registers one.
package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	reposignerrors "github.com/Mindburn-Labs/reposign/pkg/errors"
)

// Signer produces a detached signature over a canonical payload.
type Signer interface {
	// KeyID is the keyid this signer asserts signatures under.
	KeyID() string
	// Sign returns the raw signature bytes over payload.
	Sign(payload []byte) ([]byte, error)
}

// Verifier checks a detached signature against a canonical payload.
type Verifier interface {
	Verify(payload []byte, signature []byte) bool
}

// Ed25519Signer is the reference in-core signer backend, used by the
// "file:" signer URI scheme and by tests.
type Ed25519Signer struct {
	keyID   string
	privKey ed25519.PrivateKey
}

// GenerateEd25519Signer creates a fresh ed25519 keypair and wraps the
// private half as a Signer under keyID.
func GenerateEd25519Signer(keyID string) (*Ed25519Signer, ed25519.PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, reposignerrors.Wrap(reposignerrors.SignerFailure, "generate ed25519 keypair", err)
	}
	return &Ed25519Signer{keyID: keyID, privKey: priv}, pub, nil
}

// NewEd25519Signer wraps an existing private key as a Signer under keyID.
func NewEd25519Signer(keyID string, priv ed25519.PrivateKey) *Ed25519Signer {
	return &Ed25519Signer{keyID: keyID, privKey: priv}
}

func (s *Ed25519Signer) KeyID() string { return s.keyID }

func (s *Ed25519Signer) Sign(payload []byte) ([]byte, error) {
	return ed25519.Sign(s.privKey, payload), nil
}

// SignerURI is a parsed opaque signer-backend reference, per §6's
// online-uri / signer-uri convention: "<scheme>:<opaque>".
type SignerURI struct {
	Scheme string
	Opaque string
}

// ParseSignerURI splits a signer URI into its scheme and backend-specific
// opaque remainder. It does not validate the opaque portion; that's the
// responsibility of the scheme's backend.
func ParseSignerURI(uri string) (SignerURI, error) {
	scheme, opaque, ok := strings.Cut(uri, ":")
	if !ok || scheme == "" {
		return SignerURI{}, reposignerrors.New(reposignerrors.MalformedMetadata, fmt.Sprintf("signer uri %q has no scheme", uri))
	}
	return SignerURI{Scheme: scheme, Opaque: opaque}, nil
}

// Recognized signer URI schemes. "file" is backed here; the rest of this
// block have no backend in this package and are extension points a
// caller registers a Signer factory for. SchemeSigstore, SchemeLocalKMS
// and SchemeWebhook are declared beside their backends.
const (
	SchemeFile      = "file"
	SchemeHSM       = "hsm"
	SchemeGCPKMS    = "gcpkms"
	SchemeAzureKMS  = "azurekms"
	SchemeAWSKMS    = "awskms"
)

// Factory builds a Signer for a parsed SignerURI's opaque portion.
type Factory func(opaque string) (Signer, error)

// Registry resolves signer URIs to concrete Signer backends by scheme.
// NewRegistry fills it with this package's backends; callers add hsm and
// cloud KMS backends by calling Register.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a Registry with the "file", "localkms", "webhook"
// and "sigstore" schemes already registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(SchemeFile, fileSignerFactory)
	RegisterLocalKMS(r)
	RegisterWebhookSigner(r)
	RegisterSigstoreSigner(r)
	return r
}

func (r *Registry) Register(scheme string, factory Factory) {
	r.factories[scheme] = factory
}

func (r *Registry) Resolve(uri string) (Signer, error) {
	parsed, err := ParseSignerURI(uri)
	if err != nil {
		return nil, err
	}
	factory, ok := r.factories[parsed.Scheme]
	if !ok {
		return nil, reposignerrors.New(reposignerrors.SignerFailure, fmt.Sprintf("no signer backend registered for scheme %q", parsed.Scheme))
	}
	signer, err := factory(parsed.Opaque)
	if err != nil {
		return nil, reposignerrors.Wrap(reposignerrors.SignerFailure, fmt.Sprintf("resolve signer uri scheme %q", parsed.Scheme), err)
	}
	return signer, nil
}

// fileSignerFactory expects opaque to be "<keyid>:<hex-encoded-ed25519-private-key>",
// the reference shape used by local/CI test fixtures.
func fileSignerFactory(opaque string) (Signer, error) {
	keyID, hexKey, ok := strings.Cut(opaque, ":")
	if !ok {
		return nil, fmt.Errorf("file signer uri must be \"file:<keyid>:<hex-private-key>\"")
	}
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid hex private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid ed25519 private key size: got %d, want %d", len(raw), ed25519.PrivateKeySize)
	}
	return NewEd25519Signer(keyID, ed25519.PrivateKey(raw)), nil
}
