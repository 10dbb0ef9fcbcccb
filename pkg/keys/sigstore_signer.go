package keys

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	reposignerrors "github.com/Mindburn-Labs/reposign/pkg/errors"
)

// SchemeSigstore is the recognized "sigstore:" signer URI scheme: a
// keyless signer backed by a short-lived keypair minted for one signing
// event and an OIDC identity token vouching for who asked for it, rather
// than a long-lived key checked into a signer's keyring.
//
// opaque is "<oidc-id-token>:<hex-ephemeral-ed25519-private-key>". The
// identity token is not verified against an issuer's JWKS here (that
// belongs to the signing event's own authorization step, upstream of
// this signer); it is decoded to recover the identity claim used as the
// resulting signature's keyid, so a downstream auditor can tell which
// human or workload identity a given signature actually came from.
const SchemeSigstore = "sigstore"

// RegisterSigstoreSigner wires the "sigstore:" scheme into r.
func RegisterSigstoreSigner(r *Registry) {
	r.Register(SchemeSigstore, sigstoreSignerFactory)
}

func sigstoreSignerFactory(opaque string) (Signer, error) {
	idToken, hexKey, ok := strings.Cut(opaque, ":")
	if !ok || idToken == "" {
		return nil, fmt.Errorf("sigstore signer uri must be \"sigstore:<oidc-id-token>:<hex-ephemeral-ed25519-private-key>\"")
	}
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid hex ephemeral private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid ed25519 private key size: got %d, want %d", len(raw), ed25519.PrivateKeySize)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return nil, reposignerrors.Wrap(reposignerrors.SignerFailure, "parse sigstore identity token", err)
	}
	identity, _ := claims["email"].(string)
	if identity == "" {
		identity, _ = claims["sub"].(string)
	}
	if identity == "" {
		return nil, reposignerrors.New(reposignerrors.SignerFailure, "sigstore identity token carries neither an email nor a sub claim")
	}

	return &sigstoreSigner{
		identity: identity,
		inner:    NewEd25519Signer(identity, ed25519.PrivateKey(raw)),
	}, nil
}

// sigstoreSigner signs with an ephemeral keypair but asserts its keyid as
// the OIDC identity the key was minted for, not the key's own material.
type sigstoreSigner struct {
	identity string
	inner    *Ed25519Signer
}

func (s *sigstoreSigner) KeyID() string { return s.identity }

func (s *sigstoreSigner) Sign(payload []byte) ([]byte, error) {
	return s.inner.Sign(payload)
}
