package keys

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Mindburn-Labs/reposign/pkg/kms"
)

// SchemeLocalKMS is a recognized, in-core signer URI scheme for offline
// keys whose private key material is kept AES-256-GCM-encrypted at rest
// under a local, file-backed keystore rather than as a bare hex literal.
const SchemeLocalKMS = "localkms"

// RegisterLocalKMS wires the "localkms:" scheme into r. Its opaque
// portion is "<keystore-path>:<keyid>:<versioned-ciphertext>", where
// versioned-ciphertext is the kms.Manager.Encrypt output over the
// hex-encoded ed25519 private key.
func RegisterLocalKMS(r *Registry) {
	r.Register(SchemeLocalKMS, localKMSSignerFactory)
}

func localKMSSignerFactory(opaque string) (Signer, error) {
	parts := strings.SplitN(opaque, ":", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("localkms signer uri must be \"localkms:<keystore-path>:<keyid>:<ciphertext>\"")
	}
	keystorePath, keyID, ciphertext := parts[0], parts[1], parts[2]

	manager, err := kms.NewLocalKMS(keystorePath)
	if err != nil {
		return nil, fmt.Errorf("open keystore %s: %w", keystorePath, err)
	}
	hexKey, err := manager.Decrypt(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decrypt key %s: %w", keyID, err)
	}
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid hex private key for %s: %w", keyID, err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid ed25519 private key size for %s: got %d, want %d", keyID, len(raw), ed25519.PrivateKeySize)
	}
	return NewEd25519Signer(keyID, ed25519.PrivateKey(raw)), nil
}
