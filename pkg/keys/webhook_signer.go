package keys

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	resiliency "github.com/Mindburn-Labs/reposign/pkg/retry"
)

// SchemeWebhook is a recognized, in-core signer URI scheme for a remote
// signing service reached over HTTP: "webhook:<url>". The payload is
// POSTed as-is and the response body is expected to be
// {"keyid": "...", "sig": "<hex>"}.
const SchemeWebhook = "webhook"

// RegisterWebhookSigner wires the "webhook:" scheme into r, backed by an
// EnhancedClient so a flaky remote signer is retried with backoff and a
// repeatedly failing one trips its circuit breaker instead of stalling
// every subsequent commit.
func RegisterWebhookSigner(r *Registry) {
	r.Register(SchemeWebhook, webhookSignerFactory)
}

func webhookSignerFactory(opaque string) (Signer, error) {
	if opaque == "" {
		return nil, fmt.Errorf("webhook signer uri must be \"webhook:<url>\"")
	}
	return &webhookSigner{url: opaque, client: resiliency.NewEnhancedClient()}, nil
}

type webhookSigner struct {
	url    string
	client *resiliency.EnhancedClient
	keyID  string
}

func (s *webhookSigner) KeyID() string { return s.keyID }

type webhookSignResponse struct {
	KeyID string `json:"keyid"`
	Sig   string `json:"sig"`
}

func (s *webhookSigner) Sign(payload []byte) ([]byte, error) {
	req, err := http.NewRequest(http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("webhook signer: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook signer: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("webhook signer: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("webhook signer: remote returned %d: %s", resp.StatusCode, body)
	}

	var parsed webhookSignResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("webhook signer: parse response: %w", err)
	}
	s.keyID = parsed.KeyID
	sig, err := hex.DecodeString(parsed.Sig)
	if err != nil {
		return nil, fmt.Errorf("webhook signer: decode signature: %w", err)
	}
	return sig, nil
}
