// Package keyhistory tracks the lifecycle of signing keys across root
// rotations. The repository's root_history/ directory archives every past
// root version; this package gives the status and audit tooling a
// materialized, queryable view over that history instead of requiring
// every caller to re-walk the archived files and diff key sets by hand.
package keyhistory

import (
	"crypto/ed25519"
	"fmt"
	"sync"
)

// EventType enumerates the key lifecycle transitions recorded against a
// root version bump.
type EventType string

const (
	KeyAdded   EventType = "KEY_ADDED"
	KeyRevoked EventType = "KEY_REVOKED"
	KeyRotated EventType = "KEY_ROTATED"
)

// Event represents a single key lifecycle change observed between two
// consecutive root versions.
type Event struct {
	EventType   EventType         `json:"event_type"`
	Role        string            `json:"role"` // "root" or a top-level role name
	KeyID       string            `json:"key_id"`
	PublicKey   ed25519.PublicKey `json:"public_key,omitempty"`
	RootVersion uint64            `json:"root_version"`
}

// Registry is an event-sourced view of a role's authorized keys, derived
// from the sequence of root_history entries rather than from a single
// snapshot. It lets the status engine answer "was this key authorized for
// this role as of root version N" without re-deriving the diff each time.
type Registry struct {
	mu     sync.RWMutex
	events []Event
	// keys[role][keyID] = current public key, absent once revoked.
	keys map[string]map[string]ed25519.PublicKey
}

func New() *Registry {
	return &Registry{
		keys: make(map[string]map[string]ed25519.PublicKey),
	}
}

// Apply records a lifecycle event and updates the materialized view.
// Events must be applied in non-decreasing RootVersion order.
func (r *Registry) Apply(event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch event.EventType {
	case KeyAdded, KeyRotated:
		if event.PublicKey == nil {
			return fmt.Errorf("keyhistory: %s event for role %q must include public_key", event.EventType, event.Role)
		}
		if r.keys[event.Role] == nil {
			r.keys[event.Role] = make(map[string]ed25519.PublicKey)
		}
		r.keys[event.Role][event.KeyID] = event.PublicKey

	case KeyRevoked:
		if tenant, ok := r.keys[event.Role]; ok {
			delete(tenant, event.KeyID)
		}

	default:
		return fmt.Errorf("keyhistory: unknown event type %q", event.EventType)
	}

	r.events = append(r.events, event)
	return nil
}

// AuthorizedKeys returns the keys authorized for role as of rootVersion.
// rootVersion == 0 means "current state" (the latest known root).
func (r *Registry) AuthorizedKeys(role string, rootVersion uint64) ([]ed25519.PublicKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if rootVersion == 0 {
		tenant, ok := r.keys[role]
		if !ok {
			return nil, nil
		}
		keys := make([]ed25519.PublicKey, 0, len(tenant))
		for _, k := range tenant {
			keys = append(keys, k)
		}
		return keys, nil
	}

	snapshot := make(map[string]ed25519.PublicKey)
	for _, ev := range r.events {
		if ev.Role != role {
			continue
		}
		if ev.RootVersion > rootVersion {
			break
		}
		switch ev.EventType {
		case KeyAdded, KeyRotated:
			snapshot[ev.KeyID] = ev.PublicKey
		case KeyRevoked:
			delete(snapshot, ev.KeyID)
		}
	}

	keys := make([]ed25519.PublicKey, 0, len(snapshot))
	for _, k := range snapshot {
		keys = append(keys, k)
	}
	return keys, nil
}

// IsAuthorized reports whether keyID is currently authorized for role.
func (r *Registry) IsAuthorized(role, keyID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tenant, ok := r.keys[role]
	if !ok {
		return false
	}
	_, exists := tenant[keyID]
	return exists
}

// EventCount returns the number of events recorded so far.
func (r *Registry) EventCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

// DiffRootVersions derives the lifecycle events between two consecutive
// root key sets (oldKeys/newKeys keyed by keyid) and applies them to the
// registry, tagging each with newVersion. A key present in both is treated
// as unchanged; present only in old is a revocation; present only in new
// is an addition. Callers that can tell a rotation apart from an
// add+revoke pair (e.g. same keyowner annotation, different keyid) should
// apply a KeyRotated event directly instead of calling this helper.
func (r *Registry) DiffRootVersions(role string, oldKeys, newKeys map[string]ed25519.PublicKey, newVersion uint64) error {
	for keyID, pub := range newKeys {
		if _, existed := oldKeys[keyID]; !existed {
			if err := r.Apply(Event{EventType: KeyAdded, Role: role, KeyID: keyID, PublicKey: pub, RootVersion: newVersion}); err != nil {
				return err
			}
		}
	}
	for keyID := range oldKeys {
		if _, stillPresent := newKeys[keyID]; !stillPresent {
			if err := r.Apply(Event{EventType: KeyRevoked, Role: role, KeyID: keyID, RootVersion: newVersion}); err != nil {
				return err
			}
		}
	}
	return nil
}
