// Package edit implements the scoped role-mutation transaction of §4.3:
// a caller mutates an in-memory Signed payload, then either commits it
// (version bump, expiry reset, signature reset) or aborts by simply
// discarding it — the file on disk is only ever touched by Commit.
package edit

import (
	"time"

	"github.com/Mindburn-Labs/reposign/pkg/keys"
	"github.com/Mindburn-Labs/reposign/pkg/repository"
	"github.com/Mindburn-Labs/reposign/pkg/tuf"
)

// nextVersion is §3 invariant 2/3: the committed version is always
// known-good + 1 once the payload has changed.
func nextVersion(knownGood int64) int64 {
	return knownGood + 1
}

// placeholderSignatures returns one empty-signature entry per keyid,
// per §4.3 step 4.
func placeholderSignatures(keyIDs []string) []tuf.Signature {
	sigs := make([]tuf.Signature, 0, len(keyIDs))
	for _, id := range keyIDs {
		sigs = append(sigs, tuf.Signature{KeyID: id})
	}
	return sigs
}

// dedupeKeyIDs preserves first-seen order while dropping repeats, used
// when root retains both its old and new key sets (§4.3 step 5).
func dedupeKeyIDs(ids ...[]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, group := range ids {
		for _, id := range group {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

func rootKeyIDs(root *tuf.RootType) []string {
	ids := make([]string, 0, len(root.Keys))
	for id := range root.Keys {
		ids = append(ids, id)
	}
	return ids
}

// CommitRoot applies the §4.3 commit sequence to a mutated root payload
// and persists it, also archiving it under root_history (step 7). oldKeys
// are the known-good root's keyids, retained as empty signature slots
// alongside the new key set so old signers can still satisfy the N-of-M
// rotation rule (step 5, P3/scenario 7).
func CommitRoot(view *repository.View, m *tuf.Metadata[tuf.RootType], knownGoodVersion int64, now time.Time, oldKeys []string) error {
	m.Signed.Version = nextVersion(knownGoodVersion)
	m.Signed.Expires = now.AddDate(0, 0, m.Signed.Annotations.ExpiryPeriodDays)
	newKeys := rootKeyIDs(&m.Signed)
	m.Signatures = placeholderSignatures(dedupeKeyIDs(newKeys, oldKeys))
	return view.WriteRoot(m)
}

// CommitTargets applies the commit sequence to a mutated targets (or
// delegated targets) payload: version bump, expiry reset, and an empty
// placeholder signature per key bound to role. Offline roles are left
// unsigned until a human signs (step 6).
func CommitTargets(view *repository.View, role string, m *tuf.Metadata[tuf.TargetsType], knownGoodVersion int64, now time.Time, keyIDs []string) error {
	m.Signed.Version = nextVersion(knownGoodVersion)
	m.Signed.Expires = now.AddDate(0, 0, m.Signed.Annotations.ExpiryPeriodDays)
	m.Signatures = placeholderSignatures(keyIDs)
	return view.WriteTargets(role, m)
}

// CommitSnapshotOnline bumps and re-signs the snapshot role with its
// online key(s), per §4.3 step 6: snapshot and timestamp are the only
// roles the commit sequence itself signs.
func CommitSnapshotOnline(view *repository.View, m *tuf.Metadata[tuf.SnapshotType], knownGoodVersion int64, now time.Time, signers []keys.Signer) error {
	m.Signed.Version = nextVersion(knownGoodVersion)
	m.Signed.Expires = now.AddDate(0, 0, m.Signed.Annotations.ExpiryPeriodDays)
	payload, err := tuf.CanonicalBytes(m.Signed)
	if err != nil {
		return err
	}
	sigs := make([]tuf.Signature, 0, len(signers))
	for _, s := range signers {
		sigBytes, err := s.Sign(payload)
		if err != nil {
			return err
		}
		sigs = append(sigs, tuf.Signature{KeyID: s.KeyID(), Sig: sigBytes})
	}
	m.Signatures = sigs
	return view.WriteSnapshot(m)
}

// CommitTimestampOnline is CommitSnapshotOnline's counterpart for the
// timestamp role.
func CommitTimestampOnline(view *repository.View, m *tuf.Metadata[tuf.TimestampType], knownGoodVersion int64, now time.Time, signers []keys.Signer) error {
	m.Signed.Version = nextVersion(knownGoodVersion)
	m.Signed.Expires = now.AddDate(0, 0, m.Signed.Annotations.ExpiryPeriodDays)
	payload, err := tuf.CanonicalBytes(m.Signed)
	if err != nil {
		return err
	}
	sigs := make([]tuf.Signature, 0, len(signers))
	for _, s := range signers {
		sigBytes, err := s.Sign(payload)
		if err != nil {
			return err
		}
		sigs = append(sigs, tuf.Signature{KeyID: s.KeyID(), Sig: sigBytes})
	}
	m.Signatures = sigs
	return view.WriteTimestamp(m)
}
