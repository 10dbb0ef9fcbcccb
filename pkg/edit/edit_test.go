package edit

import (
	"testing"
	"time"

	"github.com/Mindburn-Labs/reposign/pkg/keys"
	"github.com/Mindburn-Labs/reposign/pkg/repository"
	"github.com/Mindburn-Labs/reposign/pkg/tuf"
)

func TestCommitRoot_BumpsVersionAndRetainsOldKeys(t *testing.T) {
	dir := t.TempDir()
	view := repository.Open(dir)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	m := &tuf.Metadata[tuf.RootType]{
		Signed: tuf.RootType{
			Type:               tuf.RoleRoot,
			SpecVersion:        tuf.SpecVersion,
			ConsistentSnapshot: true,
			Keys: map[string]*tuf.Key{
				"new-key-1": {KeyType: "ed25519", Scheme: "ed25519"},
			},
			Roles:       map[string]*tuf.Role{},
			Annotations: tuf.Annotations{ExpiryPeriodDays: 365},
		},
	}

	if err := CommitRoot(view, m, 3, now, []string{"old-key-1"}); err != nil {
		t.Fatalf("commit root: %v", err)
	}
	if m.Signed.Version != 4 {
		t.Fatalf("expected version 4, got %d", m.Signed.Version)
	}
	if !m.Signed.Expires.Equal(now.AddDate(0, 0, 365)) {
		t.Fatalf("expected expires 365 days out, got %v", m.Signed.Expires)
	}

	keyIDsSeen := map[string]bool{}
	for _, sig := range m.Signatures {
		keyIDsSeen[sig.KeyID] = true
		if len(sig.Sig) != 0 {
			t.Fatalf("expected placeholder (empty) signature for %s", sig.KeyID)
		}
	}
	if !keyIDsSeen["new-key-1"] || !keyIDsSeen["old-key-1"] {
		t.Fatalf("expected both old and new keys to have placeholder slots, got %v", keyIDsSeen)
	}

	reloaded, err := view.OpenRoot()
	if err != nil {
		t.Fatalf("reload root: %v", err)
	}
	if reloaded.Signed.Version != 4 {
		t.Fatalf("expected persisted version 4, got %d", reloaded.Signed.Version)
	}
}

func TestCommitTargets_BumpsVersionAndSetsPlaceholders(t *testing.T) {
	dir := t.TempDir()
	view := repository.Open(dir)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	m := &tuf.Metadata[tuf.TargetsType]{
		Signed: tuf.TargetsType{
			Type:        tuf.RoleTargets,
			SpecVersion: tuf.SpecVersion,
			Targets:     map[string]*tuf.TargetFiles{},
			Annotations: tuf.Annotations{ExpiryPeriodDays: 90},
		},
	}
	if err := CommitTargets(view, "targets", m, 0, now, []string{"k1"}); err != nil {
		t.Fatalf("commit targets: %v", err)
	}
	if m.Signed.Version != 1 {
		t.Fatalf("expected version 1, got %d", m.Signed.Version)
	}
	if len(m.Signatures) != 1 || m.Signatures[0].KeyID != "k1" || len(m.Signatures[0].Sig) != 0 {
		t.Fatalf("expected one empty placeholder signature for k1, got %+v", m.Signatures)
	}
}

func TestCommitSnapshotOnline_SignsWithOnlineKey(t *testing.T) {
	dir := t.TempDir()
	view := repository.Open(dir)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	signer, pub, err := keys.GenerateEd25519Signer("online-1")
	if err != nil {
		t.Fatalf("generate signer: %v", err)
	}

	m := &tuf.Metadata[tuf.SnapshotType]{
		Signed: tuf.SnapshotType{
			Type:        tuf.RoleSnapshot,
			SpecVersion: tuf.SpecVersion,
			Meta:        map[string]*tuf.MetaFiles{"targets.json": {Version: 1}},
			Annotations: tuf.Annotations{ExpiryPeriodDays: 1},
		},
	}
	if err := CommitSnapshotOnline(view, m, 0, now, []keys.Signer{signer}); err != nil {
		t.Fatalf("commit snapshot: %v", err)
	}
	if len(m.Signatures) != 1 || m.Signatures[0].KeyID != "online-1" {
		t.Fatalf("expected one signature from online-1, got %+v", m.Signatures)
	}

	payload, err := tuf.CanonicalBytes(m.Signed)
	if err != nil {
		t.Fatalf("canonical bytes: %v", err)
	}
	verifier, err := keys.NewEd25519Verifier(pub)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if !verifier.Verify(payload, m.Signatures[0].Sig) {
		t.Fatal("expected the online signature to verify over the committed payload")
	}
}
