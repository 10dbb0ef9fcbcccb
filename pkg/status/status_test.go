package status

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/Mindburn-Labs/reposign/pkg/keys"
	"github.com/Mindburn-Labs/reposign/pkg/repository"
	"github.com/Mindburn-Labs/reposign/pkg/signingevent"
	"github.com/Mindburn-Labs/reposign/pkg/tuf"
)

func newKeyFixture(t *testing.T, owner string) (*tuf.Key, keys.Signer) {
	t.Helper()
	signer, pub, err := keys.GenerateEd25519Signer(owner)
	if err != nil {
		t.Fatalf("generate signer: %v", err)
	}
	name := owner
	key := &tuf.Key{
		KeyType:     "ed25519",
		Scheme:      "ed25519",
		KeyValue:    tuf.KeyVal{Public: hex.EncodeToString(pub)},
		Annotations: tuf.KeyAnnotations{KeyOwner: &name},
	}
	return key, signer
}

func signRoot(t *testing.T, m *tuf.Metadata[tuf.RootType], signer keys.Signer) {
	t.Helper()
	payload, err := tuf.CanonicalBytes(m.Signed)
	if err != nil {
		t.Fatalf("canonical bytes: %v", err)
	}
	sig, err := signer.Sign(payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	for i := range m.Signatures {
		if m.Signatures[i].KeyID == signer.KeyID() {
			m.Signatures[i].Sig = sig
			return
		}
	}
	m.Signatures = append(m.Signatures, tuf.Signature{KeyID: signer.KeyID(), Sig: sig})
}

func TestCompute_RootThresholdReached(t *testing.T) {
	dir := t.TempDir()
	view := repository.Open(dir)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	key, signer := newKeyFixture(t, "@alice")
	keyID, err := key.ID()
	if err != nil {
		t.Fatalf("key id: %v", err)
	}

	root := &tuf.Metadata[tuf.RootType]{
		Signed: tuf.RootType{
			Type:               tuf.RoleRoot,
			SpecVersion:        tuf.SpecVersion,
			ConsistentSnapshot: true,
			Version:            1,
			Expires:            now.AddDate(1, 0, 0),
			Keys:               map[string]*tuf.Key{keyID: key},
			Roles: map[string]*tuf.Role{
				tuf.RoleRoot:      {KeyIDs: []string{keyID}, Threshold: 1},
				tuf.RoleTargets:   {KeyIDs: []string{keyID}, Threshold: 1},
				tuf.RoleSnapshot:  {KeyIDs: []string{keyID}, Threshold: 1},
				tuf.RoleTimestamp: {KeyIDs: []string{keyID}, Threshold: 1},
			},
			Annotations: tuf.Annotations{ExpiryPeriodDays: 365},
		},
		Signatures: []tuf.Signature{{KeyID: keyID}},
	}
	signRoot(t, root, signer)
	if err := view.WriteRoot(root); err != nil {
		t.Fatalf("write root: %v", err)
	}

	invites, _ := signingevent.Load(dir)
	st, err := Compute(view, view, invites, now, tuf.RoleRoot, false, nil)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if st == nil {
		t.Fatal("expected non-nil status")
	}
	if !st.Valid {
		t.Fatalf("expected valid root status, got error %q, signed=%v missing=%v", st.Error, st.Signed, st.Missing)
	}
	if len(st.Signed) != 1 || st.Signed[0] != "@alice" {
		t.Fatalf("expected @alice to be recorded as signed, got %v", st.Signed)
	}
}

func TestCompute_InvitesForceInvalid(t *testing.T) {
	dir := t.TempDir()
	view := repository.Open(dir)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	key, signer := newKeyFixture(t, "@alice")
	keyID, _ := key.ID()

	root := &tuf.Metadata[tuf.RootType]{
		Signed: tuf.RootType{
			Type:               tuf.RoleRoot,
			SpecVersion:        tuf.SpecVersion,
			ConsistentSnapshot: true,
			Version:            1,
			Expires:            now.AddDate(1, 0, 0),
			Keys:               map[string]*tuf.Key{keyID: key},
			Roles: map[string]*tuf.Role{
				tuf.RoleRoot:      {KeyIDs: []string{keyID}, Threshold: 1},
				tuf.RoleTargets:   {KeyIDs: []string{keyID}, Threshold: 1},
				tuf.RoleSnapshot:  {KeyIDs: []string{keyID}, Threshold: 1},
				tuf.RoleTimestamp: {KeyIDs: []string{keyID}, Threshold: 1},
			},
			Annotations: tuf.Annotations{ExpiryPeriodDays: 365},
		},
		Signatures: []tuf.Signature{{KeyID: keyID}},
	}
	signRoot(t, root, signer)
	if err := view.WriteRoot(root); err != nil {
		t.Fatalf("write root: %v", err)
	}

	invites := &signingevent.State{Invites: map[string][]string{"@bob": {"root"}}}
	st, err := Compute(view, view, invites, now, tuf.RoleRoot, false, nil)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if st.Valid {
		t.Fatal("expected invalid status while invites are outstanding (P7)")
	}
	if len(st.Invites) != 1 || st.Invites[0] != "@bob" {
		t.Fatalf("expected @bob's invite to be reported, got %v", st.Invites)
	}
}

func TestCompute_TimestampSnapshotKeyMismatchIsInvalid(t *testing.T) {
	dir := t.TempDir()
	view := repository.Open(dir)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	key, signer := newKeyFixture(t, "@alice")
	keyID, _ := key.ID()
	otherKey, _ := newKeyFixture(t, "@bob")
	otherKeyID, _ := otherKey.ID()

	root := &tuf.Metadata[tuf.RootType]{
		Signed: tuf.RootType{
			Type:               tuf.RoleRoot,
			SpecVersion:        tuf.SpecVersion,
			ConsistentSnapshot: true,
			Version:            1,
			Expires:            now.AddDate(1, 0, 0),
			Keys:               map[string]*tuf.Key{keyID: key, otherKeyID: otherKey},
			Roles: map[string]*tuf.Role{
				tuf.RoleRoot:    {KeyIDs: []string{keyID}, Threshold: 1},
				tuf.RoleTargets: {KeyIDs: []string{keyID}, Threshold: 1},
				// snapshot and timestamp must declare identical keyids and
				// threshold (invariant 5 / property P3); here they differ.
				tuf.RoleSnapshot:  {KeyIDs: []string{keyID}, Threshold: 1},
				tuf.RoleTimestamp: {KeyIDs: []string{otherKeyID}, Threshold: 1},
			},
			Annotations: tuf.Annotations{ExpiryPeriodDays: 365},
		},
		Signatures: []tuf.Signature{{KeyID: keyID}},
	}
	signRoot(t, root, signer)
	if err := view.WriteRoot(root); err != nil {
		t.Fatalf("write root: %v", err)
	}

	invites, _ := signingevent.Load(dir)
	st, err := Compute(view, view, invites, now, tuf.RoleRoot, false, nil)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if st.Valid {
		t.Fatal("expected invalid status when timestamp and snapshot keyids diverge")
	}
	if st.Error == "" {
		t.Fatal("expected a non-empty error describing the invariant violation")
	}
}

func TestCompute_KnownGoodMode_NonRootReturnsNil(t *testing.T) {
	dir := t.TempDir()
	view := repository.Open(dir)
	invites, _ := signingevent.Load(dir)
	st, err := Compute(view, view, invites, time.Now(), "myrole", true, nil)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if st != nil {
		t.Fatalf("expected nil status for non-root role in known-good mode, got %+v", st)
	}
}

func TestCompute_KnownGoodMode_MissingRootReturnsNil(t *testing.T) {
	dir := t.TempDir()
	view := repository.Open(dir)
	invites, _ := signingevent.Load(dir)
	st, err := Compute(view, view, invites, time.Now(), tuf.RoleRoot, true, nil)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if st != nil {
		t.Fatalf("expected nil status when known-good root is absent, got %+v", st)
	}
}
