// Package status implements the signing-status engine of §4.6: for a
// role R, it compares the proposed metadata view against the
// known-good view and the pending invitations document to compute
// whether R's signing event is complete.
package status

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/Mindburn-Labs/reposign/pkg/errors"
	"github.com/Mindburn-Labs/reposign/pkg/repository"
	"github.com/Mindburn-Labs/reposign/pkg/signingevent"
	"github.com/Mindburn-Labs/reposign/pkg/tuf"
)

func decodePublicKey(key *tuf.Key) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(key.KeyValue.Public)
	if err != nil {
		return nil, err
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid ed25519 public key size: %d", len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

func edVerify(pub ed25519.PublicKey, payload, sig []byte) bool {
	return ed25519.Verify(pub, payload, sig)
}

// TargetChangeKind classifies one target-path diff entry.
type TargetChangeKind string

const (
	TargetAdded    TargetChangeKind = "ADDED"
	TargetModified TargetChangeKind = "MODIFIED"
	TargetRemoved  TargetChangeKind = "REMOVED"
)

// TargetChange is one path's delta between the known-good and proposed
// targets mapping for a role.
type TargetChange struct {
	Path string
	Kind TargetChangeKind
}

// SigningStatus is the derived, per-role snapshot described in §3.
type SigningStatus struct {
	Role          string
	Invites       []string
	Signed        []string
	Missing       []string
	Threshold     int
	TargetChanges []TargetChange
	Valid         bool
	Error         string
}

// binding is a delegator's key set and role-to-keys binding for R,
// abstracting over whether the delegator is a Root or a Targets payload
// (§4.6 step 1/3).
type binding struct {
	keys      map[string]*tuf.Key
	keyIDs    []string
	threshold int
}

func rootBinding(root *tuf.RootType, role string) (*binding, bool) {
	r, ok := root.Roles[role]
	if !ok {
		return nil, false
	}
	return &binding{keys: root.Keys, keyIDs: r.KeyIDs, threshold: r.Threshold}, true
}

func targetsBinding(targetsDoc *tuf.TargetsType, role string) (*binding, bool) {
	if targetsDoc.Delegations == nil {
		return nil, false
	}
	for _, dr := range targetsDoc.Delegations.Roles {
		if dr.Name == role {
			return &binding{keys: targetsDoc.Delegations.Keys, keyIDs: dr.KeyIDs, threshold: dr.Threshold}, true
		}
	}
	return nil, false
}

// delegatedRolesOf returns the set of roles R delegates to, used to
// collect invites in step 2.
func delegatedRolesOf(role string, proposedTargets *tuf.TargetsType) []string {
	switch role {
	case tuf.RoleRoot:
		return []string{tuf.RoleRoot, tuf.RoleTargets}
	case tuf.RoleTargets:
		if proposedTargets == nil || proposedTargets.Delegations == nil {
			return nil
		}
		names := make([]string, 0, len(proposedTargets.Delegations.Roles))
		for _, dr := range proposedTargets.Delegations.Roles {
			names = append(names, dr.Name)
		}
		return names
	default:
		return nil
	}
}

// PolicyRule is the subset of *policy.SigningRule the status engine
// needs, kept as an interface here so this package never imports CEL
// types directly.
type PolicyRule interface {
	Check(role string, signed, missing []string, threshold int) error
}

// Compute implements status(role, known_good) → SigningStatus? per
// §4.6. It returns (nil, nil) for the documented "no baseline to
// compare against" / "not applicable" cases rather than an error. An
// optional rule is consulted once §3's own invariants already pass,
// letting an operator add acceptance criteria (e.g. a signer allow-list)
// without touching the invariants themselves.
func Compute(proposed, knownGood *repository.View, invites *signingevent.State, now time.Time, role string, knownGoodMode bool, rule PolicyRule) (*SigningStatus, error) {
	var (
		st  *SigningStatus
		err error
	)
	if knownGoodMode {
		if role != tuf.RoleRoot {
			return nil, nil
		}
		kgRoot, kgErr := knownGood.OpenRoot()
		if kgErr != nil {
			if errors.ErrRoleMissing.Is(kgErr) {
				return nil, nil
			}
			return nil, kgErr
		}
		st, err = computeAgainstRoot(&kgRoot.Signed, proposed, knownGood, invites, now, role, true)
	} else {
		switch role {
		case tuf.RoleRoot, tuf.RoleTargets, tuf.RoleTimestamp, tuf.RoleSnapshot:
			propRoot, propErr := proposed.OpenRoot()
			if propErr != nil {
				return nil, propErr
			}
			st, err = computeAgainstRoot(&propRoot.Signed, proposed, knownGood, invites, now, role, false)
		default:
			propTargets, propErr := proposed.OpenTargets(tuf.RoleTargets)
			if propErr != nil {
				return nil, propErr
			}
			st, err = computeAgainstTargets(&propTargets.Signed, proposed, knownGood, invites, now, role)
		}
	}
	if err != nil || st == nil {
		return st, err
	}
	if st.Valid && rule != nil {
		if ruleErr := rule.Check(st.Role, st.Signed, st.Missing, st.Threshold); ruleErr != nil {
			st.Valid = false
			st.Error = ruleErr.Error()
		}
	}
	return st, nil
}

func computeAgainstRoot(delegatorRoot *tuf.RootType, proposed, knownGood *repository.View, invites *signingevent.State, now time.Time, role string, knownGoodMode bool) (*SigningStatus, error) {
	b, ok := rootBinding(delegatorRoot, role)
	if !ok {
		return &SigningStatus{Role: role, Error: fmt.Sprintf("root does not delegate role %q", role)}, nil
	}

	var proposedTargetsPayload *tuf.TargetsType
	if doc, err := proposed.OpenTargets(tuf.RoleTargets); err == nil {
		proposedTargetsPayload = &doc.Signed
	}

	st := &SigningStatus{
		Role:      role,
		Invites:   collectInvites(role, proposedTargetsPayload, invites),
		Threshold: b.threshold,
	}

	if err := verifySignatures(st, b, proposed, role, knownGoodMode); err != nil {
		return nil, err
	}

	changes, err := diffTargets(proposed, knownGood, role)
	if err != nil {
		return nil, err
	}
	st.TargetChanges = changes

	st.Valid = validate(st, proposed, knownGood, role, now)
	return st, nil
}

// collectInvites gathers invites across every role R delegates to
// (§4.6 step 2): {root, targets} for R=root, R's named delegations for
// R=targets, none otherwise.
func collectInvites(role string, proposedTargets *tuf.TargetsType, invites *signingevent.State) []string {
	var names []string
	for _, delegated := range delegatedRolesOf(role, proposedTargets) {
		names = append(names, invites.InvitedSignersForRole(delegated)...)
	}
	return names
}

func computeAgainstTargets(delegatorTargets *tuf.TargetsType, proposed, knownGood *repository.View, invites *signingevent.State, now time.Time, role string) (*SigningStatus, error) {
	b, ok := targetsBinding(delegatorTargets, role)
	if !ok {
		return &SigningStatus{Role: role, Error: fmt.Sprintf("targets does not delegate role %q", role)}, nil
	}

	st := &SigningStatus{
		Role:      role,
		Invites:   collectInvites(role, delegatorTargets, invites),
		Threshold: b.threshold,
	}

	if err := verifySignatures(st, b, proposed, role, false); err != nil {
		return nil, err
	}

	changes, err := diffTargets(proposed, knownGood, role)
	if err != nil {
		return nil, err
	}
	st.TargetChanges = changes

	st.Valid = validate(st, proposed, knownGood, role, now)
	return st, nil
}

func verifySignatures(st *SigningStatus, b *binding, proposed *repository.View, role string, knownGoodMode bool) error {
	payload, signatures, err := roleSignedAndSignatures(proposed, role)
	if err != nil {
		return err
	}

	sigByKeyID := map[string][]byte{}
	for _, sig := range signatures {
		sigByKeyID[sig.KeyID] = sig.Sig
	}

	for _, keyID := range b.keyIDs {
		key, known := b.keys[keyID]
		if knownGoodMode && (!known || key.Annotations.KeyOwner == nil) {
			continue
		}
		name := keyID
		if known && key.Annotations.KeyOwner != nil {
			name = *key.Annotations.KeyOwner
		}
		sig, signed := sigByKeyID[keyID]
		if signed && known && len(sig) > 0 && verifyOne(key, payload, sig) {
			st.Signed = append(st.Signed, name)
		} else {
			st.Missing = append(st.Missing, name)
		}
	}
	return nil
}

func verifyOne(key *tuf.Key, payload, sig []byte) bool {
	pub, err := decodePublicKey(key)
	if err != nil {
		return false
	}
	return edVerify(pub, payload, sig)
}

func roleSignedAndSignatures(view *repository.View, role string) ([]byte, []tuf.Signature, error) {
	switch role {
	case tuf.RoleRoot:
		m, err := view.OpenRoot()
		if err != nil {
			return nil, nil, err
		}
		payload, err := tuf.CanonicalBytes(m.Signed)
		return payload, m.Signatures, err
	case tuf.RoleSnapshot:
		m, err := view.OpenSnapshot()
		if err != nil {
			return nil, nil, err
		}
		payload, err := tuf.CanonicalBytes(m.Signed)
		return payload, m.Signatures, err
	case tuf.RoleTimestamp:
		m, err := view.OpenTimestamp()
		if err != nil {
			return nil, nil, err
		}
		payload, err := tuf.CanonicalBytes(m.Signed)
		return payload, m.Signatures, err
	default:
		m, err := view.OpenTargets(role)
		if err != nil {
			return nil, nil, err
		}
		payload, err := tuf.CanonicalBytes(m.Signed)
		return payload, m.Signatures, err
	}
}

func diffTargets(proposed, knownGood *repository.View, role string) ([]TargetChange, error) {
	if role == tuf.RoleRoot || role == tuf.RoleSnapshot || role == tuf.RoleTimestamp {
		return nil, nil
	}
	propDoc, err := proposed.OpenTargets(role)
	if err != nil {
		if errors.ErrRoleMissing.Is(err) {
			propDoc = &tuf.Metadata[tuf.TargetsType]{Signed: tuf.TargetsType{Targets: map[string]*tuf.TargetFiles{}}}
		} else {
			return nil, err
		}
	}
	kgDoc, err := knownGood.OpenTargets(role)
	if err != nil {
		if errors.ErrRoleMissing.Is(err) {
			kgDoc = &tuf.Metadata[tuf.TargetsType]{Signed: tuf.TargetsType{Targets: map[string]*tuf.TargetFiles{}}}
		} else {
			return nil, err
		}
	}

	var changes []TargetChange
	for path, entry := range propDoc.Signed.Targets {
		old, existed := kgDoc.Signed.Targets[path]
		if !existed {
			changes = append(changes, TargetChange{Path: path, Kind: TargetAdded})
			continue
		}
		if old.Length != entry.Length || old.Hashes["sha256"] != entry.Hashes["sha256"] {
			changes = append(changes, TargetChange{Path: path, Kind: TargetModified})
		}
	}
	for path := range kgDoc.Signed.Targets {
		if _, stillPresent := propDoc.Signed.Targets[path]; !stillPresent {
			changes = append(changes, TargetChange{Path: path, Kind: TargetRemoved})
		}
	}
	return changes, nil
}

// validate runs §4.6 step 5's validity rule together with the §3
// invariants a signing-status computation can actually observe (1-6).
// Any invites present forces invalid (P7); a failed invariant or an
// unmet threshold also forces invalid, in that order. Invariants 1/5/6
// are statements about the proposed root's own bindings, so they apply
// whenever proposed has one, regardless of which root bound R's
// signing keys (root-rotation status binds against the known-good
// root instead, since that's who must countersign the rotation).
func validate(st *SigningStatus, proposed, knownGood *repository.View, role string, now time.Time) bool {
	if len(st.Invites) > 0 {
		st.Error = "pending invites outstanding"
		return false
	}

	version, expires, annotations, err := roleMeta(proposed, role)
	if err != nil {
		st.Error = err.Error()
		return false
	}

	if propRoot, rootErr := proposed.OpenRoot(); rootErr == nil {
		if role == tuf.RoleRoot && !propRoot.Signed.ConsistentSnapshot {
			st.Error = errors.Invariant("1", "root must declare consistent_snapshot = true").Error()
			return false
		}
		if err := checkTimestampSnapshotParity(&propRoot.Signed); err != nil {
			st.Error = err.Error()
			return false
		}
		if role == tuf.RoleSnapshot || role == tuf.RoleTimestamp {
			if err := checkOnlineSigningPeriod(role, annotations); err != nil {
				st.Error = err.Error()
				return false
			}
		}
	}

	if kgVersion, _, _, kgErr := roleMeta(knownGood, role); kgErr == nil && version != kgVersion {
		if version != kgVersion+1 {
			name := "3"
			if role == tuf.RoleRoot {
				name = "2"
			}
			st.Error = errors.Invariant(name, fmt.Sprintf("%s version %d must equal known-good version %d + 1", role, version, kgVersion)).Error()
			return false
		}
	}

	if !expires.IsZero() {
		if expires.Before(now) {
			st.Error = fmt.Sprintf("%s expired at %s", role, expires)
			return false
		}
		if maxExpires := now.AddDate(0, 0, annotations.ExpiryPeriodDays); annotations.ExpiryPeriodDays > 0 && expires.After(maxExpires) {
			st.Error = errors.Invariant("4", fmt.Sprintf("%s expires %s exceeds now+expiry-period (%s)", role, expires, maxExpires)).Error()
			return false
		}
	}

	if len(st.Signed) < st.Threshold {
		st.Error = fmt.Sprintf("only %d of %d required signatures present", len(st.Signed), st.Threshold)
		return false
	}
	return true
}

// checkTimestampSnapshotParity enforces invariant 5: timestamp and
// snapshot must declare identical keyids and threshold. This is
// testable property P3 once combined with root's consistent_snapshot
// flag.
func checkTimestampSnapshotParity(root *tuf.RootType) error {
	ts, ok := root.Roles[tuf.RoleTimestamp]
	if !ok {
		return nil
	}
	ss, ok := root.Roles[tuf.RoleSnapshot]
	if !ok {
		return nil
	}
	if ts.Threshold != ss.Threshold || !sameKeyIDs(ts.KeyIDs, ss.KeyIDs) {
		return errors.Invariant("5", "timestamp and snapshot must declare identical keyids and threshold")
	}
	return nil
}

// checkOnlineSigningPeriod enforces invariant 6 for the two online
// roles: signing-period must be at least a day and strictly less than
// expiry-period.
func checkOnlineSigningPeriod(role string, annotations tuf.Annotations) error {
	signingPeriod := annotations.EffectiveSigningPeriod()
	if signingPeriod < 1 {
		return errors.Invariant("6", fmt.Sprintf("%s signing-period must be >= 1 day", role))
	}
	if annotations.ExpiryPeriodDays <= signingPeriod {
		return errors.Invariant("6", fmt.Sprintf("%s expiry-period (%d) must exceed signing-period (%d)", role, annotations.ExpiryPeriodDays, signingPeriod))
	}
	return nil
}

// sameKeyIDs compares two keyid sets order-independently.
func sameKeyIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, id := range a {
		seen[id]++
	}
	for _, id := range b {
		seen[id]--
		if seen[id] < 0 {
			return false
		}
	}
	return true
}

// roleMeta returns role's version, expiry, and lifecycle annotations
// from view, used both for the expiry/signing-period invariants and
// for the version-monotonicity comparison against a known-good view.
func roleMeta(view *repository.View, role string) (version int64, expires time.Time, annotations tuf.Annotations, err error) {
	switch role {
	case tuf.RoleRoot:
		m, err := view.OpenRoot()
		if err != nil {
			return 0, time.Time{}, tuf.Annotations{}, err
		}
		return m.Signed.Version, m.Signed.Expires, m.Signed.Annotations, nil
	case tuf.RoleSnapshot:
		m, err := view.OpenSnapshot()
		if err != nil {
			return 0, time.Time{}, tuf.Annotations{}, err
		}
		return m.Signed.Version, m.Signed.Expires, m.Signed.Annotations, nil
	case tuf.RoleTimestamp:
		m, err := view.OpenTimestamp()
		if err != nil {
			return 0, time.Time{}, tuf.Annotations{}, err
		}
		return m.Signed.Version, m.Signed.Expires, m.Signed.Annotations, nil
	default:
		m, err := view.OpenTargets(role)
		if err != nil {
			return 0, time.Time{}, tuf.Annotations{}, err
		}
		return m.Signed.Version, m.Signed.Expires, m.Signed.Annotations, nil
	}
}
