// Package tuf provides a typed, in-memory representation of the four
// top-level TUF roles (root, targets, snapshot, timestamp), extended with
// the lifecycle annotations this repository engine layers on top of the
// standard TUF 1.0 schema (expiry-period, signing-period, keyowner,
// online-uri). Field naming mirrors the reference go-tuf metadata model
// so the wire format stays byte-compatible with standard TUF clients;
// the annotation fields are carried as explicit Go struct fields but
// serialized into each object's unrecognized_fields at the wire boundary
// so a standards-compliant client that doesn't know about them simply
// ignores them.
package tuf

import (
	"encoding/json"
	"sync"
	"time"
)

// SpecVersion is the TUF specification version this engine reads and writes.
const SpecVersion = "1.0.31"

// Top-level role names.
const (
	RoleRoot      = "root"
	RoleTargets   = "targets"
	RoleSnapshot  = "snapshot"
	RoleTimestamp = "timestamp"
)

// IsTopLevel reports whether name is one of the four reserved role names.
func IsTopLevel(name string) bool {
	switch name {
	case RoleRoot, RoleTargets, RoleSnapshot, RoleTimestamp:
		return true
	default:
		return false
	}
}

// Roles constrains the Signed payload types a Metadata[T] can wrap.
type Roles interface {
	RootType | SnapshotType | TimestampType | TargetsType
}

// Metadata is a signed role document: a Signed payload plus the
// signatures asserted over its canonical encoding.
type Metadata[T Roles] struct {
	Signed     T           `json:"signed"`
	Signatures []Signature `json:"signatures"`
}

// Signature is one signer's assertion over a role's canonical payload.
type Signature struct {
	KeyID              string         `json:"keyid"`
	Sig                HexBytes       `json:"sig"`
	UnrecognizedFields map[string]any `json:"-"`
}

// HexBytes is a byte slice that marshals to/from a lowercase hex string.
type HexBytes []byte

// Annotations carries the two role-level lifecycle fields (expiry-period,
// signing-period) this engine adds on top of standard TUF payloads and
// delegated-role descriptors; the key-level keyowner and online-uri
// fields live on KeyAnnotations. It is
// embedded by value, not by pointer, so zero-value payloads (new roles)
// have well-defined defaults.
type Annotations struct {
	// ExpiryPeriodDays is the positive number of days after which a newly
	// committed version of this payload must expire.
	ExpiryPeriodDays int
	// SigningPeriodDays is the number of days before expiry during which a
	// new version should be produced. A nil value means "not set"; callers
	// should apply the floor(expiry-period/2) default via
	// Annotations.EffectiveSigningPeriod.
	SigningPeriodDays *int
}

// EffectiveSigningPeriod returns SigningPeriodDays if set, otherwise the
// §3-specified default of floor(expiry-period/2).
func (a Annotations) EffectiveSigningPeriod() int {
	if a.SigningPeriodDays != nil {
		return *a.SigningPeriodDays
	}
	return a.ExpiryPeriodDays / 2
}

// KeyAnnotations carries the custom annotations attached to a Key object.
// Exactly one of KeyOwner/OnlineURI should be set outside of import mode.
type KeyAnnotations struct {
	KeyOwner  *string // "@name" identifier for an offline key
	OnlineURI *string // opaque URI recognized by the signer backend
}

// RootType is the signed payload of a root.json document.
type RootType struct {
	Type               string            `json:"_type"`
	SpecVersion        string            `json:"spec_version"`
	ConsistentSnapshot bool              `json:"consistent_snapshot"`
	Version            int64             `json:"version"`
	Expires            time.Time         `json:"expires"`
	Keys               map[string]*Key   `json:"keys"`
	Roles              map[string]*Role  `json:"roles"`
	Annotations        Annotations       `json:"-"`
	UnrecognizedFields map[string]any    `json:"-"`
}

// Role is one top-level role's key binding within root.json.
type Role struct {
	KeyIDs    []string `json:"keyids"`
	Threshold int      `json:"threshold"`
}

// SnapshotType is the signed payload of a snapshot.json document.
type SnapshotType struct {
	Type               string                `json:"_type"`
	SpecVersion        string                `json:"spec_version"`
	Version            int64                 `json:"version"`
	Expires            time.Time             `json:"expires"`
	Meta               map[string]*MetaFiles `json:"meta"`
	Annotations        Annotations           `json:"-"`
	UnrecognizedFields map[string]any        `json:"-"`
}

// TimestampType is the signed payload of a timestamp.json document. It
// always has exactly one entry in Meta: "snapshot.json".
type TimestampType struct {
	Type               string                `json:"_type"`
	SpecVersion        string                `json:"spec_version"`
	Version            int64                 `json:"version"`
	Expires            time.Time             `json:"expires"`
	Meta               map[string]*MetaFiles `json:"meta"`
	Annotations        Annotations           `json:"-"`
	UnrecognizedFields map[string]any        `json:"-"`
}

// MetaFiles records the version (and optionally length/hashes) of a
// referenced metadata file, used in snapshot.meta and timestamp.meta.
type MetaFiles struct {
	Version int64  `json:"version"`
	Length  int64  `json:"length,omitempty"`
	Hashes  Hashes `json:"hashes,omitempty"`
}

// Hashes maps a hash algorithm name to its hex digest.
type Hashes map[string]string

// TargetsType is the signed payload of a targets.json (or delegated
// targets) document.
type TargetsType struct {
	Type               string                  `json:"_type"`
	SpecVersion        string                  `json:"spec_version"`
	Version            int64                   `json:"version"`
	Expires            time.Time               `json:"expires"`
	Targets            map[string]*TargetFiles `json:"targets"`
	Delegations        *Delegations            `json:"delegations,omitempty"`
	Annotations        Annotations             `json:"-"`
	UnrecognizedFields map[string]any          `json:"-"`
}

// TargetFiles describes one artifact tracked by a targets role.
type TargetFiles struct {
	Length int64           `json:"length"`
	Hashes Hashes          `json:"hashes"`
	Custom json.RawMessage `json:"custom,omitempty"` // preserved verbatim, never interpreted
}

// Delegations is the optional delegation block on a targets payload.
type Delegations struct {
	Keys  map[string]*Key `json:"keys"`
	Roles []*DelegatedRole `json:"roles"`
}

// DelegatedRole describes one named delegation: its key set, threshold,
// path-pattern claim, and lifecycle annotations.
type DelegatedRole struct {
	Name        string   `json:"name"`
	KeyIDs      []string `json:"keyids"`
	Threshold   int      `json:"threshold"`
	Terminating bool     `json:"terminating"`
	Paths       []string `json:"paths,omitempty"`
	Annotations Annotations `json:"-"`
}

// Key is a public-key object. Its keyid is derived lazily (and cached)
// from the canonical encoding of the full object, including annotations,
// per the keyid-derivation rule in §3.
type Key struct {
	KeyType            string         `json:"keytype"`
	Scheme             string         `json:"scheme"`
	KeyValue           KeyVal         `json:"keyval"`
	Annotations         KeyAnnotations `json:"-"`
	UnrecognizedFields map[string]any `json:"-"`

	id     string
	idOnce sync.Once
}

// KeyVal holds the actual public-key material.
type KeyVal struct {
	Public string `json:"public"`
}
