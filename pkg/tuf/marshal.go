package tuf

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Mindburn-Labs/reposign/pkg/canonicalize"
	"github.com/Mindburn-Labs/reposign/pkg/semver"
)

// checkSpecVersion rejects a payload declaring a spec_version this engine
// doesn't understand before any of its other fields are trusted.
func checkSpecVersion(specVersion string) error {
	if err := semver.CheckSpecVersion(specVersion); err != nil {
		return fmt.Errorf("tuf: %w", err)
	}
	return nil
}

// Custom annotation field names. The "x-" prefix and project tag keep
// these namespaced so a standard TUF client that doesn't recognize them
// leaves them alone inside unrecognized_fields.
const (
	fieldExpiryPeriod  = "x-reposign-expiry-period"
	fieldSigningPeriod = "x-reposign-signing-period"
	fieldKeyOwner      = "x-reposign-keyowner"
	fieldOnlineURI     = "x-reposign-online-uri"
)

func (h HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(h))
}

func (h *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("tuf: hexbytes must be a string: %w", err)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("tuf: invalid hex bytes: %w", err)
	}
	*h = b
	return nil
}

// rawObject is a generic helper for objects that mix typed fields with a
// custom-annotation wire extension and an opaque UnrecognizedFields bag.
type rawObject map[string]json.RawMessage

func (r rawObject) popInt(key string) (*int, error) {
	raw, ok := r[key]
	if !ok {
		return nil, nil
	}
	var v int
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("tuf: field %q must be an integer: %w", key, err)
	}
	delete(r, key)
	return &v, nil
}

func (r rawObject) popString(key string) (*string, error) {
	raw, ok := r[key]
	if !ok {
		return nil, nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("tuf: field %q must be a string: %w", key, err)
	}
	delete(r, key)
	return &v, nil
}

func (r rawObject) remainder() map[string]any {
	if len(r) == 0 {
		return nil
	}
	out := make(map[string]any, len(r))
	for k, raw := range r {
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			out[k] = v
		}
	}
	return out
}

func popAnnotations(r rawObject) (Annotations, error) {
	var ann Annotations
	expiry, err := r.popInt(fieldExpiryPeriod)
	if err != nil {
		return ann, err
	}
	if expiry != nil {
		ann.ExpiryPeriodDays = *expiry
	}
	signing, err := r.popInt(fieldSigningPeriod)
	if err != nil {
		return ann, err
	}
	ann.SigningPeriodDays = signing
	return ann, nil
}

func putAnnotations(m map[string]any, ann Annotations) {
	m[fieldExpiryPeriod] = ann.ExpiryPeriodDays
	if ann.SigningPeriodDays != nil {
		m[fieldSigningPeriod] = *ann.SigningPeriodDays
	}
}

func mergeUnrecognized(m map[string]any, extra map[string]any) {
	for k, v := range extra {
		m[k] = v
	}
}

// --- Key ---

func (k Key) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"keytype": k.KeyType,
		"scheme":  k.Scheme,
		"keyval":  k.KeyValue,
	}
	if k.Annotations.KeyOwner != nil {
		out[fieldKeyOwner] = *k.Annotations.KeyOwner
	}
	if k.Annotations.OnlineURI != nil {
		out[fieldOnlineURI] = *k.Annotations.OnlineURI
	}
	mergeUnrecognized(out, k.UnrecognizedFields)
	return json.Marshal(out)
}

func (k *Key) UnmarshalJSON(data []byte) error {
	var raw rawObject
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("tuf: invalid key object: %w", err)
	}

	if kt, err := raw.popString("keytype"); err != nil {
		return err
	} else if kt != nil {
		k.KeyType = *kt
	}
	if sc, err := raw.popString("scheme"); err != nil {
		return err
	} else if sc != nil {
		k.Scheme = *sc
	}
	if kvRaw, ok := raw["keyval"]; ok {
		if err := json.Unmarshal(kvRaw, &k.KeyValue); err != nil {
			return fmt.Errorf("tuf: invalid keyval: %w", err)
		}
		delete(raw, "keyval")
	}

	owner, err := raw.popString(fieldKeyOwner)
	if err != nil {
		return err
	}
	k.Annotations.KeyOwner = owner

	uri, err := raw.popString(fieldOnlineURI)
	if err != nil {
		return err
	}
	k.Annotations.OnlineURI = uri

	k.UnrecognizedFields = raw.remainder()
	return nil
}

// ID returns the key's keyid: SHA-256 of the canonical-JSON encoding of
// the key object, including its custom annotations (§3, P2). The result
// is cached since the Key is treated as immutable once constructed.
func (k *Key) ID() (string, error) {
	var computeErr error
	k.idOnce.Do(func() {
		id, err := canonicalize.KeyID(k)
		if err != nil {
			computeErr = err
			return
		}
		k.id = id
	})
	if computeErr != nil {
		return "", computeErr
	}
	return k.id, nil
}

// --- RootType ---

func (r RootType) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"_type":               r.Type,
		"spec_version":        r.SpecVersion,
		"consistent_snapshot": r.ConsistentSnapshot,
		"version":             r.Version,
		"expires":             formatRFC3339(r.Expires),
		"keys":                r.Keys,
		"roles":               r.Roles,
	}
	putAnnotations(out, r.Annotations)
	mergeUnrecognized(out, r.UnrecognizedFields)
	return json.Marshal(out)
}

func (r *RootType) UnmarshalJSON(data []byte) error {
	var raw rawObject
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("tuf: invalid root payload: %w", err)
	}

	type known struct {
		Type               string           `json:"_type"`
		SpecVersion        string           `json:"spec_version"`
		ConsistentSnapshot bool             `json:"consistent_snapshot"`
		Version            int64            `json:"version"`
		Expires            string           `json:"expires"`
		Keys               map[string]*Key  `json:"keys"`
		Roles              map[string]*Role `json:"roles"`
	}
	var k known
	if err := json.Unmarshal(data, &k); err != nil {
		return fmt.Errorf("tuf: invalid root payload: %w", err)
	}
	if err := checkSpecVersion(k.SpecVersion); err != nil {
		return err
	}
	r.Type = k.Type
	r.SpecVersion = k.SpecVersion
	r.ConsistentSnapshot = k.ConsistentSnapshot
	r.Version = k.Version
	r.Keys = k.Keys
	r.Roles = k.Roles
	if err := parseRFC3339(k.Expires, &r.Expires); err != nil {
		return err
	}
	for _, field := range []string{"_type", "spec_version", "consistent_snapshot", "version", "expires", "keys", "roles"} {
		delete(raw, field)
	}

	ann, err := popAnnotations(raw)
	if err != nil {
		return err
	}
	r.Annotations = ann
	r.UnrecognizedFields = raw.remainder()
	return nil
}

// --- SnapshotType / TimestampType share a shape ---

func marshalMetaPayload(typ, specVersion string, version int64, expires time.Time, meta map[string]*MetaFiles, ann Annotations, unrecognized map[string]any) ([]byte, error) {
	out := map[string]any{
		"_type":        typ,
		"spec_version": specVersion,
		"version":      version,
		"expires":      formatRFC3339(expires),
		"meta":         meta,
	}
	putAnnotations(out, ann)
	mergeUnrecognized(out, unrecognized)
	return json.Marshal(out)
}

type metaPayloadKnown struct {
	Type        string                `json:"_type"`
	SpecVersion string                `json:"spec_version"`
	Version     int64                 `json:"version"`
	Expires     string                `json:"expires"`
	Meta        map[string]*MetaFiles `json:"meta"`
}

func unmarshalMetaPayload(data []byte) (metaPayloadKnown, Annotations, map[string]any, error) {
	var raw rawObject
	if err := json.Unmarshal(data, &raw); err != nil {
		return metaPayloadKnown{}, Annotations{}, nil, fmt.Errorf("tuf: invalid payload: %w", err)
	}
	var k metaPayloadKnown
	if err := json.Unmarshal(data, &k); err != nil {
		return metaPayloadKnown{}, Annotations{}, nil, fmt.Errorf("tuf: invalid payload: %w", err)
	}
	if err := checkSpecVersion(k.SpecVersion); err != nil {
		return metaPayloadKnown{}, Annotations{}, nil, err
	}
	for _, field := range []string{"_type", "spec_version", "version", "expires", "meta"} {
		delete(raw, field)
	}
	ann, err := popAnnotations(raw)
	if err != nil {
		return metaPayloadKnown{}, Annotations{}, nil, err
	}
	return k, ann, raw.remainder(), nil
}

func (s SnapshotType) MarshalJSON() ([]byte, error) {
	return marshalMetaPayload(s.Type, s.SpecVersion, s.Version, s.Expires, s.Meta, s.Annotations, s.UnrecognizedFields)
}

func (s *SnapshotType) UnmarshalJSON(data []byte) error {
	k, ann, extra, err := unmarshalMetaPayload(data)
	if err != nil {
		return err
	}
	s.Type, s.SpecVersion, s.Version, s.Meta = k.Type, k.SpecVersion, k.Version, k.Meta
	if err := parseRFC3339(k.Expires, &s.Expires); err != nil {
		return err
	}
	s.Annotations = ann
	s.UnrecognizedFields = extra
	return nil
}

func (t TimestampType) MarshalJSON() ([]byte, error) {
	return marshalMetaPayload(t.Type, t.SpecVersion, t.Version, t.Expires, t.Meta, t.Annotations, t.UnrecognizedFields)
}

func (t *TimestampType) UnmarshalJSON(data []byte) error {
	k, ann, extra, err := unmarshalMetaPayload(data)
	if err != nil {
		return err
	}
	t.Type, t.SpecVersion, t.Version, t.Meta = k.Type, k.SpecVersion, k.Version, k.Meta
	if err := parseRFC3339(k.Expires, &t.Expires); err != nil {
		return err
	}
	t.Annotations = ann
	t.UnrecognizedFields = extra
	return nil
}

// --- TargetsType ---

func (t TargetsType) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"_type":        t.Type,
		"spec_version": t.SpecVersion,
		"version":      t.Version,
		"expires":      formatRFC3339(t.Expires),
		"targets":      t.Targets,
	}
	if t.Delegations != nil {
		out["delegations"] = t.Delegations
	}
	putAnnotations(out, t.Annotations)
	mergeUnrecognized(out, t.UnrecognizedFields)
	return json.Marshal(out)
}

func (t *TargetsType) UnmarshalJSON(data []byte) error {
	var raw rawObject
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("tuf: invalid targets payload: %w", err)
	}

	type known struct {
		Type        string                  `json:"_type"`
		SpecVersion string                  `json:"spec_version"`
		Version     int64                   `json:"version"`
		Expires     string                  `json:"expires"`
		Targets     map[string]*TargetFiles `json:"targets"`
		Delegations *Delegations            `json:"delegations,omitempty"`
	}
	var k known
	if err := json.Unmarshal(data, &k); err != nil {
		return fmt.Errorf("tuf: invalid targets payload: %w", err)
	}
	if err := checkSpecVersion(k.SpecVersion); err != nil {
		return err
	}
	t.Type, t.SpecVersion, t.Version, t.Targets, t.Delegations = k.Type, k.SpecVersion, k.Version, k.Targets, k.Delegations
	if err := parseRFC3339(k.Expires, &t.Expires); err != nil {
		return err
	}
	for _, field := range []string{"_type", "spec_version", "version", "expires", "targets", "delegations"} {
		delete(raw, field)
	}

	ann, err := popAnnotations(raw)
	if err != nil {
		return err
	}
	t.Annotations = ann
	t.UnrecognizedFields = raw.remainder()
	return nil
}

// --- DelegatedRole ---

func (d DelegatedRole) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"name":        d.Name,
		"keyids":      d.KeyIDs,
		"threshold":   d.Threshold,
		"terminating": d.Terminating,
	}
	if len(d.Paths) > 0 {
		out["paths"] = d.Paths
	}
	putAnnotations(out, d.Annotations)
	return json.Marshal(out)
}

func (d *DelegatedRole) UnmarshalJSON(data []byte) error {
	var raw rawObject
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("tuf: invalid delegated role: %w", err)
	}
	type known struct {
		Name        string   `json:"name"`
		KeyIDs      []string `json:"keyids"`
		Threshold   int      `json:"threshold"`
		Terminating bool     `json:"terminating"`
		Paths       []string `json:"paths,omitempty"`
	}
	var k known
	if err := json.Unmarshal(data, &k); err != nil {
		return fmt.Errorf("tuf: invalid delegated role: %w", err)
	}
	d.Name, d.KeyIDs, d.Threshold, d.Terminating, d.Paths = k.Name, k.KeyIDs, k.Threshold, k.Terminating, k.Paths
	for _, field := range []string{"name", "keyids", "threshold", "terminating", "paths"} {
		delete(raw, field)
	}
	ann, err := popAnnotations(raw)
	if err != nil {
		return err
	}
	d.Annotations = ann
	return nil
}
