// Package repository adapts a metadata directory (root.json, targets.json,
// snapshot.json, timestamp.json, any number of <delegated>.json, and
// root_history/<version>.root.json) into role-typed, lazily-parsed views.
// Two views typically coexist: the proposed view (the checked-out
// signing-event branch) and the known-good view (the merge base).
package repository

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Mindburn-Labs/reposign/pkg/errors"
	"github.com/Mindburn-Labs/reposign/pkg/tuf"
)

// View is a read/write adapter over one metadata directory.
type View struct {
	dir string
}

// Open returns a View rooted at dir. dir need not exist yet for a
// known-good view of a brand-new repository; reads against a missing
// directory behave as if every role file were absent.
func Open(dir string) *View {
	return &View{dir: dir}
}

func (v *View) Dir() string { return v.dir }

func (v *View) rolePath(role string) string {
	return filepath.Join(v.dir, role+".json")
}

func (v *View) rootHistoryPath(version int64) string {
	return filepath.Join(v.dir, "root_history", strconv.FormatInt(version, 10)+".root.json")
}

func (v *View) readFile(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(errors.IoFailure, "read metadata file "+path, err)
	}
	return data, true, nil
}

// OpenRoot returns the stored root.json, or RoleMissing if absent.
func (v *View) OpenRoot() (*tuf.Metadata[tuf.RootType], error) {
	data, ok, err := v.readFile(v.rolePath(tuf.RoleRoot))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New(errors.RoleMissing, "root.json not present")
	}
	return tuf.DecodeMetadata[tuf.RootType](data)
}

// KnownGoodRoot returns the stored root, or an empty default Root
// (version 0, no keys) if the known-good view has no root yet, per
// §4.2 so callers always have something to diff against.
func (v *View) KnownGoodRoot(now time.Time, expiryPeriodDays int) (*tuf.Metadata[tuf.RootType], error) {
	root, err := v.OpenRoot()
	if err == nil {
		return root, nil
	}
	if errors.ErrRoleMissing.Is(err) {
		return emptyRoot(now, expiryPeriodDays), nil
	}
	return nil, err
}

func emptyRoot(now time.Time, expiryPeriodDays int) *tuf.Metadata[tuf.RootType] {
	return &tuf.Metadata[tuf.RootType]{
		Signed: tuf.RootType{
			Type:               tuf.RoleRoot,
			SpecVersion:        tuf.SpecVersion,
			ConsistentSnapshot: true,
			Version:            0,
			Expires:            now.AddDate(0, 0, expiryPeriodDays),
			Keys:               map[string]*tuf.Key{},
			Roles:              map[string]*tuf.Role{},
			Annotations:        tuf.Annotations{ExpiryPeriodDays: expiryPeriodDays},
		},
	}
}

// OpenTargets returns the stored <role>.json for a targets or delegated
// targets role name, or RoleMissing if absent.
func (v *View) OpenTargets(role string) (*tuf.Metadata[tuf.TargetsType], error) {
	data, ok, err := v.readFile(v.rolePath(role))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New(errors.RoleMissing, role+".json not present")
	}
	return tuf.DecodeMetadata[tuf.TargetsType](data)
}

// OpenSnapshot returns the stored snapshot.json, or a freshly initialized
// empty document at version 0 if absent (§4.2: timestamp/snapshot only).
func (v *View) OpenSnapshot() (*tuf.Metadata[tuf.SnapshotType], error) {
	data, ok, err := v.readFile(v.rolePath(tuf.RoleSnapshot))
	if err != nil {
		return nil, err
	}
	if !ok {
		return &tuf.Metadata[tuf.SnapshotType]{
			Signed: tuf.SnapshotType{
				Type:        tuf.RoleSnapshot,
				SpecVersion: tuf.SpecVersion,
				Version:     0,
				Meta:        map[string]*tuf.MetaFiles{},
			},
		}, nil
	}
	return tuf.DecodeMetadata[tuf.SnapshotType](data)
}

// OpenTimestamp returns the stored timestamp.json, or a freshly
// initialized empty document at version 0 if absent.
func (v *View) OpenTimestamp() (*tuf.Metadata[tuf.TimestampType], error) {
	data, ok, err := v.readFile(v.rolePath(tuf.RoleTimestamp))
	if err != nil {
		return nil, err
	}
	if !ok {
		return &tuf.Metadata[tuf.TimestampType]{
			Signed: tuf.TimestampType{
				Type:        tuf.RoleTimestamp,
				SpecVersion: tuf.SpecVersion,
				Version:     0,
				Meta:        map[string]*tuf.MetaFiles{},
			},
		}, nil
	}
	return tuf.DecodeMetadata[tuf.TimestampType](data)
}

// VersionOf returns the stored version of role, or 0 if absent. It peeks
// at just the "version" field rather than fully typed-decoding the
// payload, so it works uniformly across all four role kinds.
func (v *View) VersionOf(role string) (int64, error) {
	data, ok, err := v.readFile(v.rolePath(role))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return peekVersion(data)
}

// WriteRoot persists a root document and archives it under
// root_history/<version>.root.json, per §4.3 step 7.
func (v *View) WriteRoot(m *tuf.Metadata[tuf.RootType]) error {
	data, err := tuf.EncodeMetadata(m)
	if err != nil {
		return err
	}
	if err := v.writeFile(v.rolePath(tuf.RoleRoot), data); err != nil {
		return err
	}
	return v.writeFile(v.rootHistoryPath(m.Signed.Version), data)
}

// WriteTargets persists a targets (or delegated targets) document.
func (v *View) WriteTargets(role string, m *tuf.Metadata[tuf.TargetsType]) error {
	data, err := tuf.EncodeMetadata(m)
	if err != nil {
		return err
	}
	return v.writeFile(v.rolePath(role), data)
}

// WriteSnapshot persists the snapshot document.
func (v *View) WriteSnapshot(m *tuf.Metadata[tuf.SnapshotType]) error {
	data, err := tuf.EncodeMetadata(m)
	if err != nil {
		return err
	}
	return v.writeFile(v.rolePath(tuf.RoleSnapshot), data)
}

// WriteTimestamp persists the timestamp document.
func (v *View) WriteTimestamp(m *tuf.Metadata[tuf.TimestampType]) error {
	data, err := tuf.EncodeMetadata(m)
	if err != nil {
		return err
	}
	return v.writeFile(v.rolePath(tuf.RoleTimestamp), data)
}

func (v *View) writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.IoFailure, "create metadata directory", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.IoFailure, "write metadata file "+path, err)
	}
	return nil
}

// RoleFiles lists the delegated-targets role names present in the
// directory (every "*.json" other than the four top-level names).
func (v *View) RoleFiles() ([]string, error) {
	entries, err := os.ReadDir(v.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.IoFailure, "list metadata directory", err)
	}
	var roles []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) != ".json" {
			continue
		}
		role := name[:len(name)-len(".json")]
		if tuf.IsTopLevel(role) {
			continue
		}
		roles = append(roles, role)
	}
	return roles, nil
}
