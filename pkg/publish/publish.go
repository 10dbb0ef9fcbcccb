// Package publish builds the TUF-client-consumable layout described in
// §4.7: a pure file-copy step that never mutates or signs metadata.
package publish

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Mindburn-Labs/reposign/pkg/errors"
	"github.com/Mindburn-Labs/reposign/pkg/repository"
	"github.com/Mindburn-Labs/reposign/pkg/tuf"
)

// Run emits the published layout into metaOut, reading metadata from
// src. If artifactsSrc/artifactsOut are non-empty, referenced artifacts
// are also copied into their per-hash published location.
func Run(src *repository.View, metaOut, artifactsSrc, artifactsOut string) error {
	if err := os.MkdirAll(metaOut, 0o755); err != nil {
		return errors.Wrap(errors.IoFailure, "create publish output directory", err)
	}

	if err := copyRootHistory(src.Dir(), metaOut); err != nil {
		return err
	}

	if _, err := src.OpenTimestamp(); err != nil {
		return err
	}
	if err := copyFile(filepath.Join(src.Dir(), "timestamp.json"), filepath.Join(metaOut, "timestamp.json")); err != nil {
		return err
	}

	snapshot, err := src.OpenSnapshot()
	if err != nil {
		return err
	}
	snapshotVersioned := fmt.Sprintf("%d.snapshot.json", snapshot.Signed.Version)
	if err := copyFile(filepath.Join(src.Dir(), "snapshot.json"), filepath.Join(metaOut, snapshotVersioned)); err != nil {
		return err
	}

	for filename, meta := range snapshot.Signed.Meta {
		versioned := fmt.Sprintf("%d.%s", meta.Version, filename)
		if err := copyFile(filepath.Join(src.Dir(), filename), filepath.Join(metaOut, versioned)); err != nil {
			return err
		}
	}

	if err := writeIndexFile(src, metaOut); err != nil {
		return err
	}
	if err := writeCommitmentFile(metaOut); err != nil {
		return err
	}

	if artifactsSrc == "" || artifactsOut == "" {
		return nil
	}
	return copyArtifacts(src, snapshot.Signed.Meta, artifactsSrc, artifactsOut)
}

// writeIndexFile emits index.md when root and top-level targets are both
// present; a repository that hasn't been built yet (no targets) or is
// missing root entirely simply gets no index rather than failing the
// whole publish run.
func writeIndexFile(src *repository.View, metaOut string) error {
	if _, err := src.OpenRoot(); err != nil {
		if errors.ErrRoleMissing.Is(err) {
			return nil
		}
		return err
	}
	if _, err := src.OpenTargets(tuf.RoleTargets); err != nil {
		if errors.ErrRoleMissing.Is(err) {
			return nil
		}
		return err
	}

	f, err := os.Create(filepath.Join(metaOut, "index.md"))
	if err != nil {
		return errors.Wrap(errors.IoFailure, "create index.md", err)
	}
	defer f.Close()
	return WriteIndex(src, f, time.Now())
}

func copyRootHistory(srcDir, metaOut string) error {
	historyDir := filepath.Join(srcDir, "root_history")
	entries, err := os.ReadDir(historyDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(errors.IoFailure, "list root_history", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := copyFile(filepath.Join(historyDir, e.Name()), filepath.Join(metaOut, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// copyArtifacts copies, for targets and every delegated role named in the
// snapshot's meta map, every artifact referenced by that role's targets mapping
// into A/{role_dir}/{hash}.{basename} (§4.7's last bullet).
func copyArtifacts(src *repository.View, meta map[string]*tuf.MetaFiles, artifactsSrc, artifactsOut string) error {
	for filename := range meta {
		role := roleNameFromFilename(filename)
		if role == "" {
			continue
		}
		doc, err := src.OpenTargets(role)
		if err != nil {
			if errors.ErrRoleMissing.Is(err) {
				continue
			}
			return err
		}
		roleDir := filepath.Join(artifactsOut, role)
		if err := os.MkdirAll(roleDir, 0o755); err != nil {
			return errors.Wrap(errors.IoFailure, "create artifact role directory", err)
		}
		for path, entry := range doc.Signed.Targets {
			hash, ok := entry.Hashes["sha256"]
			if !ok {
				continue
			}
			basename := filepath.Base(path)
			dest := filepath.Join(roleDir, hash+"."+basename)
			if err := copyFile(filepath.Join(artifactsSrc, path), dest); err != nil {
				return err
			}
		}
	}
	return nil
}

func roleNameFromFilename(filename string) string {
	const suffix = ".json"
	if len(filename) <= len(suffix) || filename[len(filename)-len(suffix):] != suffix {
		return ""
	}
	role := filename[:len(filename)-len(suffix)]
	if tuf.IsTopLevel(role) && role != tuf.RoleTargets {
		return ""
	}
	return role
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(errors.IoFailure, "open "+src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrap(errors.IoFailure, "create "+filepath.Dir(dest), err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return errors.Wrap(errors.IoFailure, "create "+dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return errors.Wrap(errors.IoFailure, "copy "+src+" to "+dest, err)
	}
	return nil
}
