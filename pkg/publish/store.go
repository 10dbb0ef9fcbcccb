package publish

import (
	"context"
	"os"
	"path/filepath"

	"github.com/Mindburn-Labs/reposign/pkg/artifacts"
	"github.com/Mindburn-Labs/reposign/pkg/errors"
	"github.com/Mindburn-Labs/reposign/pkg/repository"
	"github.com/Mindburn-Labs/reposign/pkg/tuf"
)

// PushArtifactsToStore is an alternative to the local-directory artifact
// copy in Run/copyArtifacts: it content-addresses each artifact into a
// remote artifacts.Store (S3/GCS-backed) instead of a local A/{role}/
// tree, for deployments that serve published artifacts straight out of
// object storage rather than a filesystem the publish job controls.
func PushArtifactsToStore(ctx context.Context, src *repository.View, meta map[string]*tuf.MetaFiles, artifactsSrc string, store artifacts.Store) error {
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
		for path := range doc.Signed.Targets {
			data, err := os.ReadFile(filepath.Join(artifactsSrc, path))
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return errors.Wrap(errors.IoFailure, "read "+path, err)
			}
			if _, err := store.Store(ctx, data); err != nil {
				return errors.Wrap(errors.IoFailure, "store "+path, err)
			}
		}
	}
	return nil
}
