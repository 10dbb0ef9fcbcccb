package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/reposign/pkg/artifacts"
	"github.com/Mindburn-Labs/reposign/pkg/canonicalize"
	"github.com/Mindburn-Labs/reposign/pkg/config"
	"github.com/Mindburn-Labs/reposign/pkg/eventlog"
	"github.com/Mindburn-Labs/reposign/pkg/observability"
	"github.com/Mindburn-Labs/reposign/pkg/publish"
	"github.com/Mindburn-Labs/reposign/pkg/repository"
)

// runPublishCmd emits the pure-file-copy published layout of §4.7.
func runPublishCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("publish", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	cfg := config.Load()
	var (
		repoDir      string
		metaOut      string
		artifactsSrc string
		artifactsOut string
		eventLogDB   string
		signingEvt   string
		toStore      bool
	)
	cmd.StringVar(&repoDir, "repo", ".", "Metadata directory")
	cmd.StringVar(&metaOut, "meta-out", "", "Published metadata output directory (REQUIRED)")
	cmd.StringVar(&artifactsSrc, "artifacts", "", "Artifact source directory (optional)")
	cmd.StringVar(&artifactsOut, "artifacts-out", "", "Published artifact output directory (optional)")
	cmd.StringVar(&eventLogDB, "eventlog-db", cfg.EventLogDB, "Optional sqlite file to append this publish run to as history")
	cmd.StringVar(&signingEvt, "signing-event", "", "Signing-event branch name recorded alongside the eventlog entry")
	cmd.BoolVar(&toStore, "artifacts-store", false, "Also content-address artifacts into the Store configured by ARTIFACT_STORAGE_TYPE (fs/s3/gcs)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if metaOut == "" {
		fmt.Fprintln(stderr, "Error: --meta-out is required")
		return 2
	}

	ctx := context.Background()
	var obs *observability.Provider
	if cfg.OTELEnabled {
		p, err := observability.New(ctx, &observability.Config{
			ServiceName: "reposign", ServiceVersion: "1.0.0", Enabled: true,
			OTLPEndpoint: cfg.OTELEndpoint, Insecure: true, SampleRate: 1.0, BatchTimeout: 5 * time.Second,
		})
		if err == nil {
			obs = p
			defer func() { _ = obs.Shutdown(ctx) }()
		}
	}

	view := repository.Open(repoDir)

	var finish func(error)
	if obs != nil {
		_, finish = obs.TrackOperation(ctx, "reposign.publish", observability.PublishOperation(metaOut, 0, artifactsSrc != "")...)
	}
	err := publish.Run(view, metaOut, artifactsSrc, artifactsOut)
	if finish != nil {
		finish(err)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error publishing: %v\n", err)
		return 1
	}

	if toStore && artifactsSrc != "" {
		store, storeErr := artifacts.NewStoreFromEnv(ctx)
		if storeErr != nil {
			fmt.Fprintf(stderr, "Error building artifact store: %v\n", storeErr)
			return 1
		}
		snapshot, snapErr := view.OpenSnapshot()
		if snapErr != nil {
			fmt.Fprintf(stderr, "Error opening snapshot: %v\n", snapErr)
			return 1
		}
		if storeErr := publish.PushArtifactsToStore(ctx, view, snapshot.Signed.Meta, artifactsSrc, store); storeErr != nil {
			fmt.Fprintf(stderr, "Error pushing artifacts to store: %v\n", storeErr)
			return 1
		}
	}

	if eventLogDB != "" {
		if logErr := appendPublishRun(eventLogDB, signingEvt, repoDir, metaOut); logErr != nil {
			fmt.Fprintf(stderr, "Warning: failed to append eventlog entry: %v\n", logErr)
		}
	}

	fmt.Fprintf(stdout, "published %s -> %s\n", repoDir, metaOut)
	return 0
}

// appendPublishRun records a completed publish run so an operator can
// later answer "what did the last publish actually contain" without
// re-deriving it from git history.
func appendPublishRun(dbPath, signingEvent, repoDir, metaOut string) error {
	log, err := eventlog.OpenSQLiteLog(dbPath)
	if err != nil {
		return err
	}
	defer log.Close()

	var commitment struct {
		Root string `json:"merkle_root"`
	}
	if data, readErr := os.ReadFile(filepath.Join(metaOut, "commitment.json")); readErr == nil {
		_ = json.Unmarshal(data, &commitment)
	}
	payload := map[string]interface{}{"repo": repoDir, "meta_out": metaOut, "merkle_root": commitment.Root}
	hash, err := canonicalize.CanonicalHash(payload)
	if err != nil {
		return err
	}
	rec := eventlog.Record{
		ID:           uuid.NewString(),
		Kind:         eventlog.KindPublishRun,
		SigningEvent: signingEvent,
		ContentHash:  hash,
		Payload:      payload,
		CreatedAt:    time.Now(),
	}
	return log.Append(rec)
}
