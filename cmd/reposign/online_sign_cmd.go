package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/Mindburn-Labs/reposign/pkg/edit"
	"github.com/Mindburn-Labs/reposign/pkg/keys"
	"github.com/Mindburn-Labs/reposign/pkg/repository"
	"github.com/Mindburn-Labs/reposign/pkg/tuf"
)

// runOnlineSignCmd bumps and re-signs snapshot.json and timestamp.json
// with the configured online key(s), per §4.3 step 6.
func runOnlineSignCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("online-sign", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		repoDir      string
		onlineKeyURI string
	)
	cmd.StringVar(&repoDir, "repo", ".", "Metadata directory")
	cmd.StringVar(&onlineKeyURI, "online-key", "", "Online signer URI, e.g. file:<keyid>:<hex-private-key> (REQUIRED)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if onlineKeyURI == "" {
		fmt.Fprintln(stderr, "Error: --online-key is required")
		return 2
	}

	registry := keys.NewRegistry()
	signer, err := registry.Resolve(onlineKeyURI)
	if err != nil {
		fmt.Fprintf(stderr, "Error resolving online key: %v\n", err)
		return 1
	}

	view := repository.Open(repoDir)
	now := defaultClock.Now()

	snapshot, err := view.OpenSnapshot()
	if err != nil {
		fmt.Fprintf(stderr, "Error opening snapshot: %v\n", err)
		return 1
	}
	knownGoodSnapshot := snapshot.Signed.Version
	if snapshot.Signed.Annotations.ExpiryPeriodDays == 0 {
		snapshot.Signed.Annotations.ExpiryPeriodDays = 1
	}
	if err := refreshSnapshotMeta(view, snapshot); err != nil {
		fmt.Fprintf(stderr, "Error refreshing snapshot meta: %v\n", err)
		return 1
	}
	if err := edit.CommitSnapshotOnline(view, snapshot, knownGoodSnapshot, now, []keys.Signer{signer}); err != nil {
		fmt.Fprintf(stderr, "Error committing snapshot: %v\n", err)
		return 1
	}

	timestamp, err := view.OpenTimestamp()
	if err != nil {
		fmt.Fprintf(stderr, "Error opening timestamp: %v\n", err)
		return 1
	}
	knownGoodTimestamp := timestamp.Signed.Version
	if timestamp.Signed.Annotations.ExpiryPeriodDays == 0 {
		timestamp.Signed.Annotations.ExpiryPeriodDays = 1
	}
	timestamp.Signed.Meta["snapshot.json"] = &tuf.MetaFiles{Version: snapshot.Signed.Version}
	if err := edit.CommitTimestampOnline(view, timestamp, knownGoodTimestamp, now, []keys.Signer{signer}); err != nil {
		fmt.Fprintf(stderr, "Error committing timestamp: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "snapshot -> version %d, timestamp -> version %d\n", snapshot.Signed.Version, timestamp.Signed.Version)
	return 0
}

// refreshSnapshotMeta records the current version of targets.json and
// every delegated role file in the snapshot being committed, so the
// published layout and any client walking snapshot.meta can find them.
func refreshSnapshotMeta(view *repository.View, snapshot *tuf.Metadata[tuf.SnapshotType]) error {
	if snapshot.Signed.Meta == nil {
		snapshot.Signed.Meta = map[string]*tuf.MetaFiles{}
	}
	delegated, err := view.RoleFiles()
	if err != nil {
		return err
	}
	roleFiles := append([]string{tuf.RoleTargets}, delegated...)
	for _, role := range roleFiles {
		version, err := view.VersionOf(role)
		if err != nil {
			return err
		}
		if version == 0 {
			continue
		}
		snapshot.Signed.Meta[role+".json"] = &tuf.MetaFiles{Version: version}
	}
	return nil
}
