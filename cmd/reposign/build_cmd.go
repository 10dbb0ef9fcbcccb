package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/Mindburn-Labs/reposign/pkg/edit"
	"github.com/Mindburn-Labs/reposign/pkg/errors"
	"github.com/Mindburn-Labs/reposign/pkg/lock"
	"github.com/Mindburn-Labs/reposign/pkg/reconcile"
	"github.com/Mindburn-Labs/reposign/pkg/repository"
	"github.com/Mindburn-Labs/reposign/pkg/tuf"
)

// runBuildCmd walks the artifact tree, routes each file to the
// delegated role whose path patterns claim it (§4.4), and commits a new
// version of every role whose desired targets mapping changed.
func runBuildCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("build", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		repoDir       string
		artifactsDir  string
		lockRedisAddr string
	)
	cmd.StringVar(&repoDir, "repo", ".", "Metadata directory")
	cmd.StringVar(&artifactsDir, "artifacts", "artifacts", "Artifact tree to reconcile")
	cmd.StringVar(&lockRedisAddr, "lock-redis-addr", "", "Optional Redis address to hold a distributed lock over the metadata directory for the duration of this build, for CI runner fleets where more than one job may target the same workspace")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	if lockRedisAddr != "" {
		l := lock.NewRedisLock(lockRedisAddr, "", 0, repoDir, 2*time.Minute)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := l.Acquire(ctx, 200*time.Millisecond); err != nil {
			fmt.Fprintf(stderr, "Error acquiring build lock: %v\n", err)
			return 1
		}
		defer func() { _ = l.Release(context.Background()) }()
	}

	view := repository.Open(repoDir)

	root, err := view.OpenRoot()
	if err != nil {
		fmt.Fprintf(stderr, "Error opening root: %v\n", err)
		return 1
	}

	targetsDoc, err := view.OpenTargets(tuf.RoleTargets)
	if err != nil && !errors.ErrRoleMissing.Is(err) {
		fmt.Fprintf(stderr, "Error opening targets: %v\n", err)
		return 1
	}

	routes := []reconcile.Route{reconcile.TargetsRoute()}
	if targetsDoc != nil {
		routes = append(routes, reconcile.RoutesFromDelegations(targetsDoc.Signed.Delegations)...)
	}

	artifactEntries, err := reconcile.Walk(artifactsDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error walking artifacts: %v\n", err)
		return 1
	}

	now := defaultClock.Now()
	changed := 0
	for _, r := range routes {
		if err := reconcileOneRole(view, root, r.Role, artifactEntries, routes, now); err != nil {
			fmt.Fprintf(stderr, "Error reconciling role %s: %v\n", r.Role, err)
			return 1
		} else {
			changed++
		}
	}

	fmt.Fprintf(stdout, "reconciled %d role(s) against %d artifact(s)\n", changed, len(artifactEntries))
	return 0
}

func reconcileOneRole(view *repository.View, root *tuf.Metadata[tuf.RootType], role string, artifactEntries []reconcile.ArtifactEntry, routes []reconcile.Route, now time.Time) error {
	current, err := view.OpenTargets(role)
	existing := map[string]*tuf.TargetFiles{}
	var knownGoodVersion int64
	var keyIDs []string
	var annotations tuf.Annotations
	if err == nil {
		existing = current.Signed.Targets
		knownGoodVersion = current.Signed.Version
		annotations = current.Signed.Annotations
	} else if !errors.ErrRoleMissing.Is(err) {
		return err
	}

	if role == tuf.RoleTargets {
		if binding, ok := root.Signed.Roles[tuf.RoleTargets]; ok {
			keyIDs = binding.KeyIDs
		}
	}
	if annotations.ExpiryPeriodDays == 0 {
		annotations.ExpiryPeriodDays = 90
	}

	desired := reconcile.Reconcile(role, artifactEntries, routes, existing)
	if reconcile.Equal(desired, existing) {
		return nil
	}

	next := &tuf.Metadata[tuf.TargetsType]{
		Signed: tuf.TargetsType{
			Type:        tuf.RoleTargets,
			SpecVersion: tuf.SpecVersion,
			Expires:     now,
			Targets:     desired,
			Annotations: annotations,
		},
	}
	if current != nil {
		next.Signed.Delegations = current.Signed.Delegations
	}
	return edit.CommitTargets(view, role, next, knownGoodVersion, now, keyIDs)
}
