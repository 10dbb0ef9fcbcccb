package main

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/Mindburn-Labs/reposign/pkg/edit"
	"github.com/Mindburn-Labs/reposign/pkg/repository"
	"github.com/Mindburn-Labs/reposign/pkg/tuf"
)

// runRotateCmd bumps any offline role whose signing window has opened
// (now is within SigningPeriodDays of Expires) even though its content
// is unchanged, mirroring the scheduled expiry-driven signing events
// that bump_expiring/create_signing_events open independently of the
// target reconciler.
func runRotateCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("rotate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var repoDir string
	cmd.StringVar(&repoDir, "repo", ".", "Metadata directory")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	view := repository.Open(repoDir)
	now := defaultClock.Now()
	var bumped []string

	root, err := view.OpenRoot()
	if err != nil {
		fmt.Fprintf(stderr, "Error opening root: %v\n", err)
		return 1
	}
	if inSigningWindow(root.Signed.Expires, root.Signed.Annotations.EffectiveSigningPeriod(), now) {
		knownGood := root.Signed.Version
		keyIDs := rootKeyIDList(&root.Signed)
		if err := edit.CommitRoot(view, root, knownGood, now, keyIDs); err != nil {
			fmt.Fprintf(stderr, "Error rotating root: %v\n", err)
			return 1
		}
		bumped = append(bumped, fmt.Sprintf("root v%d", root.Signed.Version))
	}

	targets, err := view.OpenTargets(tuf.RoleTargets)
	if err == nil && inSigningWindow(targets.Signed.Expires, targets.Signed.Annotations.EffectiveSigningPeriod(), now) {
		var keyIDs []string
		if binding, ok := root.Signed.Roles[tuf.RoleTargets]; ok {
			keyIDs = binding.KeyIDs
		}
		knownGood := targets.Signed.Version
		if err := edit.CommitTargets(view, tuf.RoleTargets, targets, knownGood, now, keyIDs); err != nil {
			fmt.Fprintf(stderr, "Error rotating targets: %v\n", err)
			return 1
		}
		bumped = append(bumped, fmt.Sprintf("targets v%d", targets.Signed.Version))
	}

	delegated, err := view.RoleFiles()
	if err != nil {
		fmt.Fprintf(stderr, "Error listing delegated roles: %v\n", err)
		return 1
	}
	for _, role := range delegated {
		doc, err := view.OpenTargets(role)
		if err != nil {
			continue
		}
		if !inSigningWindow(doc.Signed.Expires, doc.Signed.Annotations.EffectiveSigningPeriod(), now) {
			continue
		}
		keyIDs := delegatedKeyIDs(targets, role)
		knownGood := doc.Signed.Version
		if err := edit.CommitTargets(view, role, doc, knownGood, now, keyIDs); err != nil {
			fmt.Fprintf(stderr, "Error rotating %s: %v\n", role, err)
			return 1
		}
		bumped = append(bumped, fmt.Sprintf("%s v%d", role, doc.Signed.Version))
	}

	if len(bumped) == 0 {
		fmt.Fprintln(stdout, "no roles due for rotation")
		return 1
	}
	for _, b := range bumped {
		fmt.Fprintln(stdout, b)
	}
	return 0
}

func inSigningWindow(expires time.Time, signingPeriodDays int, now time.Time) bool {
	if expires.IsZero() {
		return false
	}
	signingStart := expires.AddDate(0, 0, -signingPeriodDays)
	return !now.Before(signingStart)
}

func rootKeyIDList(root *tuf.RootType) []string {
	ids := make([]string, 0, len(root.Keys))
	for id := range root.Keys {
		ids = append(ids, id)
	}
	return ids
}

func delegatedKeyIDs(targets *tuf.Metadata[tuf.TargetsType], role string) []string {
	if targets == nil || targets.Signed.Delegations == nil {
		return nil
	}
	for _, d := range targets.Signed.Delegations.Roles {
		if d.Name == role {
			return d.KeyIDs
		}
	}
	return nil
}
