package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/reposign/pkg/canonicalize"
	"github.com/Mindburn-Labs/reposign/pkg/eventlog"
	"github.com/Mindburn-Labs/reposign/pkg/policy"
	"github.com/Mindburn-Labs/reposign/pkg/repository"
	"github.com/Mindburn-Labs/reposign/pkg/signingevent"
	"github.com/Mindburn-Labs/reposign/pkg/status"
	"github.com/Mindburn-Labs/reposign/pkg/tuf"
)

func runStatusCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("status", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		proposedDir string
		knownGood   string
		role        string
		knownGoodMode bool
		jsonOutput  bool
		policyRule  string
		eventLogDB  string
		signingEvt  string
	)
	cmd.StringVar(&proposedDir, "repo", ".", "Proposed metadata directory")
	cmd.StringVar(&knownGood, "known-good", "", "Known-good metadata directory (defaults to --repo)")
	cmd.StringVar(&role, "role", tuf.RoleRoot, "Role to compute status for")
	cmd.BoolVar(&knownGoodMode, "known-good-mode", false, "Compute known-good-root-rotation status instead of a proposed-version status")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")
	cmd.StringVar(&policyRule, "policy-rule", "", "Optional CEL expression (over input.role/signed/missing/threshold) to accept in addition to the §3 invariants")
	cmd.StringVar(&eventLogDB, "eventlog-db", "", "Optional sqlite file to append this status computation to as history")
	cmd.StringVar(&signingEvt, "signing-event", "", "Signing-event branch name recorded alongside the eventlog entry")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if knownGood == "" {
		knownGood = proposedDir
	}

	var rule status.PolicyRule
	if policyRule != "" {
		r, err := policy.NewSigningRule(policyRule)
		if err != nil {
			fmt.Fprintf(stderr, "Error compiling policy rule: %v\n", err)
			return 1
		}
		rule = r
	}

	proposed := repository.Open(proposedDir)
	kg := repository.Open(knownGood)
	invites, err := signingevent.Load(proposedDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading invites: %v\n", err)
		return 1
	}

	st, err := status.Compute(proposed, kg, invites, defaultClock.Now(), role, knownGoodMode, rule)
	if err != nil {
		fmt.Fprintf(stderr, "Error computing status: %v\n", err)
		return 1
	}
	if eventLogDB != "" && st != nil {
		if err := appendStatusSnapshot(eventLogDB, signingEvt, st); err != nil {
			fmt.Fprintf(stderr, "Warning: failed to append eventlog entry: %v\n", err)
		}
	}
	if st == nil {
		if jsonOutput {
			data, _ := json.MarshalIndent(map[string]any{"role": role, "applicable": false}, "", "  ")
			fmt.Fprintln(stdout, string(data))
		} else {
			fmt.Fprintf(stdout, "%s: not applicable\n", role)
		}
		return 0
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(st, "", "  ")
		fmt.Fprintln(stdout, string(data))
		if !st.Valid {
			return 1
		}
		return 0
	}

	fmt.Fprintf(stdout, "role:      %s\n", st.Role)
	fmt.Fprintf(stdout, "valid:     %v\n", st.Valid)
	if st.Error != "" {
		fmt.Fprintf(stdout, "error:     %s\n", st.Error)
	}
	fmt.Fprintf(stdout, "threshold: %d\n", st.Threshold)
	fmt.Fprintf(stdout, "signed:    %v\n", st.Signed)
	fmt.Fprintf(stdout, "missing:   %v\n", st.Missing)
	if len(st.Invites) > 0 {
		fmt.Fprintf(stdout, "invites:   %v\n", st.Invites)
	}
	for _, c := range st.TargetChanges {
		fmt.Fprintf(stdout, "  %s %s\n", c.Kind, c.Path)
	}
	if !st.Valid {
		return 1
	}
	return 0
}

// appendStatusSnapshot records this status computation to a local
// eventlog so an operator can later answer "what did status look like
// at time T" without recomputing it from git history.
func appendStatusSnapshot(dbPath, signingEvent string, st *status.SigningStatus) error {
	log, err := eventlog.OpenSQLiteLog(dbPath)
	if err != nil {
		return err
	}
	defer log.Close()

	payload := map[string]interface{}{
		"role":      st.Role,
		"valid":     st.Valid,
		"error":     st.Error,
		"threshold": st.Threshold,
		"signed":    st.Signed,
		"missing":   st.Missing,
	}
	hash, err := canonicalize.CanonicalHash(payload)
	if err != nil {
		return err
	}
	rec := eventlog.Record{
		ID:           uuid.NewString(),
		Kind:         eventlog.KindStatusSnapshot,
		SigningEvent: signingEvent,
		ContentHash:  hash,
		Payload:      payload,
		CreatedAt:    time.Now(),
	}
	return log.Append(rec)
}
