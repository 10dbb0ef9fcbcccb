package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/Mindburn-Labs/reposign/pkg/signingevent"
)

// runInviteCmd records that invitee is invited to sign role's next
// signing event, per §4.5.
func runInviteCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("invite", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		repoDir string
		invitee string
		role    string
	)
	cmd.StringVar(&repoDir, "repo", ".", "Metadata directory")
	cmd.StringVar(&invitee, "signer", "", "Invitee name, e.g. @alice (REQUIRED)")
	cmd.StringVar(&role, "role", "", "Role to invite the signer to (REQUIRED)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if invitee == "" || role == "" {
		fmt.Fprintln(stderr, "Error: --signer and --role are required")
		return 2
	}

	state, err := signingevent.Load(repoDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading invites: %v\n", err)
		return 1
	}

	for _, r := range state.Invites[invitee] {
		if r == role {
			fmt.Fprintf(stdout, "%s is already invited to %s\n", invitee, role)
			return 0
		}
	}
	state.Invites[invitee] = append(state.Invites[invitee], role)

	if err := state.Save(repoDir); err != nil {
		fmt.Fprintf(stderr, "Error saving invites: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "invited %s to %s\n", invitee, role)
	return 0
}

// runAcceptCmd clears invitee's pending invite for role, once they have
// actually signed (the caller is expected to have already run `sign`).
func runAcceptCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("accept", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		repoDir string
		invitee string
		role    string
	)
	cmd.StringVar(&repoDir, "repo", ".", "Metadata directory")
	cmd.StringVar(&invitee, "signer", "", "Invitee name, e.g. @alice (REQUIRED)")
	cmd.StringVar(&role, "role", "", "Role the signer has signed (REQUIRED)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if invitee == "" || role == "" {
		fmt.Fprintln(stderr, "Error: --signer and --role are required")
		return 2
	}

	state, err := signingevent.Load(repoDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading invites: %v\n", err)
		return 1
	}

	state.Accept(invitee, role)

	if err := state.Save(repoDir); err != nil {
		fmt.Fprintf(stderr, "Error saving invites: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "cleared %s's invite to %s\n", invitee, role)
	return 0
}
