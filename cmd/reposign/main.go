package main

import (
	"fmt"
	"io"
	"os"

	"github.com/Mindburn-Labs/reposign/pkg/clock"
)

// defaultClock is the wall-clock source every subcommand's expiry/signing-
// period logic reads "now" from, so a test can swap in clock.NewMock
// instead of depending on real time passing.
var defaultClock clock.Clock = clock.New()

// Dispatcher
func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stdout)
		return 2
	}

	switch args[1] {
	case "status":
		return runStatusCmd(args[2:], stdout, stderr)
	case "build":
		return runBuildCmd(args[2:], stdout, stderr)
	case "online-sign":
		return runOnlineSignCmd(args[2:], stdout, stderr)
	case "sign":
		return runSignCmd(args[2:], stdout, stderr)
	case "invite":
		return runInviteCmd(args[2:], stdout, stderr)
	case "accept":
		return runAcceptCmd(args[2:], stdout, stderr)
	case "publish":
		return runPublishCmd(args[2:], stdout, stderr)
	case "import":
		return runImportCmd(args[2:], stdout, stderr)
	case "rotate":
		return runRotateCmd(args[2:], stdout, stderr)
	case "key-history":
		return runKeyHistoryCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "reposign: signed software-distribution metadata engine")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  reposign <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "COMMANDS:")
	fmt.Fprintln(w, "  build        Reconcile an artifact tree into targets metadata")
	fmt.Fprintln(w, "  status       Show a role's signing status")
	fmt.Fprintln(w, "  sign         Add an offline signature to a proposed role document")
	fmt.Fprintln(w, "  online-sign  Commit and auto-sign snapshot/timestamp with the online key")
	fmt.Fprintln(w, "  invite       Invite a signer to a role's next signing event")
	fmt.Fprintln(w, "  accept       Record that an invited signer has signed their role")
	fmt.Fprintln(w, "  publish      Emit the published, version-pinned TUF-client layout")
	fmt.Fprintln(w, "  import       Validate an existing metadata directory's schema")
	fmt.Fprintln(w, "  rotate       Bump any offline role whose signing window has opened")
	fmt.Fprintln(w, "  key-history  Replay root_history and report root key lifecycle")
	fmt.Fprintln(w, "  help         Show this help")
}
