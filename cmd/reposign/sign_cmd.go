package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/Mindburn-Labs/reposign/pkg/keys"
	"github.com/Mindburn-Labs/reposign/pkg/repository"
	"github.com/Mindburn-Labs/reposign/pkg/tuf"
)

// runSignCmd adds one offline signer's signature to a proposed role
// document's placeholder signature slot, per §4.3 step 6.
func runSignCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("sign", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		repoDir string
		role    string
		keyURI  string
	)
	cmd.StringVar(&repoDir, "repo", ".", "Metadata directory")
	cmd.StringVar(&role, "role", "", "Role to sign (REQUIRED)")
	cmd.StringVar(&keyURI, "key", "", "Signer URI, e.g. file:<keyid>:<hex-private-key> (REQUIRED)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if role == "" || keyURI == "" {
		fmt.Fprintln(stderr, "Error: --role and --key are required")
		return 2
	}

	registry := keys.NewRegistry()
	signer, err := registry.Resolve(keyURI)
	if err != nil {
		fmt.Fprintf(stderr, "Error resolving signer: %v\n", err)
		return 1
	}

	view := repository.Open(repoDir)

	var (
		payload    []byte
		signatures *[]tuf.Signature
		writeBack  func() error
	)
	switch role {
	case tuf.RoleRoot:
		m, openErr := view.OpenRoot()
		if openErr != nil {
			fmt.Fprintf(stderr, "Error opening root: %v\n", openErr)
			return 1
		}
		payload, err = tuf.CanonicalBytes(m.Signed)
		signatures = &m.Signatures
		writeBack = func() error { return view.WriteRoot(m) }
	default:
		m, openErr := view.OpenTargets(role)
		if openErr != nil {
			fmt.Fprintf(stderr, "Error opening %s: %v\n", role, openErr)
			return 1
		}
		payload, err = tuf.CanonicalBytes(m.Signed)
		signatures = &m.Signatures
		writeBack = func() error { return view.WriteTargets(role, m) }
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error computing canonical payload: %v\n", err)
		return 1
	}

	sigBytes, err := signer.Sign(payload)
	if err != nil {
		fmt.Fprintf(stderr, "Error signing: %v\n", err)
		return 1
	}

	found := false
	for i := range *signatures {
		if (*signatures)[i].KeyID == signer.KeyID() {
			(*signatures)[i].Sig = sigBytes
			found = true
			break
		}
	}
	if !found {
		*signatures = append(*signatures, tuf.Signature{KeyID: signer.KeyID(), Sig: sigBytes})
	}

	if err := writeBack(); err != nil {
		fmt.Fprintf(stderr, "Error writing %s: %v\n", role, err)
		return 1
	}

	fmt.Fprintf(stdout, "%s signed by %s\n", role, signer.KeyID())
	return 0
}
