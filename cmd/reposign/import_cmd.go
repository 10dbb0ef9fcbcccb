package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Mindburn-Labs/reposign/pkg/repository"
	"github.com/Mindburn-Labs/reposign/pkg/schema"
	"github.com/Mindburn-Labs/reposign/pkg/tuf"
)

// runImportCmd validates every role document in an existing metadata
// directory against the envelope schema before it is trusted as a
// known-good baseline.
func runImportCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("import", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var repoDir string
	cmd.StringVar(&repoDir, "repo", ".", "Metadata directory to validate")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	validator, err := schema.Compile()
	if err != nil {
		fmt.Fprintf(stderr, "Error compiling schema: %v\n", err)
		return 1
	}

	names := []string{tuf.RoleRoot, tuf.RoleTargets, tuf.RoleSnapshot, tuf.RoleTimestamp}
	view := repository.Open(repoDir)
	delegated, err := view.RoleFiles()
	if err != nil {
		fmt.Fprintf(stderr, "Error listing roles: %v\n", err)
		return 1
	}
	names = append(names, delegated...)

	failures := 0
	checked := 0
	for _, name := range names {
		path := filepath.Join(repoDir, name+".json")
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			fmt.Fprintf(stderr, "Error reading %s: %v\n", path, err)
			failures++
			continue
		}
		checked++
		if err := validator.ValidateEnvelope(data); err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", path, err)
			failures++
		}
	}

	if failures > 0 {
		fmt.Fprintf(stdout, "%d of %d role document(s) failed validation\n", failures, checked)
		return 1
	}

	fmt.Fprintf(stdout, "%d role document(s) valid\n", checked)
	return 0
}
