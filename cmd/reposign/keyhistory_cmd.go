package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/Mindburn-Labs/reposign/pkg/keyhistory"
	"github.com/Mindburn-Labs/reposign/pkg/tuf"
)

// runKeyHistoryCmd replays every archived root version under
// root_history/ and prints the root role's key lifecycle, using
// keyhistory.Registry as the materialized view.
func runKeyHistoryCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("key-history", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var repoDir string
	cmd.StringVar(&repoDir, "repo", ".", "Metadata directory")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	roots, err := loadRootHistory(repoDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading root history: %v\n", err)
		return 1
	}
	if current, err := loadCurrentRoot(repoDir); err == nil {
		roots = appendIfNewVersion(roots, current)
	}
	if len(roots) == 0 {
		fmt.Fprintln(stdout, "no root history available")
		return 1
	}

	registry := keyhistory.New()
	var prevKeys map[string]ed25519.PublicKey
	for _, root := range roots {
		newKeys, err := decodeRootKeys(root)
		if err != nil {
			fmt.Fprintf(stderr, "Error decoding root v%d keys: %v\n", root.Signed.Version, err)
			return 1
		}
		if prevKeys != nil {
			if err := registry.DiffRootVersions(tuf.RoleRoot, prevKeys, newKeys, uint64(root.Signed.Version)); err != nil {
				fmt.Fprintf(stderr, "Error replaying root v%d: %v\n", root.Signed.Version, err)
				return 1
			}
		} else {
			// seed the first observed version as all-additions
			if err := registry.DiffRootVersions(tuf.RoleRoot, map[string]ed25519.PublicKey{}, newKeys, uint64(root.Signed.Version)); err != nil {
				fmt.Fprintf(stderr, "Error seeding root v%d: %v\n", root.Signed.Version, err)
				return 1
			}
		}
		prevKeys = newKeys
	}

	fmt.Fprintf(stdout, "%d key lifecycle event(s) across %d root version(s)\n", registry.EventCount(), len(roots))
	keys, err := registry.AuthorizedKeys(tuf.RoleRoot, 0)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading current authorized keys: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "%d key(s) currently authorized for root\n", len(keys))
	return 0
}

func loadRootHistory(repoDir string) ([]*tuf.Metadata[tuf.RootType], error) {
	historyDir := filepath.Join(repoDir, "root_history")
	entries, err := os.ReadDir(historyDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var roots []*tuf.Metadata[tuf.RootType]
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(historyDir, e.Name()))
		if err != nil {
			return nil, err
		}
		root, err := tuf.DecodeMetadata[tuf.RootType](data)
		if err != nil {
			return nil, err
		}
		roots = append(roots, root)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].Signed.Version < roots[j].Signed.Version })
	return roots, nil
}

func loadCurrentRoot(repoDir string) (*tuf.Metadata[tuf.RootType], error) {
	data, err := os.ReadFile(filepath.Join(repoDir, "root.json"))
	if err != nil {
		return nil, err
	}
	return tuf.DecodeMetadata[tuf.RootType](data)
}

func appendIfNewVersion(roots []*tuf.Metadata[tuf.RootType], current *tuf.Metadata[tuf.RootType]) []*tuf.Metadata[tuf.RootType] {
	for _, r := range roots {
		if r.Signed.Version == current.Signed.Version {
			return roots
		}
	}
	return append(roots, current)
}

func decodeRootKeys(root *tuf.Metadata[tuf.RootType]) (map[string]ed25519.PublicKey, error) {
	out := make(map[string]ed25519.PublicKey, len(root.Signed.Keys))
	for keyID, key := range root.Signed.Keys {
		raw, err := hex.DecodeString(key.KeyValue.Public)
		if err != nil {
			return nil, fmt.Errorf("decode public key for %s: %w", keyID, err)
		}
		if len(raw) != ed25519.PublicKeySize {
			continue
		}
		out[keyID] = ed25519.PublicKey(raw)
	}
	return out, nil
}
