// Package reconcile walks an artifact directory and routes each file to
// the most specific delegated-targets role claiming its path, producing
// the desired targets mapping for a role per §4.4.
package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/Mindburn-Labs/reposign/pkg/errors"
	"github.com/Mindburn-Labs/reposign/pkg/tuf"
)

// Route is one delegated role's claim over the artifact namespace: its
// name, its path patterns, and its declared position in the delegations
// list (used to break longest-match ties, §4.4).
type Route struct {
	Role    string
	Paths   []string
	Order   int
}

// TargetsRoute is the top-level targets role's implicit claim over
// everything no delegated role claims more specifically (§4.4,
// invariant 8). It carries no glob pattern of its own: RouteFile treats
// tuf.RoleTargets as the catch-all fallback rather than matching a
// literal pattern, because path.Match's "*" never crosses a "/" and so
// cannot stand in for "any path, at any depth, no delegation claims".
func TargetsRoute() Route {
	return Route{Role: tuf.RoleTargets, Paths: nil, Order: -1}
}

// BuildPaths generates the conventional claim patterns for a delegated
// role name covering depth levels of subdirectories (seed scenario 6):
// BuildPaths("myrole", 4) = ["myrole/*", "myrole/*/*", "myrole/*/*/*", "myrole/*/*/*/*"].
func BuildPaths(role string, depth int) []string {
	if depth < 1 {
		return nil
	}
	paths := make([]string, depth)
	segment := role
	for i := 0; i < depth; i++ {
		segment += "/*"
		paths[i] = segment
	}
	return paths
}

// ArtifactEntry is one regular file discovered under the artifact root.
type ArtifactEntry struct {
	// Path is slash-separated and relative to the artifact root.
	Path   string
	Length int64
	SHA256 string
}

// Walk recursively discovers every regular file under root, skipping
// non-regular files (symlinks, devices) silently per §4.4.
func Walk(root string) ([]ArtifactEntry, error) {
	var entries []ArtifactEntry
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		sum, size, err := hashFile(p)
		if err != nil {
			return err
		}
		entries = append(entries, ArtifactEntry{
			Path:   filepath.ToSlash(rel),
			Length: size,
			SHA256: sum,
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.IoFailure, "walk artifact directory "+root, err)
	}
	return entries, nil
}

func hashFile(p string) (sum string, size int64, err error) {
	f, err := os.Open(p)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// RouteFile returns the role that claims path, per §4.4's precedence:
// the most specific (longest) matching delegated pattern wins; ties
// break by delegation order. tuf.RoleTargets never matches by pattern —
// it is the fallback owner of any path no delegated pattern claims,
// regardless of depth. A path matched by no delegated pattern and with
// no targets route present in routes returns ("", false).
func RouteFile(path_ string, routes []Route) (string, bool) {
	bestRole := ""
	bestOrder := 0
	bestSpecificity := -1
	matched := false
	haveTargetsFallback := false
	for _, r := range routes {
		if r.Role == tuf.RoleTargets {
			haveTargetsFallback = true
			continue
		}
		for _, pattern := range r.Paths {
			if !matchPattern(pattern, path_) {
				continue
			}
			specificity := len(pattern)
			if specificity > bestSpecificity || (specificity == bestSpecificity && r.Order < bestOrder) {
				bestSpecificity = specificity
				bestOrder = r.Order
				bestRole = r.Role
				matched = true
			}
		}
	}
	if matched {
		return bestRole, true
	}
	if haveTargetsFallback {
		return tuf.RoleTargets, true
	}
	return "", false
}

func matchPattern(pattern, p string) bool {
	ok, err := path.Match(pattern, p)
	return err == nil && ok
}

// Reconcile computes the desired targets mapping for role, given every
// discovered artifact and the full set of routing rules (targets'
// fallback route plus every delegated role's declared patterns), per §4.4.
// existing carries forward any custom annotation already recorded for a
// path, since reconciliation must preserve it.
func Reconcile(role string, artifacts []ArtifactEntry, routes []Route, existing map[string]*tuf.TargetFiles) map[string]*tuf.TargetFiles {
	desired := map[string]*tuf.TargetFiles{}
	for _, a := range artifacts {
		owner, ok := RouteFile(a.Path, routes)
		if !ok || owner != role {
			continue
		}
		entry := &tuf.TargetFiles{
			Length: a.Length,
			Hashes: tuf.Hashes{"sha256": a.SHA256},
		}
		if prior, ok := existing[a.Path]; ok {
			entry.Custom = prior.Custom
		}
		desired[a.Path] = entry
	}
	return desired
}

// Equal reports whether two targets mappings are identical, used to
// detect the no-op case that should abort the edit transaction (§4.4,
// P5).
func Equal(a, b map[string]*tuf.TargetFiles) bool {
	if len(a) != len(b) {
		return false
	}
	for path_, ea := range a {
		eb, ok := b[path_]
		if !ok {
			return false
		}
		if ea.Length != eb.Length {
			return false
		}
		if len(ea.Hashes) != len(eb.Hashes) {
			return false
		}
		for alg, h := range ea.Hashes {
			if eb.Hashes[alg] != h {
				return false
			}
		}
		if string(ea.Custom) != string(eb.Custom) {
			return false
		}
	}
	return true
}

// RoutesFromDelegations builds the Route list for a targets payload's
// delegations block, preserving declared order for tie-breaking.
func RoutesFromDelegations(d *tuf.Delegations) []Route {
	if d == nil {
		return nil
	}
	routes := make([]Route, 0, len(d.Roles))
	for i, dr := range d.Roles {
		routes = append(routes, Route{Role: dr.Name, Paths: dr.Paths, Order: i})
	}
	return routes
}

// SortedPaths returns m's keys sorted, useful for deterministic test
// assertions and status-engine diff output.
func SortedPaths(m map[string]*tuf.TargetFiles) []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
