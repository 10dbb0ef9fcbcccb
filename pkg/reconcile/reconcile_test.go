package reconcile

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestBuildPaths(t *testing.T) {
	got := BuildPaths("myrole", 4)
	want := []string{"myrole/*", "myrole/*/*", "myrole/*/*/*", "myrole/*/*/*/*"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestBuildPaths_ZeroDepth(t *testing.T) {
	if got := BuildPaths("myrole", 0); got != nil {
		t.Fatalf("expected nil for zero depth, got %v", got)
	}
}

// TestTargetRouting_SeedScenario3 reproduces seed scenario 3 from the spec.
func TestTargetRouting_SeedScenario3(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"tfile1.txt",
		"levela/filea.txt",
		"levelb/fileb.txt",
		"level1/file1.txt",
		"level1/level2/tfile2.txt",
	}
	for _, f := range files {
		full := filepath.Join(dir, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	artifacts, err := Walk(dir)
	if err != nil {
		t.Fatalf("walk: %v", err)
	}

	routes := []Route{
		TargetsRoute(),
		{Role: "myrole1", Paths: []string{"levela/*", "levelb/*"}, Order: 0},
		{Role: "myrole2", Paths: []string{"level1/file1.txt"}, Order: 1},
	}

	targetsDesired := Reconcile("targets", artifacts, routes, nil)
	if got, want := SortedPaths(targetsDesired), []string{"level1/level2/tfile2.txt", "tfile1.txt"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("targets: got %v, want %v", got, want)
	}

	myrole1Desired := Reconcile("myrole1", artifacts, routes, nil)
	if got, want := SortedPaths(myrole1Desired), []string{"levela/filea.txt", "levelb/fileb.txt"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("myrole1: got %v, want %v", got, want)
	}

	myrole2Desired := Reconcile("myrole2", artifacts, routes, nil)
	if got, want := SortedPaths(myrole2Desired), []string{"level1/file1.txt"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("myrole2: got %v, want %v", got, want)
	}
}

func TestRouteFile_NoTargetsFallback_UnmatchedPathIsExcluded(t *testing.T) {
	routes := []Route{{Role: "myrole1", Paths: []string{"levela/*"}, Order: 0}}
	if _, ok := RouteFile("deep/nested/file.txt", routes); ok {
		t.Fatal("expected no route to match a path under no delegation when no targets fallback is present")
	}
}

func TestRouteFile_TargetsFallback_ClaimsDeepUnmatchedPath(t *testing.T) {
	routes := []Route{
		TargetsRoute(),
		{Role: "myrole1", Paths: []string{"levela/*"}, Order: 0},
	}
	role, ok := RouteFile("level1/level2/tfile2.txt", routes)
	if !ok || role != "targets" {
		t.Fatalf("expected a deep path with no delegation match to fall back to targets, got role=%q ok=%v", role, ok)
	}
}

func TestRouteFile_LongestMatchWins(t *testing.T) {
	routes := []Route{
		{Role: "broad", Paths: []string{"team/*"}, Order: 0},
		{Role: "narrow", Paths: []string{"team/sub/*"}, Order: 1},
	}
	role, ok := RouteFile("team/sub/file.txt", routes)
	if !ok || role != "narrow" {
		t.Fatalf("expected narrow (longer pattern) to win, got role=%q ok=%v", role, ok)
	}
}

func TestRouteFile_TieBrokenByDelegationOrder(t *testing.T) {
	routes := []Route{
		{Role: "second", Paths: []string{"team/*"}, Order: 1},
		{Role: "first", Paths: []string{"team/*"}, Order: 0},
	}
	role, ok := RouteFile("team/file.txt", routes)
	if !ok || role != "first" {
		t.Fatalf("expected earlier-declared role to win tie, got role=%q ok=%v", role, ok)
	}
}

func TestEqual_DetectsNoOp(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("content"), 0o644); err != nil {
		t.Fatal(err)
	}
	artifacts, err := Walk(dir)
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	routes := []Route{TargetsRoute()}
	first := Reconcile("targets", artifacts, routes, nil)
	second := Reconcile("targets", artifacts, routes, first)
	if !Equal(first, second) {
		t.Fatal("expected identical reconciliation runs to be equal")
	}
}
