package config

import (
	"os"
	"path/filepath"
	"testing"
)

const stagingProfileYAML = `
name: Staging
metadata_url: https://staging.example.com/metadata
artifact_store_uri: s3://reposign-staging/artifacts
require_consistent_snapshot: true
networking:
  outbound_mode: allowlist
  allowlist:
    - staging.example.com
retention:
  max_versions: 10
  audit_log_days: 30
`

const airgappedProfileYAML = `
name: Airgapped
metadata_url: file:///srv/reposign/published
artifact_store_uri: file:///srv/reposign/artifacts
networking:
  island_mode: true
retention:
  max_versions: 5
`

func writeProfileFixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "profile_staging.yaml"), []byte(stagingProfileYAML), 0o644); err != nil {
		t.Fatalf("write staging fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "profile_airgapped.yaml"), []byte(airgappedProfileYAML), 0o644); err != nil {
		t.Fatalf("write airgapped fixture: %v", err)
	}
	return dir
}

func TestLoadProfile_Staging(t *testing.T) {
	dir := writeProfileFixtures(t)
	p, err := LoadProfile(dir, "staging")
	if err != nil {
		t.Fatalf("LoadProfile(staging): %v", err)
	}
	if p.Name != "Staging" {
		t.Errorf("expected name 'Staging', got %q", p.Name)
	}
	if !p.RequireConsistent {
		t.Error("staging should require consistent snapshots")
	}
	if p.IsIslandMode() {
		t.Error("staging should not be island mode")
	}
}

func TestLoadProfile_Airgapped(t *testing.T) {
	dir := writeProfileFixtures(t)
	p, err := LoadProfile(dir, "airgapped")
	if err != nil {
		t.Fatalf("LoadProfile(airgapped): %v", err)
	}
	if !p.IsIslandMode() {
		t.Error("airgapped profile should default to island mode")
	}
	if p.IsAllowed("staging.example.com") {
		t.Error("island mode should deny all outbound hosts")
	}
}

func TestLoadAllProfiles(t *testing.T) {
	dir := writeProfileFixtures(t)
	profiles, err := LoadAllProfiles(dir)
	if err != nil {
		t.Fatalf("LoadAllProfiles: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
	for code, p := range profiles {
		if p.Name == "" {
			t.Errorf("profile %s has empty name", code)
		}
	}
}

func TestIsAllowed_Allowlist(t *testing.T) {
	p := &RemoteProfile{
		Networking: NetworkingConfig{
			OutboundMode: "allowlist",
			Allowlist:    []string{"staging.example.com"},
		},
	}
	if !p.IsAllowed("staging.example.com") {
		t.Error("should allow staging.example.com")
	}
	if p.IsAllowed("evil.example.com") {
		t.Error("should deny evil.example.com")
	}
}

func TestIsAllowed_IslandMode(t *testing.T) {
	p := &RemoteProfile{
		Networking: NetworkingConfig{
			IslandMode: true,
		},
	}
	if p.IsAllowed("staging.example.com") {
		t.Error("island mode should deny all")
	}
}
