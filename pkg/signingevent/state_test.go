package signingevent

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	s, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(s.Invites) != 0 {
		t.Fatalf("expected no invites, got %v", s.Invites)
	}
}

func TestInvitedSignersForRole(t *testing.T) {
	s := &State{Invites: map[string][]string{
		"@alice": {"root", "targets"},
		"@bob":   {"myrole"},
	}}
	signers := s.InvitedSignersForRole("root")
	if len(signers) != 1 || signers[0] != "@alice" {
		t.Fatalf("expected [@alice], got %v", signers)
	}
}

func TestRolesWithDelegationInvites(t *testing.T) {
	s := &State{Invites: map[string][]string{
		"@alice": {"root"},
		"@bob":   {"myrole"},
	}}
	delegators := s.RolesWithDelegationInvites()
	seen := map[string]bool{}
	for _, d := range delegators {
		seen[d] = true
	}
	if !seen["root"] || !seen["targets"] {
		t.Fatalf("expected root (from root invite) and targets (from myrole invite), got %v", delegators)
	}
}

func TestAccept_RemovesEntryWhenLastRoleCleared(t *testing.T) {
	s := &State{Invites: map[string][]string{"@alice": {"root"}}}
	s.Accept("@alice", "root")
	if _, ok := s.Invites["@alice"]; ok {
		t.Fatal("expected @alice's entry to be fully removed")
	}
}

func TestAccept_KeepsOtherPendingRoles(t *testing.T) {
	s := &State{Invites: map[string][]string{"@alice": {"root", "targets"}}}
	s.Accept("@alice", "root")
	roles, ok := s.Invites["@alice"]
	if !ok || len(roles) != 1 || roles[0] != "targets" {
		t.Fatalf("expected @alice to still be invited to targets, got %v", roles)
	}
}

func TestSave_DeletesFileWhenNoInvitesRemain(t *testing.T) {
	dir := t.TempDir()
	s := &State{Invites: map[string][]string{"@alice": {"root"}}}
	if err := s.Save(dir); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, FileName)); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}

	s.Accept("@alice", "root")
	if err := s.Save(dir); err != nil {
		t.Fatalf("save after accept: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, FileName)); !os.IsNotExist(err) {
		t.Fatal("expected file to be deleted once invites are empty")
	}
}
