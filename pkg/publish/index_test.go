package publish

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/Mindburn-Labs/reposign/pkg/repository"
	"github.com/Mindburn-Labs/reposign/pkg/tuf"
)

func TestWriteIndex_ListsRolesAndSigners(t *testing.T) {
	dir := t.TempDir()
	view := repository.Open(dir)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	owner := "@alice"

	root := &tuf.Metadata[tuf.RootType]{
		Signed: tuf.RootType{
			Type:        tuf.RoleRoot,
			SpecVersion: tuf.SpecVersion,
			Version:     1,
			Expires:     now.AddDate(1, 0, 0),
			Keys: map[string]*tuf.Key{
				"rootkey": {KeyType: "ed25519", Scheme: "ed25519", KeyValue: tuf.KeyVal{Public: "ab"}, Annotations: tuf.KeyAnnotations{KeyOwner: &owner}},
			},
			Roles: map[string]*tuf.Role{
				tuf.RoleRoot:      {KeyIDs: []string{"rootkey"}, Threshold: 1},
				tuf.RoleTargets:   {KeyIDs: []string{"rootkey"}, Threshold: 1},
				tuf.RoleSnapshot:  {KeyIDs: []string{"rootkey"}, Threshold: 1},
				tuf.RoleTimestamp: {KeyIDs: []string{"rootkey"}, Threshold: 1},
			},
			Annotations: tuf.Annotations{ExpiryPeriodDays: 365},
		},
	}
	if err := view.WriteRoot(root); err != nil {
		t.Fatalf("write root: %v", err)
	}

	targets := &tuf.Metadata[tuf.TargetsType]{
		Signed: tuf.TargetsType{
			Type:        tuf.RoleTargets,
			SpecVersion: tuf.SpecVersion,
			Version:     1,
			Expires:     now.AddDate(0, 3, 0),
			Targets:     map[string]*tuf.TargetFiles{},
			Annotations: tuf.Annotations{ExpiryPeriodDays: 90},
		},
	}
	if err := view.WriteTargets(tuf.RoleTargets, targets); err != nil {
		t.Fatalf("write targets: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteIndex(view, &buf, now); err != nil {
		t.Fatalf("write index: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "@alice") {
		t.Fatalf("expected index to list signer @alice, got:\n%s", out)
	}
	if !strings.Contains(out, "root (v1)") || !strings.Contains(out, "targets (v1)") {
		t.Fatalf("expected index to list role versions, got:\n%s", out)
	}
}
