package main

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Mindburn-Labs/reposign/pkg/keys"
	"github.com/Mindburn-Labs/reposign/pkg/repository"
	"github.com/Mindburn-Labs/reposign/pkg/tuf"
)

func runCmd(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(append([]string{"reposign"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func seedRoot(t *testing.T, repoDir string, keyURI string, pub ed25519.PublicKey, keyID string) {
	t.Helper()
	view := repository.Open(repoDir)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	root := &tuf.Metadata[tuf.RootType]{
		Signed: tuf.RootType{
			Type:               tuf.RoleRoot,
			SpecVersion:        tuf.SpecVersion,
			ConsistentSnapshot: true,
			Version:            1,
			Expires:            now.AddDate(1, 0, 0),
			Keys: map[string]*tuf.Key{
				keyID: {KeyType: "ed25519", Scheme: "ed25519", KeyValue: tuf.KeyVal{Public: hex.EncodeToString(pub)}},
			},
			Roles: map[string]*tuf.Role{
				tuf.RoleRoot:      {KeyIDs: []string{keyID}, Threshold: 1},
				tuf.RoleTargets:   {KeyIDs: []string{keyID}, Threshold: 1},
				tuf.RoleSnapshot:  {KeyIDs: []string{keyID}, Threshold: 1},
				tuf.RoleTimestamp: {KeyIDs: []string{keyID}, Threshold: 1},
			},
			Annotations: tuf.Annotations{ExpiryPeriodDays: 365},
		},
		Signatures: []tuf.Signature{{KeyID: keyID}},
	}
	payload, err := tuf.CanonicalBytes(root.Signed)
	if err != nil {
		t.Fatalf("canonical root: %v", err)
	}
	registry := keys.NewRegistry()
	signer, err := registry.Resolve(keyURI)
	if err != nil {
		t.Fatalf("resolve signer: %v", err)
	}
	sig, err := signer.Sign(payload)
	if err != nil {
		t.Fatalf("sign root: %v", err)
	}
	root.Signatures[0].Sig = sig
	if err := view.WriteRoot(root); err != nil {
		t.Fatalf("write root: %v", err)
	}
}

func TestBuildThenOnlineSignThenPublish(t *testing.T) {
	repoDir := t.TempDir()
	artifactsDir := t.TempDir()
	metaOut := t.TempDir()

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	keyID := "onlinekey"
	keyURI := "file:" + keyID + ":" + hex.EncodeToString(priv)

	seedRoot(t, repoDir, keyURI, pub, keyID)

	if err := os.WriteFile(filepath.Join(artifactsDir, "widget-1.0.0.tar.gz"), []byte("binary payload"), 0o644); err != nil {
		t.Fatalf("write artifact fixture: %v", err)
	}

	code, out, errOut := runCmd(t, "build", "--repo", repoDir, "--artifacts", artifactsDir)
	if code != 0 {
		t.Fatalf("build failed: code=%d stdout=%s stderr=%s", code, out, errOut)
	}

	view := repository.Open(repoDir)
	targets, err := view.OpenTargets(tuf.RoleTargets)
	if err != nil {
		t.Fatalf("open targets after build: %v", err)
	}
	if _, ok := targets.Signed.Targets["widget-1.0.0.tar.gz"]; !ok {
		t.Fatalf("expected widget-1.0.0.tar.gz to be tracked, got %v", targets.Signed.Targets)
	}

	code, out, errOut = runCmd(t, "sign", "--repo", repoDir, "--role", tuf.RoleTargets, "--key", keyURI)
	if code != 0 {
		t.Fatalf("sign failed: code=%d stdout=%s stderr=%s", code, out, errOut)
	}

	code, out, errOut = runCmd(t, "online-sign", "--repo", repoDir, "--online-key", keyURI)
	if code != 0 {
		t.Fatalf("online-sign failed: code=%d stdout=%s stderr=%s", code, out, errOut)
	}

	code, out, errOut = runCmd(t, "publish", "--repo", repoDir, "--meta-out", metaOut, "--artifacts", artifactsDir, "--artifacts-out", filepath.Join(metaOut, "A"))
	if code != 0 {
		t.Fatalf("publish failed: code=%d stdout=%s stderr=%s", code, out, errOut)
	}

	if _, err := os.Stat(filepath.Join(metaOut, "timestamp.json")); err != nil {
		t.Fatalf("expected published timestamp.json: %v", err)
	}

	code, out, errOut = runCmd(t, "status", "--repo", repoDir, "--role", tuf.RoleTargets, "--json")
	if code != 0 {
		t.Fatalf("status failed: code=%d stdout=%s stderr=%s", code, out, errOut)
	}
	var st map[string]any
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("decode status json: %v", err)
	}
	if st["Valid"] != true {
		t.Fatalf("expected targets status valid, got %v", st)
	}
}

func TestInviteThenAccept(t *testing.T) {
	repoDir := t.TempDir()

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	keyID := "rootkey"
	keyURI := "file:" + keyID + ":" + hex.EncodeToString(priv)
	seedRoot(t, repoDir, keyURI, pub, keyID)

	code, _, errOut := runCmd(t, "invite", "--repo", repoDir, "--signer", "@alice", "--role", "root")
	if code != 0 {
		t.Fatalf("invite failed: %s", errOut)
	}

	code, out, errOut := runCmd(t, "status", "--repo", repoDir, "--role", "root")
	if code != 1 {
		t.Fatalf("expected invalid status while invite outstanding, got code=%d stdout=%s stderr=%s", code, out, errOut)
	}

	code, _, errOut = runCmd(t, "accept", "--repo", repoDir, "--signer", "@alice", "--role", "root")
	if code != 0 {
		t.Fatalf("accept failed: %s", errOut)
	}
}

func TestImport_RejectsMalformedDocument(t *testing.T) {
	repoDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(repoDir, "root.json"), []byte(`{"signed": {"_type": "bogus"}}`), 0o644); err != nil {
		t.Fatalf("write malformed fixture: %v", err)
	}

	code, out, _ := runCmd(t, "import", "--repo", repoDir)
	if code != 1 {
		t.Fatalf("expected import to fail on malformed root.json, got code=%d stdout=%s", code, out)
	}
}
