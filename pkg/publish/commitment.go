package publish

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/Mindburn-Labs/reposign/pkg/errors"
	"github.com/Mindburn-Labs/reposign/pkg/merkle"
)

// commitmentDocument is the on-disk shape of commitment.json: the Merkle
// root over every published role document, plus each leaf's per-path
// hash so a client can request and verify an inclusion proof later.
type commitmentDocument struct {
	Root   string               `json:"merkle_root"`
	Leaves []merkle.MerkleLeaf `json:"leaves"`
}

// writeCommitmentFile builds a Merkle commitment over every *.json role
// document just published into metaOut and writes it to commitment.json,
// so a client that fetched the metadata set can later request an
// inclusion proof and verify it matches what this publish run produced.
func writeCommitmentFile(metaOut string) error {
	entries, err := os.ReadDir(metaOut)
	if err != nil {
		return errors.Wrap(errors.IoFailure, "list published metadata", err)
	}

	docs := map[string]interface{}{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(metaOut, e.Name()))
		if err != nil {
			return errors.Wrap(errors.IoFailure, "read "+e.Name(), err)
		}
		var doc interface{}
		if err := json.Unmarshal(data, &doc); err != nil {
			return errors.Wrap(errors.MalformedMetadata, "parse "+e.Name(), err)
		}
		docs[e.Name()] = doc
	}

	tree, err := merkle.BuildMerkleTree(docs)
	if err != nil {
		return errors.Wrap(errors.IoFailure, "build publish commitment", err)
	}

	out, err := json.MarshalIndent(commitmentDocument{Root: tree.Root, Leaves: tree.Leaves}, "", "  ")
	if err != nil {
		return errors.Wrap(errors.IoFailure, "marshal commitment", err)
	}
	if err := os.WriteFile(filepath.Join(metaOut, "commitment.json"), out, 0o644); err != nil {
		return errors.Wrap(errors.IoFailure, "write commitment.json", err)
	}
	return nil
}
