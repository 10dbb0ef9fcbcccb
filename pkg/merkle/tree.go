// Package merkle builds an inclusion-provable commitment over a published
// repository snapshot, letting a client verify that a fetched metadata set
// matches what a publish run actually produced.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/Mindburn-Labs/reposign/pkg/canonicalize"
)

type MerkleLeaf struct {
	Path     string
	LeafHash string
}

type MerkleTree struct {
	Leaves []MerkleLeaf
	Root   string
	Nodes  [][]string // levels of node hashes, leaves first
}

// BuildMerkleTree constructs a Merkle tree over a path -> metadata-document
// map, e.g. the set of role files produced by a single publish run. Leaves
// are ordered by sorted path so the root is stable regardless of map
// iteration order.
func BuildMerkleTree(data map[string]interface{}) (*MerkleTree, error) {
	paths := make([]string, 0, len(data))
	for k := range data {
		paths = append(paths, k)
	}
	sort.Strings(paths)

	leaves := make([]MerkleLeaf, len(paths))
	for i, path := range paths {
		canonical, err := canonicalize.JCS(data[path])
		if err != nil {
			return nil, err
		}
		leafBytes := buildLeafBytes(path, canonical)
		leaves[i] = MerkleLeaf{
			Path:     path,
			LeafHash: sha256Hex(leafBytes),
		}
	}

	if len(leaves) == 0 {
		return &MerkleTree{}, nil
	}

	tree := &MerkleTree{Leaves: leaves}
	currentLevel := extractHashes(leaves)
	tree.Nodes = append(tree.Nodes, currentLevel)

	for len(currentLevel) > 1 {
		currentLevel = buildNextLevel(currentLevel)
		tree.Nodes = append(tree.Nodes, currentLevel)
	}

	tree.Root = currentLevel[0]
	return tree, nil
}

func buildLeafBytes(path string, canonical []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("reposign:publish:leaf:v1")
	buf.WriteByte(0)
	buf.WriteString(path)
	buf.WriteByte(0)
	buf.Write(canonical)
	return buf.Bytes()
}

func extractHashes(leaves []MerkleLeaf) []string {
	hashes := make([]string, len(leaves))
	for i, l := range leaves {
		hashes[i] = l.LeafHash
	}
	return hashes
}

func buildNextLevel(hashes []string) []string {
	count := len(hashes)
	if count%2 != 0 {
		hashes = append(hashes, hashes[count-1]) // Duplicate last
		count++
	}

	nextLevel := make([]string, count/2)
	for i := 0; i < count; i += 2 {
		nextLevel[i/2] = buildNodeHash(hashes[i], hashes[i+1])
	}
	return nextLevel
}

func buildNodeHash(left, right string) string {
	var buf bytes.Buffer
	buf.WriteString("reposign:publish:node:v1")
	buf.WriteByte(0)
	buf.Write(hexToBytes(left))
	buf.Write(hexToBytes(right))
	return sha256Hex(buf.Bytes())
}

func sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func hexToBytes(s string) []byte {
	b, _ := hex.DecodeString(s)
	return b
}
