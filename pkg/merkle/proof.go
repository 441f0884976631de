package merkle

import (
	"fmt"

	"github.com/northstaraokeystone/trumpproof/pkg/crypto"
)

// InclusionProof shows that a leaf belongs to a tree with the given root.
type InclusionProof struct {
	LeafIndex  int         `json:"leaf_index"`
	LeafHash   string      `json:"leaf_hash"`
	MerkleRoot string      `json:"merkle_root"`
	ProofPath  []ProofStep `json:"proof_path"`
}

type ProofStep struct {
	Side        string `json:"side"` // "L" or "R"
	SiblingHash string `json:"sibling_hash"`
}

// Prove returns the inclusion proof for the leaf at index.
func (t *Tree) Prove(index int) (InclusionProof, error) {
	if index < 0 || index >= len(t.Leaves) {
		return InclusionProof{}, fmt.Errorf("merkle: leaf index %d out of range [0,%d)", index, len(t.Leaves))
	}

	proof := InclusionProof{
		LeafIndex:  index,
		LeafHash:   t.Leaves[index].Hash,
		MerkleRoot: t.Root,
	}

	pos := index
	for _, level := range t.Nodes[:len(t.Nodes)-1] {
		var step ProofStep
		if pos%2 == 0 {
			sib := pos + 1
			if sib >= len(level) {
				sib = pos
			}
			step = ProofStep{Side: "R", SiblingHash: level[sib]}
		} else {
			step = ProofStep{Side: "L", SiblingHash: level[pos-1]}
		}
		proof.ProofPath = append(proof.ProofPath, step)
		pos /= 2
	}

	return proof, nil
}

// VerifyInclusionProof recomputes the root from the proof. A non-empty
// expectedRoot must also match the root carried by the proof.
func VerifyInclusionProof(h *crypto.DualHasher, proof InclusionProof, expectedRoot string) bool {
	if expectedRoot != "" && proof.MerkleRoot != expectedRoot {
		return false
	}

	current := proof.LeafHash
	for _, step := range proof.ProofPath {
		if step.Side == "L" {
			current = nodeHash(h, step.SiblingHash, current)
		} else {
			current = nodeHash(h, current, step.SiblingHash)
		}
	}

	return current == proof.MerkleRoot
}
