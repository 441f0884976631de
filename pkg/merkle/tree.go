// Package merkle computes Merkle roots over receipt batches.
//
// Leaves are the dual hash of each item's canonical JSON. Interior nodes
// hash the concatenation of the two child hash strings. Odd levels
// duplicate their last hash. An empty batch has the root of the literal
// string "empty".
package merkle

import (
	"fmt"

	"github.com/northstaraokeystone/trumpproof/pkg/crypto"
)

// EmptyPreimage is hashed to form the root of an empty batch.
const EmptyPreimage = "empty"

// Leaf is a single hashed item.
type Leaf struct {
	Index int
	Hash  string
}

// Tree holds every level of node hashes. Nodes[0] are the leaf hashes and the
// last level holds only the root.
type Tree struct {
	Leaves []Leaf
	Root   string
	Nodes  [][]string
}

// Root returns the Merkle root of items.
func Root(h *crypto.DualHasher, items []any) (string, error) {
	tree, err := BuildTree(h, items)
	if err != nil {
		return "", err
	}
	return tree.Root, nil
}

// BuildTree hashes items in order and builds the tree bottom-up.
func BuildTree(h *crypto.DualHasher, items []any) (*Tree, error) {
	if len(items) == 0 {
		return &Tree{Root: h.SumString(EmptyPreimage)}, nil
	}

	leaves := make([]Leaf, len(items))
	for i, item := range items {
		lh, err := h.Hash(item)
		if err != nil {
			return nil, fmt.Errorf("merkle: leaf %d: %w", i, err)
		}
		leaves[i] = Leaf{Index: i, Hash: lh}
	}

	tree := &Tree{Leaves: leaves}
	level := extractHashes(leaves)
	for len(level) > 1 {
		tree.Nodes = append(tree.Nodes, level)
		level = buildNextLevel(h, level)
	}
	tree.Root = level[0]
	tree.Nodes = append(tree.Nodes, level)

	return tree, nil
}

func extractHashes(leaves []Leaf) []string {
	hashes := make([]string, len(leaves))
	for i, l := range leaves {
		hashes[i] = l.Hash
	}
	return hashes
}

func buildNextLevel(h *crypto.DualHasher, hashes []string) []string {
	count := len(hashes)
	if count%2 != 0 {
		hashes = append(hashes[:count:count], hashes[count-1])
		count++
	}

	next := make([]string, count/2)
	for i := 0; i < count; i += 2 {
		next[i/2] = nodeHash(h, hashes[i], hashes[i+1])
	}
	return next
}

func nodeHash(h *crypto.DualHasher, left, right string) string {
	return h.SumString(left + right)
}
