// Package merkle keeps the commitment tree over stored note commitments.
package merkle

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/consensys/gnark-crypto/accumulator/merkletree"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/kysee/phoenix/phoenix/common"
	"github.com/kysee/phoenix/utils"
)

var ErrLeafIndex = fmt.Errorf("%w: merkle leaf index out of range", common.ErrNotFound)

type Tree struct {
	mu     sync.RWMutex
	tree   *merkletree.Tree
	leaves [][]byte
}

func NewTree() *Tree {
	return &Tree{tree: merkletree.New(utils.MiMCHasher())}
}

// Push appends a commitment and returns its leaf index.
func (t *Tree) Push(commitment fr.Element) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	leaf := commitment.Bytes()
	t.leaves = append(t.leaves, leaf[:])
	t.tree.Push(leaf[:])
	return uint64(len(t.leaves) - 1)
}

func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.leaves)
}

// Root returns the current root, or zero for an empty tree.
func (t *Tree) Root() fr.Element {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var root fr.Element
	if len(t.leaves) == 0 {
		return root
	}
	root.SetBytes(t.tree.Root())
	return root
}

// Opening builds the membership proof of leaf idx against the current root.
func (t *Tree) Opening(idx uint64) (*Opening, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if idx >= uint64(len(t.leaves)) {
		return nil, ErrLeafIndex
	}
	var buf bytes.Buffer
	for _, l := range t.leaves {
		buf.Write(l)
	}
	return buildOpening(&buf, idx)
}

// MockOpening returns the opening of leaf in a tree holding only that leaf.
func MockOpening(leaf fr.Element) *Opening {
	b := leaf.Bytes()
	o, err := buildOpening(bytes.NewReader(b[:]), 0)
	if err != nil {
		// a single full segment always yields a proof
		panic(err)
	}
	return o
}

func buildOpening(r io.Reader, idx uint64) (*Opening, error) {
	h := utils.MiMCHasher()
	root, proofSet, numLeaves, err := merkletree.BuildReaderProof(r, h, h.Size(), idx)
	if err != nil {
		return nil, err
	}
	return &Opening{
		Root:      root,
		ProofSet:  proofSet,
		Index:     idx,
		NumLeaves: numLeaves,
	}, nil
}

// Opening is a Merkle membership proof. ProofSet[0] is the leaf itself.
type Opening struct {
	Root      []byte
	ProofSet  [][]byte
	Index     uint64
	NumLeaves uint64
}

var ErrEmptyOpening = errors.New("merkle: empty opening")

func (o *Opening) RootScalar() fr.Element {
	var s fr.Element
	s.SetBytes(o.Root)
	return s
}

// Leaf returns the proven leaf.
func (o *Opening) Leaf() (fr.Element, error) {
	var s fr.Element
	if len(o.ProofSet) == 0 {
		return s, ErrEmptyOpening
	}
	s.SetBytes(o.ProofSet[0])
	return s, nil
}

func (o *Opening) Verify() bool {
	if len(o.ProofSet) == 0 {
		return false
	}
	return merkletree.VerifyProof(utils.MiMCHasher(), o.Root, o.ProofSet, o.Index, o.NumLeaves)
}

func (o *Opening) Clone() *Opening {
	c := &Opening{
		Root:      append([]byte(nil), o.Root...),
		ProofSet:  make([][]byte, len(o.ProofSet)),
		Index:     o.Index,
		NumLeaves: o.NumLeaves,
	}
	for i, p := range o.ProofSet {
		c.ProofSet[i] = append([]byte(nil), p...)
	}
	return c
}
