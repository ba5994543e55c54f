// Package merkle builds and verifies transaction inclusion proofs
// against a block's merkle root.  A proof is the branch of sibling
// digests from one leaf up to the root, plus the leaf's position, which
// fixes the left/right order at every level.
package merkle

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Proof proves that Leaf sits at position Index in the tree whose root
// is Root.  The branch is ordered bottom-up.
type Proof struct {
	Leaf   chainhash.Hash
	Branch []chainhash.Hash
	Index  uint64
	Root   chainhash.Hash
}

// Valid recomputes the branch from the leaf up and compares the result
// to the stated root.
func (p *Proof) Valid() bool {
	h := p.Leaf
	idx := p.Index
	for i := range p.Branch {
		if idx&1 == 1 {
			h = *blockchain.HashMerkleBranches(&p.Branch[i], &h)
		} else {
			h = *blockchain.HashMerkleBranches(&h, &p.Branch[i])
		}
		idx >>= 1
	}
	// any leftover index bits mean the claimed position is outside the
	// tree the branch describes
	return idx == 0 && h == p.Root
}

// Root computes the merkle root of the given leaves using bitcoin's
// pairing rule: an odd node at any level pairs with itself.
func Root(leaves []chainhash.Hash) chainhash.Hash {
	if len(leaves) == 0 {
		return chainhash.Hash{}
	}
	level := make([]chainhash.Hash, len(leaves))
	copy(level, leaves)
	for len(level) > 1 {
		next := make([]chainhash.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			right := i
			if i+1 < len(level) {
				right = i + 1
			}
			next = append(next,
				*blockchain.HashMerkleBranches(&level[i], &level[right]))
		}
		level = next
	}
	return level[0]
}

// Prove builds the inclusion proof for leaves[index].
func Prove(leaves []chainhash.Hash, index uint64) (Proof, error) {
	if index >= uint64(len(leaves)) {
		return Proof{}, fmt.Errorf("leaf %d out of range (%d leaves)",
			index, len(leaves))
	}
	p := Proof{Leaf: leaves[index], Index: index}
	level := make([]chainhash.Hash, len(leaves))
	copy(level, leaves)
	pos := index
	for len(level) > 1 {
		sib := pos ^ 1
		if sib >= uint64(len(level)) {
			sib = pos // odd node pairs with itself
		}
		p.Branch = append(p.Branch, level[sib])

		next := make([]chainhash.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			right := i
			if i+1 < len(level) {
				right = i + 1
			}
			next = append(next,
				*blockchain.HashMerkleBranches(&level[i], &level[right]))
		}
		level = next
		pos >>= 1
	}
	p.Root = level[0]
	return p, nil
}

// Serialize puts the proof onto a writer: leaf, root, index, then the
// length-prefixed branch.
func (p *Proof) Serialize(w io.Writer) error {
	if _, err := w.Write(p.Leaf[:]); err != nil {
		return err
	}
	if _, err := w.Write(p.Root[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, p.Index); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(p.Branch))); err != nil {
		return err
	}
	for i := range p.Branch {
		if _, err := w.Write(p.Branch[i][:]); err != nil {
			return err
		}
	}
	return nil
}

// Deserialize reads a proof back from a reader.
func (p *Proof) Deserialize(r io.Reader) error {
	if _, err := io.ReadFull(r, p.Leaf[:]); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, p.Root[:]); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &p.Index); err != nil {
		return err
	}
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return err
	}
	if n > 64 {
		return fmt.Errorf("branch of %d nodes too deep for any real tree", n)
	}
	p.Branch = nil
	if n == 0 {
		return nil
	}
	p.Branch = make([]chainhash.Hash, n)
	for i := range p.Branch {
		if _, err := io.ReadFull(r, p.Branch[i][:]); err != nil {
			return err
		}
	}
	return nil
}
