package chain

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// HeaderLen is the size of a serialized block header.
const HeaderLen = 80

// Header is a block header together with its height in the chain.
// The height is not part of the 80-byte serialization; it comes from
// whatever index the header was read out of, and is what gives headers
// (and through them, transactions) their chain-position ordering.
type Header struct {
	wire.BlockHeader
	Height int32
}

// Hash returns the double-sha256 of the 80-byte header serialization.
func (h *Header) Hash() chainhash.Hash {
	return h.BlockHeader.BlockHash()
}

// Bytes gives the 80-byte wire serialization of the header.
func (h *Header) Bytes() []byte {
	var buf bytes.Buffer
	buf.Grow(HeaderLen)
	// Serialize can't fail writing to a bytes.Buffer
	_ = h.BlockHeader.Serialize(&buf)
	return buf.Bytes()
}

// DecodeHeader reads a header back from its 80-byte serialization.
// Anything that isn't exactly 80 bytes is a caller bug, not a protocol
// outcome, so it comes back as an error rather than an invalid header.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) != HeaderLen {
		return Header{}, fmt.Errorf("header must be %d bytes, got %d", HeaderLen, len(b))
	}
	var h Header
	if err := h.BlockHeader.Deserialize(bytes.NewReader(b)); err != nil {
		return Header{}, err
	}
	return h, nil
}

// IsZero reports whether h is the empty header used as the not-found
// sentinel.  A real header always has Version >= 1 and nonzero Bits.
func (h *Header) IsZero() bool {
	return h.Version == 0 && h.Bits == 0 && h.MerkleRoot == (chainhash.Hash{})
}

// FieldsValid checks the header fields themselves: version at least 1,
// a merkle root that's actually set, and a real timestamp.  It says
// nothing about proof of work; see PowValid.
func (h *Header) FieldsValid() bool {
	return h.Version >= 1 &&
		h.MerkleRoot != (chainhash.Hash{}) &&
		h.Timestamp.Unix() > 0
}

// PowValid reports whether the header's own hash satisfies the target
// encoded in its Bits field.
func (h *Header) PowValid() bool {
	target := blockchain.CompactToBig(h.Bits)
	if target.Sign() <= 0 {
		return false
	}
	hash := h.Hash()
	return blockchain.HashToBig(&hash).Cmp(target) <= 0
}

// Valid requires both field validity and proof of work.  The two checks
// are independent and both must pass.
func (h *Header) Valid() bool {
	return h.FieldsValid() && h.PowValid()
}

// Equal reports whether two headers name the same block.
func (h *Header) Equal(o *Header) bool {
	return h.Hash() == o.Hash()
}

// Cmp orders headers by chain position: height first, block hash as the
// tiebreak so the order is total even across competing tips.
func (h *Header) Cmp(o *Header) int {
	switch {
	case h.Height < o.Height:
		return -1
	case h.Height > o.Height:
		return 1
	}
	a, b := h.Hash(), o.Hash()
	return bytes.Compare(a[:], b[:])
}
