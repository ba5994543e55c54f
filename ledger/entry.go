package ledger

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"

	"github.com/spvtally/tally/chain"
	"github.com/spvtally/tally/merkle"
)

// DoubleEntry is a transaction's raw bytes together with the evidence
// that it was mined: a merkle proof and the header the proof lands in.
// An unconfirmed transaction carries bytes only; the not-found sentinel
// carries nothing (nil Tx).
//
// Entries are values.  Nothing here mutates after construction, so they
// are safe to share between goroutines.
type DoubleEntry struct {
	Tx     []byte
	Proof  merkle.Proof
	Header chain.Header
}

// NewUnconfirmed wraps raw transaction bytes with no confirmation data.
func NewUnconfirmed(raw []byte) DoubleEntry {
	return DoubleEntry{Tx: raw}
}

// NewConfirmed wraps raw transaction bytes with the proof and header
// asserting where they were mined.  Whether the assertion holds is
// Confirmed's call, not the constructor's.
func NewConfirmed(raw []byte, proof merkle.Proof, hdr chain.Header) DoubleEntry {
	return DoubleEntry{Tx: raw, Proof: proof, Header: hdr}
}

// Found reports whether there is a transaction here at all.  The zero
// DoubleEntry is the not-found sentinel.
func (e DoubleEntry) Found() bool {
	return e.Tx != nil
}

// mined reports whether the entry carries confirmation data, proven or
// not.
func (e DoubleEntry) mined() bool {
	return !e.Header.IsZero()
}

// TxID is the double-sha256 of the owned bytes; zero for the sentinel.
func (e DoubleEntry) TxID() chainhash.Hash {
	if !e.Found() {
		return chainhash.Hash{}
	}
	return chainhash.DoubleHashH(e.Tx)
}

// MsgTx parses the owned bytes.  A sentinel entry and malformed bytes
// are distinguishable here: the former is ErrNotFound, the latter a
// decode error.
func (e DoubleEntry) MsgTx() (*wire.MsgTx, error) {
	if !e.Found() {
		return nil, ErrNotFound
	}
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(e.Tx)); err != nil {
		return nil, fmt.Errorf("bad tx %s: %v", e.TxID(), err)
	}
	return &tx, nil
}

// ErrNotFound marks an operation on the not-found sentinel.
var ErrNotFound = fmt.Errorf("no such transaction")

// Inputs returns the transaction's inputs in order, or nil if the entry
// is absent or malformed.
func (e DoubleEntry) Inputs() []*wire.TxIn {
	tx, err := e.MsgTx()
	if err != nil {
		return nil
	}
	return tx.TxIn
}

// Outputs returns the transaction's outputs in order, or nil if the
// entry is absent or malformed.
func (e DoubleEntry) Outputs() []*wire.TxOut {
	tx, err := e.MsgTx()
	if err != nil {
		return nil
	}
	return tx.TxOut
}

// Input returns input i, or nil when out of range.
func (e DoubleEntry) Input(i uint32) *wire.TxIn {
	ins := e.Inputs()
	if uint64(i) >= uint64(len(ins)) {
		return nil
	}
	return ins[i]
}

// Output returns output i, or nil when out of range.
func (e DoubleEntry) Output(i uint32) *wire.TxOut {
	outs := e.Outputs()
	if uint64(i) >= uint64(len(outs)) {
		return nil
	}
	return outs[i]
}

// Sent sums the transaction's own outputs.
func (e DoubleEntry) Sent() btcutil.Amount {
	var sum btcutil.Amount
	for _, out := range e.Outputs() {
		sum += btcutil.Amount(out.Value)
	}
	return sum
}

// Time is the containing block's timestamp; only meaningful when the
// entry is confirmed.
func (e DoubleEntry) Time() time.Time {
	return e.Header.Timestamp
}

// Confirmed reports whether the entry proves its transaction was mined.
// The checks run in order and each failure short-circuits:
//
//  1. there is a transaction at all;
//  2. the header is valid, including its own proof of work;
//  3. the txid recomputed from the owned bytes is the proof's leaf;
//  4. the proof's branch recomputes to its stated root;
//  5. that root is the header's merkle root.
//
// Tampered bytes, a swapped proof, or a header from some other block
// each break one of these links, so a client holding nothing but
// headers can still trust the result as far as it trusts the header
// chain's work.
func (e DoubleEntry) Confirmed() bool {
	if !e.Found() {
		return false
	}
	if !e.Header.Valid() {
		return false
	}
	if e.TxID() != e.Proof.Leaf {
		return false
	}
	if !e.Proof.Valid() {
		return false
	}
	return e.Proof.Root == e.Header.MerkleRoot
}

// Cmp gives a total order over entries by chain position: header first,
// proof index (position in the block) when the headers are equal.
// Comparing by position rather than content is deliberate: for entries
// that actually confirm, equal position means equal transaction.
//
// The original scheme leaves unconfirmed entries undefined, so the rule
// here is explicit: two unconfirmed entries order by txid bytes, an
// unconfirmed entry sorts after every confirmed one, and the two kinds
// are never equal.
func (e DoubleEntry) Cmp(o DoubleEntry) int {
	switch {
	case e.mined() && !o.mined():
		return -1
	case !e.mined() && o.mined():
		return 1
	case !e.mined() && !o.mined():
		a, b := e.TxID(), o.TxID()
		return bytes.Compare(a[:], b[:])
	}
	if c := e.Header.Cmp(&o.Header); c != 0 {
		return c
	}
	switch {
	case e.Proof.Index < o.Proof.Index:
		return -1
	case e.Proof.Index > o.Proof.Index:
		return 1
	}
	return 0
}

// Equal reports equal chain position.  See Cmp.
func (e DoubleEntry) Equal(o DoubleEntry) bool { return e.Cmp(o) == 0 }

// Less reports whether e confirms earlier in the chain than o.
func (e DoubleEntry) Less(o DoubleEntry) bool { return e.Cmp(o) < 0 }

// maxTxLen bounds the transaction size Deserialize will allocate for.
// No transaction outgrows the block that carries it.
const maxTxLen = 32 * 1024 * 1024

// Serialize writes the entry for transport: a presence flag, then for a
// found entry the length-prefixed tx bytes, a mined flag, and when
// mined the proof, height and 80-byte header.  Presence is a flag of
// its own rather than inferred from the length, so a found-but-empty
// entry survives the trip.
func (e DoubleEntry) Serialize(w io.Writer) error {
	if !e.Found() {
		_, err := w.Write([]byte{0})
		return err
	}
	if _, err := w.Write([]byte{1}); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(e.Tx))); err != nil {
		return err
	}
	if _, err := w.Write(e.Tx); err != nil {
		return err
	}
	mined := byte(0)
	if e.mined() {
		mined = 1
	}
	if _, err := w.Write([]byte{mined}); err != nil {
		return err
	}
	if mined == 0 {
		return nil
	}
	if err := e.Proof.Serialize(w); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, e.Header.Height); err != nil {
		return err
	}
	_, err := w.Write(e.Header.Bytes())
	return err
}

// Deserialize reads an entry written by Serialize.
func (e *DoubleEntry) Deserialize(r io.Reader) error {
	var present [1]byte
	if _, err := io.ReadFull(r, present[:]); err != nil {
		return err
	}
	*e = DoubleEntry{}
	if present[0] == 0 {
		return nil
	}
	var txLen uint32
	if err := binary.Read(r, binary.BigEndian, &txLen); err != nil {
		return err
	}
	if txLen > maxTxLen {
		return fmt.Errorf("tx of %d bytes exceeds the %d cap", txLen, maxTxLen)
	}
	e.Tx = make([]byte, txLen)
	if _, err := io.ReadFull(r, e.Tx); err != nil {
		return err
	}
	var mined [1]byte
	if _, err := io.ReadFull(r, mined[:]); err != nil {
		return err
	}
	if mined[0] == 0 {
		return nil
	}
	if err := e.Proof.Deserialize(r); err != nil {
		return err
	}
	var height int32
	if err := binary.Read(r, binary.BigEndian, &height); err != nil {
		return err
	}
	var hdrBytes [chain.HeaderLen]byte
	if _, err := io.ReadFull(r, hdrBytes[:]); err != nil {
		return err
	}
	hdr, err := chain.DecodeHeader(hdrBytes[:])
	if err != nil {
		return err
	}
	hdr.Height = height
	e.Header = hdr
	return nil
}
