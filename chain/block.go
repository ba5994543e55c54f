package chain

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"

	"github.com/spvtally/tally/merkle"
)

// DecodeBlock deserializes a raw block.
func DecodeBlock(raw []byte) (*wire.MsgBlock, error) {
	var blk wire.MsgBlock
	if err := blk.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("bad block: %v", err)
	}
	return &blk, nil
}

// Transactions splits a raw block into its transactions, in block order.
func Transactions(raw []byte) ([]*wire.MsgTx, error) {
	blk, err := DecodeBlock(raw)
	if err != nil {
		return nil, err
	}
	return blk.Transactions, nil
}

// IsCoinbase reports whether tx creates new coins, i.e. has the single
// null-outpoint input.
func IsCoinbase(tx *wire.MsgTx) bool {
	return blockchain.IsCoinBaseTx(tx)
}

// TxIDs returns the txid of every transaction, in the given order.
func TxIDs(txs []*wire.MsgTx) []chainhash.Hash {
	ids := make([]chainhash.Hash, len(txs))
	for i, tx := range txs {
		ids[i] = tx.TxHash()
	}
	return ids
}

// CheckBlock verifies a raw block on its own: a valid header (fields and
// proof of work), a coinbase first, structurally sane transactions after
// that, and a merkle root that matches the transaction set.  It knows
// nothing about the block's place in a chain.
func CheckBlock(raw []byte) error {
	blk, err := DecodeBlock(raw)
	if err != nil {
		return err
	}
	hdr := Header{BlockHeader: blk.Header}
	if !hdr.FieldsValid() {
		return fmt.Errorf("block %s: bad header fields", hdr.Hash())
	}
	if !hdr.PowValid() {
		return fmt.Errorf("block %s: insufficient proof of work", hdr.Hash())
	}
	txs := blk.Transactions
	if len(txs) == 0 {
		return fmt.Errorf("block %s: no transactions", hdr.Hash())
	}
	if !IsCoinbase(txs[0]) {
		return fmt.Errorf("block %s: first tx is not a coinbase", hdr.Hash())
	}
	for i, tx := range txs[1:] {
		if IsCoinbase(tx) {
			return fmt.Errorf("block %s: extra coinbase at index %d", hdr.Hash(), i+1)
		}
		if err := blockchain.CheckTransactionSanity(btcutil.NewTx(tx)); err != nil {
			return fmt.Errorf("block %s: tx %d: %v", hdr.Hash(), i+1, err)
		}
	}
	if root := merkle.Root(TxIDs(txs)); root != blk.Header.MerkleRoot {
		return fmt.Errorf("block %s: merkle root mismatch (computed %s)",
			hdr.Hash(), root)
	}
	return nil
}
