package chain

import (
	"bytes"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/spvtally/tally/merkle"
)

// coinbaseTx builds a minimal coinbase paying to an anyone-can-spend
// output.  The height in the signature script keeps txids distinct
// across test blocks.
func coinbaseTx(height int32) *wire.MsgTx {
	tx := wire.NewMsgTx(1)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: 0xffffffff},
		SignatureScript:  []byte{0x03, byte(height), byte(height >> 8), byte(height >> 16)},
		Sequence:         0xffffffff,
	})
	tx.AddTxOut(wire.NewTxOut(50_0000_0000, []byte{0x51})) // OP_TRUE
	return tx
}

// buildBlock assembles and "mines" a block from a coinbase plus the
// given transactions, against the easy test target.
func buildBlock(t *testing.T, prev chainhash.Hash, height int32, extra ...*wire.MsgTx) *wire.MsgBlock {
	t.Helper()
	txs := append([]*wire.MsgTx{coinbaseTx(height)}, extra...)
	blk := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:    1,
			PrevBlock:  prev,
			MerkleRoot: merkle.Root(TxIDs(txs)),
			Timestamp:  time.Unix(1600000000+int64(height), 0),
			Bits:       easyBits,
		},
		Transactions: txs,
	}
	hdr := Header{BlockHeader: blk.Header}
	mine(t, &hdr)
	blk.Header.Nonce = hdr.Nonce
	return blk
}

func blockBytes(t *testing.T, blk *wire.MsgBlock) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := blk.Serialize(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// spendTx spends output `idx` of prev in full to an anyone-can-spend
// output, minus a fee.
func spendTx(prev *wire.MsgTx, idx uint32, fee int64) *wire.MsgTx {
	tx := wire.NewMsgTx(1)
	prevHash := prev.TxHash()
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: prevHash, Index: idx},
		Sequence:         0xffffffff,
	})
	tx.AddTxOut(wire.NewTxOut(prev.TxOut[idx].Value-fee, []byte{0x51}))
	return tx
}

func TestCheckBlock(t *testing.T) {
	cb := coinbaseTx(1)
	blk := buildBlock(t, chainhash.Hash{9}, 2, spendTx(cb, 0, 1000))

	if err := CheckBlock(blockBytes(t, blk)); err != nil {
		t.Fatalf("good block rejected: %v", err)
	}

	txs, err := Transactions(blockBytes(t, blk))
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txs))
	}
	if !IsCoinbase(txs[0]) || IsCoinbase(txs[1]) {
		t.Fatal("coinbase detection is confused")
	}
}

func TestCheckBlockRejects(t *testing.T) {
	cb := coinbaseTx(1)

	t.Run("garbage", func(t *testing.T) {
		if err := CheckBlock([]byte("not a block")); err == nil {
			t.Fatal("garbage accepted")
		}
	})

	t.Run("merkle mismatch", func(t *testing.T) {
		blk := buildBlock(t, chainhash.Hash{9}, 2, spendTx(cb, 0, 1000))
		// swap in a tx the root doesn't cover
		blk.Transactions[1] = spendTx(cb, 0, 2000)
		if err := CheckBlock(blockBytes(t, blk)); err == nil {
			t.Fatal("tampered tx set accepted")
		}
	})

	t.Run("no coinbase", func(t *testing.T) {
		spend := spendTx(cb, 0, 1000)
		blk := &wire.MsgBlock{
			Header: wire.BlockHeader{
				Version:    1,
				MerkleRoot: merkle.Root(TxIDs([]*wire.MsgTx{spend})),
				Timestamp:  time.Unix(1600000000, 0),
				Bits:       easyBits,
			},
			Transactions: []*wire.MsgTx{spend},
		}
		hdr := Header{BlockHeader: blk.Header}
		mine(t, &hdr)
		blk.Header.Nonce = hdr.Nonce
		if err := CheckBlock(blockBytes(t, blk)); err == nil {
			t.Fatal("block without coinbase accepted")
		}
	})

	t.Run("insufficient work", func(t *testing.T) {
		blk := buildBlock(t, chainhash.Hash{9}, 2)
		blk.Header.Bits = hardBits
		if err := CheckBlock(blockBytes(t, blk)); err == nil {
			t.Fatal("unworked block accepted")
		}
	})
}
