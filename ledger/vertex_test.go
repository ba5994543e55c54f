package ledger

import (
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/spvtally/tally/chain"
)

// fakeLedger answers Transaction from a map; everything else is empty.
type fakeLedger struct {
	entries map[chainhash.Hash]DoubleEntry
	errOn   map[chainhash.Hash]error
}

func (f *fakeLedger) Headers(int32) ([]chain.Header, error) { return nil, nil }

func (f *fakeLedger) Transaction(txid chainhash.Hash) (DoubleEntry, error) {
	if err := f.errOn[txid]; err != nil {
		return DoubleEntry{}, err
	}
	return f.entries[txid], nil
}

func (f *fakeLedger) Header(chainhash.Hash) (chain.Header, error) {
	return chain.Header{}, nil
}

func (f *fakeLedger) Block(chainhash.Hash) ([]byte, error) { return nil, nil }

// prevTx pays the given values to anyone-can-spend outputs.
func prevTx(seed byte, values ...int64) *wire.MsgTx {
	tx := wire.NewMsgTx(1)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{seed}, Index: 0},
		Sequence:         0xffffffff,
	})
	for _, v := range values {
		tx.AddTxOut(wire.NewTxOut(v, []byte{0x51}))
	}
	return tx
}

func ledgerWith(t *testing.T, txs ...*wire.MsgTx) *fakeLedger {
	t.Helper()
	f := &fakeLedger{
		entries: make(map[chainhash.Hash]DoubleEntry),
		errOn:   make(map[chainhash.Hash]error),
	}
	for _, tx := range txs {
		f.entries[tx.TxHash()] = NewUnconfirmed(txBytes(t, tx))
	}
	return f
}

func TestMakeVertexPrevouts(t *testing.T) {
	a := prevTx(1, 100, 200, 300)
	b := prevTx(2, 50)
	f := ledgerWith(t, a, b)

	// inputs deliberately interleave and repeat the two references
	spend := wire.NewMsgTx(1)
	aHash, bHash := a.TxHash(), b.TxHash()
	for _, op := range []wire.OutPoint{
		{Hash: aHash, Index: 0},
		{Hash: bHash, Index: 0},
		{Hash: aHash, Index: 2},
	} {
		spend.AddTxIn(&wire.TxIn{PreviousOutPoint: op, Sequence: 0xffffffff})
	}
	spend.AddTxOut(wire.NewTxOut(400, []byte{0x51}))

	v, err := MakeVertex(f, NewUnconfirmed(txBytes(t, spend)))
	require.NoError(t, err)

	// one map entry per distinct reference
	require.Len(t, v.Previous, 2)

	ps := v.Prevouts()
	require.Len(t, ps, len(spend.TxIn))
	for i, p := range ps {
		require.EqualValues(t, i, p.Index)
		require.Equal(t, spend.TxIn[i].PreviousOutPoint.Hash, p.PrevID)
		require.True(t, p.Valid(), "prevout %d", i)
		require.Equal(t, p, v.Prevout(uint32(i)))
	}
	require.Equal(t, Prevout{}, v.Prevout(uint32(len(ps))))

	require.EqualValues(t, 100+50+300, v.Spent())
	require.EqualValues(t, 400, v.Sent())
	require.EqualValues(t, 50, v.Fee())
}

func TestMakeVertexNoInputsResolved(t *testing.T) {
	f := ledgerWith(t) // knows nothing
	spend := prevTx(3, 10)

	v, err := MakeVertex(f, NewUnconfirmed(txBytes(t, spend)))
	require.NoError(t, err)

	ps := v.Prevouts()
	require.Len(t, ps, 1)
	require.False(t, ps[0].Prev.Found())
	require.False(t, ps[0].Valid(), "sentinel prevout can't be valid")
	require.False(t, v.Valid(StandardRules))

	// fee is still computable, just meaningless
	require.EqualValues(t, 0, v.Spent())
	require.EqualValues(t, -10, v.Fee())
}

func TestVertexAmounts(t *testing.T) {
	// previous outputs sum to 1000, own outputs to 900
	prev := prevTx(1, 400, 600)
	f := ledgerWith(t, prev)
	spend := spendTx(prev, 100, 0, 1)

	v, err := MakeVertex(f, NewUnconfirmed(txBytes(t, spend)))
	require.NoError(t, err)
	require.EqualValues(t, 1000, v.Spent())
	require.EqualValues(t, 900, v.Sent())
	require.EqualValues(t, 100, v.Fee())
	require.True(t, v.Valid(StandardRules))
}

func TestVertexSigOpLimit(t *testing.T) {
	prev := prevTx(1, 1000)
	f := ledgerWith(t, prev)

	spend := wire.NewMsgTx(1)
	spend.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: prev.TxHash(), Index: 0},
		Sequence:         0xffffffff,
	})
	spend.AddTxOut(wire.NewTxOut(900, []byte{0xac})) // OP_CHECKSIG

	v, err := MakeVertex(f, NewUnconfirmed(txBytes(t, spend)))
	require.NoError(t, err)
	require.True(t, v.SigOps() >= 1)
	require.True(t, v.Valid(StandardRules))
	require.False(t, v.Valid(Rules{MaxSigOps: 0}), "sigop ceiling must bind")
}

func TestVertexScriptHook(t *testing.T) {
	prev := prevTx(1, 1000)
	f := ledgerWith(t, prev)
	spend := spendTx(prev, 100, 0)

	v, err := MakeVertex(f, NewUnconfirmed(txBytes(t, spend)))
	require.NoError(t, err)

	var seen int
	pass := StandardRules
	pass.VerifyScript = func(pkScript []byte, amount int64, tx *wire.MsgTx, inIdx int) error {
		seen++
		require.EqualValues(t, 1000, amount)
		require.Equal(t, 0, inIdx)
		return nil
	}
	require.True(t, v.Valid(pass))
	require.Equal(t, 1, seen)

	fail := StandardRules
	fail.VerifyScript = func([]byte, int64, *wire.MsgTx, int) error {
		return fmt.Errorf("locked")
	}
	require.False(t, v.Valid(fail))
}

func TestMakeVertexProviderError(t *testing.T) {
	a := prevTx(1, 100)
	b := prevTx(2, 200)
	f := ledgerWith(t, a, b)
	f.errOn[b.TxHash()] = fmt.Errorf("disk on fire")

	spend := wire.NewMsgTx(1)
	spend.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: a.TxHash(), Index: 0},
		Sequence:         0xffffffff,
	})
	spend.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: b.TxHash(), Index: 0},
		Sequence:         0xffffffff,
	})
	spend.AddTxOut(wire.NewTxOut(250, []byte{0x51}))

	v, err := MakeVertex(f, NewUnconfirmed(txBytes(t, spend)))
	require.Error(t, err)

	// the vertex still came back, with a sentinel in the failed slot
	ps := v.Prevouts()
	require.Len(t, ps, 2)
	require.True(t, ps[0].Valid())
	require.False(t, ps[1].Valid())
	require.False(t, v.Valid(StandardRules))
}

func TestVertexMalformedEntry(t *testing.T) {
	v := Vertex{DoubleEntry: DoubleEntry{Tx: []byte{0xde, 0xad}}}
	require.Empty(t, v.Prevouts())
	require.False(t, v.Valid(StandardRules))
}

func TestEdge(t *testing.T) {
	in := &wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{1}}}
	out := wire.NewTxOut(500, []byte{0x51})

	e := Edge{Input: in, Output: out}
	require.True(t, e.Valid())

	require.False(t, (&Edge{Input: in}).Valid())
	require.False(t, (&Edge{Output: out}).Valid())

	tooMuch := Edge{Input: in, Output: wire.NewTxOut(22_0000_0000_0000_0000, []byte{0x51})}
	require.False(t, tooMuch.Valid())
}
