package ledger

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
)

// Prevout is one resolved spend link: input Index of some transaction,
// together with the entry of the transaction it spends.  PrevID is the
// key the entry was resolved under, kept so the link can be checked
// against the input's own outpoint.
type Prevout struct {
	PrevID chainhash.Hash
	Prev   DoubleEntry
	Index  uint32
	Input  *wire.TxIn
}

// Output is the previous output this link spends, or nil if the
// previous transaction is absent or has no such output.
func (p *Prevout) Output() *wire.TxOut {
	if p.Input == nil {
		return nil
	}
	return p.Prev.Output(p.Input.PreviousOutPoint.Index)
}

// Value is the amount the spent output carries; zero when unresolved.
func (p *Prevout) Value() btcutil.Amount {
	out := p.Output()
	if out == nil {
		return 0
	}
	return btcutil.Amount(out.Value)
}

// Valid requires the previous transaction to have been found, the
// input's outpoint to actually reference the key it was resolved under,
// and the referenced output to exist.  Whether the input's unlocking
// script satisfies the output's locking script is a separate concern;
// see Rules.VerifyScript.
func (p *Prevout) Valid() bool {
	return p.Input != nil &&
		p.Prev.Found() &&
		p.Input.PreviousOutPoint.Hash == p.PrevID &&
		p.Output() != nil
}

// Edge is the minimal spend relation, one input against one output,
// for callers that only care about structural shape.
type Edge struct {
	Input  *wire.TxIn
	Output *wire.TxOut
}

// Valid reports whether both halves are independently well-formed.
func (e *Edge) Valid() bool {
	return e.Input != nil &&
		e.Output != nil &&
		e.Output.Value >= 0 &&
		e.Output.Value <= btcutil.MaxSatoshi
}
