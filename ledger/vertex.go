package ledger

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcutil"
)

// Vertex is one node of the spend graph: a double entry plus the
// resolved entries of every transaction its inputs reference, keyed by
// txid.  Referenced transactions are always strictly earlier ones, so
// the graph stays acyclic and the map owns its entries outright.
type Vertex struct {
	DoubleEntry
	Previous map[chainhash.Hash]DoubleEntry
}

// Prevouts pairs each input, in declared order, with the entry of the
// transaction it spends.  The result always has exactly one element per
// input; unresolved references carry the not-found sentinel.
func (v *Vertex) Prevouts() []Prevout {
	ins := v.Inputs()
	ps := make([]Prevout, 0, len(ins))
	for i, in := range ins {
		ref := in.PreviousOutPoint.Hash
		ps = append(ps, Prevout{
			PrevID: ref,
			Prev:   v.Previous[ref],
			Index:  uint32(i),
			Input:  in,
		})
	}
	return ps
}

// Prevout returns the spend link for input i alone; the zero Prevout
// when i is out of range.
func (v *Vertex) Prevout(i uint32) Prevout {
	in := v.Input(i)
	if in == nil {
		return Prevout{}
	}
	ref := in.PreviousOutPoint.Hash
	return Prevout{PrevID: ref, Prev: v.Previous[ref], Index: i, Input: in}
}

// Spent sums the values of all spent outputs.
func (v *Vertex) Spent() btcutil.Amount {
	var sum btcutil.Amount
	for _, p := range v.Prevouts() {
		sum += p.Value()
	}
	return sum
}

// Fee is spent minus sent.  It is reported, not enforced: a negative
// fee means the vertex is malformed or incompletely resolved, which
// Valid will already say.
func (v *Vertex) Fee() btcutil.Amount {
	return v.Spent() - v.Sent()
}

// SigOps counts the signature operations the transaction's scripts
// would execute: its own output scripts, each input's unlocking script,
// and the p2sh-aware count against each resolved previous output.
func (v *Vertex) SigOps() int {
	n := 0
	for _, out := range v.Outputs() {
		n += txscript.GetSigOpCount(out.PkScript)
	}
	for _, p := range v.Prevouts() {
		if p.Input == nil {
			continue
		}
		n += txscript.GetSigOpCount(p.Input.SignatureScript)
		if out := p.Output(); out != nil {
			n += txscript.GetPreciseSigOpCount(
				p.Input.SignatureScript, out.PkScript, true)
		}
	}
	return n
}

// Valid reports whether every spend link checks out and the sigop count
// stays inside the rules' per-transaction ceiling.  When the rules
// carry a script verifier, each input's scripts must execute cleanly
// too; without one, script conditions simply aren't checked here.
//
// Fee sign and double-spends are out of scope: the former is the
// caller's policy, the latter needs global state a single vertex
// doesn't have.
func (v *Vertex) Valid(r Rules) bool {
	ps := v.Prevouts()
	if len(ps) == 0 {
		return false
	}
	for i := range ps {
		if !ps[i].Valid() {
			return false
		}
	}
	if v.SigOps() > r.MaxSigOps {
		return false
	}
	if r.VerifyScript != nil {
		tx, err := v.MsgTx()
		if err != nil {
			return false
		}
		for i := range ps {
			out := ps[i].Output()
			if err := r.VerifyScript(out.PkScript, out.Value, tx, int(ps[i].Index)); err != nil {
				log.Debugf("tx %s input %d script rejected: %v",
					v.TxID(), ps[i].Index, err)
				return false
			}
		}
	}
	return true
}
