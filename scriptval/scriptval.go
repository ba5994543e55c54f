// Package scriptval runs real script execution for spend links the
// ledger core leaves unchecked.  It plugs into ledger.Rules as the
// optional VerifyScript hook, and can validate all of a vertex's inputs
// at once on a pool of workers.
package scriptval

import (
	"fmt"
	"runtime"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/spvtally/tally/ledger"
)

// valItem holds one input of a transaction along with the previous
// output script and amount it spends.
type valItem struct {
	inIdx    int
	pkScript []byte
	amount   int64
}

// validator asynchronously validates transaction inputs.  It provides
// channels for communication and a processing function intended to run
// in multiple goroutines.
type validator struct {
	validateChan chan *valItem
	quitChan     chan struct{}
	resultChan   chan error
	flags        txscript.ScriptFlags
	tx           *wire.MsgTx
	sigCache     *txscript.SigCache
	sigHashes    *txscript.TxSigHashes
}

// sendResult sends a validation result on the internal result channel
// while respecting the quit channel, so everything shuts down in order
// when another input already failed.
func (v *validator) sendResult(result error) {
	select {
	case v.resultChan <- result:
	case <-v.quitChan:
	}
}

// validateHandler consumes items from the validate channel and reports
// on the result channel.  Must run as a goroutine.
func (v *validator) validateHandler() {
out:
	for {
		select {
		case item := <-v.validateChan:
			vm, err := txscript.NewEngine(item.pkScript, v.tx,
				item.inIdx, v.flags, v.sigCache, v.sigHashes,
				item.amount)
			if err != nil {
				v.sendResult(fmt.Errorf(
					"failed to parse input %s:%d: %v",
					v.tx.TxHash(), item.inIdx, err))
				break out
			}
			if err := vm.Execute(); err != nil {
				v.sendResult(fmt.Errorf(
					"failed to validate input %s:%d: %v",
					v.tx.TxHash(), item.inIdx, err))
				break out
			}
			v.sendResult(nil)

		case <-v.quitChan:
			break out
		}
	}
}

// validate runs the items through a bounded pool of handler goroutines
// and returns the first failure, if any.
func (v *validator) validate(items []*valItem) error {
	if len(items) == 0 {
		return nil
	}

	maxGoRoutines := runtime.NumCPU() * 3
	if maxGoRoutines <= 0 {
		maxGoRoutines = 1
	}
	if maxGoRoutines > len(items) {
		maxGoRoutines = len(items)
	}
	for i := 0; i < maxGoRoutines; i++ {
		go v.validateHandler()
	}

	// Feed items while draining results.  The quit channel is closed on
	// the first error so every handler exits regardless of which input
	// failed.
	numItems := len(items)
	currentItem := 0
	processedItems := 0
	for processedItems < numItems {
		var validateChan chan *valItem
		var item *valItem
		if currentItem < numItems {
			validateChan = v.validateChan
			item = items[currentItem]
		}

		select {
		case validateChan <- item:
			currentItem++

		case err := <-v.resultChan:
			processedItems++
			if err != nil {
				close(v.quitChan)
				return err
			}
		}
	}

	close(v.quitChan)
	return nil
}

// Verifier turns txscript engines into the ledger's pluggable script
// check.  The signature and hash caches are shared across calls, so one
// Verifier should be reused rather than built per transaction.
type Verifier struct {
	flags     txscript.ScriptFlags
	sigCache  *txscript.SigCache
	hashCache *txscript.HashCache
}

// NewVerifier returns a Verifier executing scripts under the given
// flags.
func NewVerifier(flags txscript.ScriptFlags) *Verifier {
	return &Verifier{
		flags:     flags,
		sigCache:  txscript.NewSigCache(10000),
		hashCache: txscript.NewHashCache(10000),
	}
}

// VerifyScript executes one input's scripts against the output it
// spends.  It satisfies ledger.ScriptVerify.
func (vf *Verifier) VerifyScript(pkScript []byte, amount int64,
	tx *wire.MsgTx, inIdx int) error {

	vm, err := txscript.NewEngine(pkScript, tx, inIdx, vf.flags,
		vf.sigCache, vf.sigHashes(tx), amount)
	if err != nil {
		return err
	}
	return vm.Execute()
}

// CheckVertex validates the scripts of every resolved input of v on a
// worker pool.  Structural validity is the vertex's own business; an
// unresolved prevout fails here too, since there is nothing to execute
// against.
func (vf *Verifier) CheckVertex(v *ledger.Vertex) error {
	tx, err := v.MsgTx()
	if err != nil {
		return err
	}

	prevouts := v.Prevouts()
	items := make([]*valItem, 0, len(prevouts))
	for i := range prevouts {
		out := prevouts[i].Output()
		if out == nil {
			return fmt.Errorf("input %d of %s spends an unresolved output",
				prevouts[i].Index, v.TxID())
		}
		items = append(items, &valItem{
			inIdx:    int(prevouts[i].Index),
			pkScript: out.PkScript,
			amount:   out.Value,
		})
	}

	val := &validator{
		validateChan: make(chan *valItem),
		quitChan:     make(chan struct{}),
		resultChan:   make(chan error),
		flags:        vf.flags,
		tx:           tx,
		sigCache:     vf.sigCache,
		sigHashes:    vf.sigHashes(tx),
	}
	return val.validate(items)
}

// sigHashes returns the cached segwit sighash midstate for tx, keeping
// it out of the picture entirely when segwit isn't in the flags.
func (vf *Verifier) sigHashes(tx *wire.MsgTx) *txscript.TxSigHashes {
	segwitActive := vf.flags&txscript.ScriptVerifyWitness == txscript.ScriptVerifyWitness
	if !segwitActive || !tx.HasWitness() {
		return nil
	}
	hash := tx.TxHash()
	if !vf.hashCache.ContainsHashes(&hash) {
		vf.hashCache.AddSigHashes(tx)
	}
	cached, _ := vf.hashCache.GetSigHashes(&hash)
	return cached
}
