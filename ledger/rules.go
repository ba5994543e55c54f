package ledger

import (
	"github.com/btcsuite/btcd/wire"
)

// MaxSigOpsPerTx is bitcoin's per-transaction signature operation
// ceiling, the default for StandardRules.
const MaxSigOpsPerTx = 20000

// ScriptVerify executes one input's scripts against the output it
// spends and returns nil when the spend condition is satisfied.  An
// implementation backed by a real script engine lives in the scriptval
// package; the core itself stays decoupled from script execution.
type ScriptVerify func(pkScript []byte, amount int64, tx *wire.MsgTx, inIdx int) error

// Rules are the external protocol parameters vertex validity depends
// on.  They're passed in rather than baked into the core: the sigop
// ceiling is a chain parameter, and script checking is optional.
type Rules struct {
	// MaxSigOps bounds a transaction's signature operation count.
	MaxSigOps int

	// VerifyScript, when non-nil, is run for every input.  Nil means
	// spend conditions are not checked.
	VerifyScript ScriptVerify
}

// StandardRules checks sigops against the bitcoin ceiling and leaves
// scripts unchecked.
var StandardRules = Rules{MaxSigOps: MaxSigOpsPerTx}
