// Package ledger is the verification core of an SPV client.  It never
// sees full blocks: a transaction is proven against the chain with just
// its raw bytes, a merkle proof and the containing header (a
// DoubleEntry), and a transaction's inputs are checked by resolving the
// transactions they spend through an abstract provider (a Vertex).
package ledger

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/spvtally/tally/chain"
)

// Ledger is the read boundary into whatever holds the chain data: a
// local database, a remote peer, anything that can answer these four
// queries.  Calls may block on I/O and must be safe for concurrent use.
//
// "Not found" is never an error: an unknown txid resolves to the
// not-found DoubleEntry sentinel, an unknown hash to a zero header or
// nil block bytes.  Errors are reserved for genuine I/O faults.
type Ledger interface {
	// Headers returns the chain's headers from sinceHeight on, in
	// ascending height order.  Empty past the known tip.
	Headers(sinceHeight int32) ([]chain.Header, error)

	// Transaction resolves a txid to its entry: confirmed if known to
	// be mined, unconfirmed if only known loose.
	Transaction(txid chainhash.Hash) (DoubleEntry, error)

	// Header resolves a block header by its hash.
	Header(hash chainhash.Hash) (chain.Header, error)

	// Block returns the raw serialized block for a header hash.
	Block(hash chainhash.Hash) ([]byte, error)
}

// Broadcaster is the write capability: submit a raw transaction (or
// block) to the network.  The bool is local acceptance only, it says
// nothing about eventual confirmation.  Kept separate from Ledger so
// read-only consumers don't depend on write access.
type Broadcaster interface {
	Broadcast(raw []byte) (bool, error)
}

// Timechain is a ledger that can also broadcast.
type Timechain interface {
	Ledger
	Broadcaster
}

// MakeVertex resolves every input of e to the transaction it spends and
// bundles the results into a Vertex.  Each distinct referenced txid is
// looked up once; the lookups are independent so they run concurrently,
// and the map assembly is keyed by txid so completion order doesn't
// matter.
//
// An unknown txid resolves to the not-found sentinel rather than
// aborting: validity is judged later by Vertex.Valid.  Only a provider
// I/O fault comes back as an error, and even then the vertex is
// returned with sentinels in the failed slots.
func MakeVertex(lgr Ledger, e DoubleEntry) (Vertex, error) {
	ins := e.Inputs()
	prev := make(map[chainhash.Hash]DoubleEntry, len(ins))

	refs := make([]chainhash.Hash, 0, len(ins))
	for _, in := range ins {
		ref := in.PreviousOutPoint.Hash
		if _, ok := prev[ref]; ok {
			continue
		}
		prev[ref] = DoubleEntry{}
		refs = append(refs, ref)
	}

	type lookup struct {
		id    chainhash.Hash
		entry DoubleEntry
		err   error
	}
	results := make(chan lookup, len(refs))
	for _, id := range refs {
		go func(id chainhash.Hash) {
			entry, err := lgr.Transaction(id)
			results <- lookup{id: id, entry: entry, err: err}
		}(id)
	}

	var firstErr error
	for range refs {
		r := <-results
		if r.err != nil {
			log.Warnf("resolving prev tx %s: %v", r.id, r.err)
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		prev[r.id] = r.entry
	}

	return Vertex{DoubleEntry: e, Previous: prev}, firstErr
}
