// Package store is a leveldb-backed Timechain provider.  It ingests
// whole checked blocks and answers the ledger's four read queries from
// its own indexes; broadcast lands transactions in a local mempool
// bucket.
package store

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
	"github.com/syndtr/goleveldb/leveldb"
	ldbutil "github.com/syndtr/goleveldb/leveldb/util"

	"github.com/spvtally/tally/chain"
	"github.com/spvtally/tally/ledger"
	"github.com/spvtally/tally/merkle"
)

// Row key prefixes.  Heights are big-endian so the height index
// iterates in chain order.
const (
	keyHeader  = 'H' // H + block hash -> height (4B) + 80B header
	keyHeight  = 'N' // N + height (4B) -> block hash
	keyBlock   = 'B' // B + block hash -> raw block
	keyTx      = 'T' // T + txid -> block hash (32B) + tx index (4B)
	keyMempool = 'M' // M + txid -> raw tx
)

// DB implements ledger.Timechain over a single leveldb database.
type DB struct {
	ldb *leveldb.DB
}

var _ ledger.Timechain = (*DB)(nil)

// Open opens (creating if needed) the store at path.
func Open(path string) (*DB, error) {
	ldb, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %v", path, err)
	}
	return &DB{ldb: ldb}, nil
}

// Close releases the underlying database.
func (s *DB) Close() error {
	return s.ldb.Close()
}

func hashKey(prefix byte, hash chainhash.Hash) []byte {
	k := make([]byte, 1+chainhash.HashSize)
	k[0] = prefix
	copy(k[1:], hash[:])
	return k
}

func heightKey(height int32) []byte {
	k := make([]byte, 5)
	k[0] = keyHeight
	binary.BigEndian.PutUint32(k[1:], uint32(height))
	return k
}

// PutBlock checks a raw block and indexes it at the given height: the
// header row, the height index, the raw block, and a lookup row per
// transaction.  Transactions that were sitting in the mempool are
// promoted out of it.
func (s *DB) PutBlock(height int32, raw []byte) error {
	if err := chain.CheckBlock(raw); err != nil {
		return err
	}
	blk, err := chain.DecodeBlock(raw)
	if err != nil {
		return err
	}
	blockHash := blk.BlockHash()

	batch := new(leveldb.Batch)

	hdrRow := make([]byte, 4+chain.HeaderLen)
	binary.BigEndian.PutUint32(hdrRow[:4], uint32(height))
	hdr := chain.Header{BlockHeader: blk.Header, Height: height}
	copy(hdrRow[4:], hdr.Bytes())
	batch.Put(hashKey(keyHeader, blockHash), hdrRow)
	batch.Put(heightKey(height), blockHash[:])
	batch.Put(hashKey(keyBlock, blockHash), raw)

	for i, tx := range blk.Transactions {
		txid := tx.TxHash()
		txRow := make([]byte, chainhash.HashSize+4)
		copy(txRow, blockHash[:])
		binary.BigEndian.PutUint32(txRow[chainhash.HashSize:], uint32(i))
		batch.Put(hashKey(keyTx, txid), txRow)
		batch.Delete(hashKey(keyMempool, txid))
	}

	if err := s.ldb.Write(batch, nil); err != nil {
		return fmt.Errorf("index block %s: %v", blockHash, err)
	}
	log.Infof("indexed block %s at height %d (%d txs)",
		blockHash, height, len(blk.Transactions))
	return nil
}

// Headers walks the height index from sinceHeight up.
func (s *DB) Headers(sinceHeight int32) ([]chain.Header, error) {
	if sinceHeight < 0 {
		sinceHeight = 0
	}
	iter := s.ldb.NewIterator(&ldbutil.Range{
		Start: heightKey(sinceHeight),
		Limit: []byte{keyHeight + 1},
	}, nil)
	defer iter.Release()

	var headers []chain.Header
	for iter.Next() {
		var hash chainhash.Hash
		copy(hash[:], iter.Value())
		hdr, err := s.Header(hash)
		if err != nil {
			return nil, err
		}
		headers = append(headers, hdr)
	}
	return headers, iter.Error()
}

// Header resolves a header row; the zero header when unknown.
func (s *DB) Header(hash chainhash.Hash) (chain.Header, error) {
	row, err := s.ldb.Get(hashKey(keyHeader, hash), nil)
	if err == leveldb.ErrNotFound {
		return chain.Header{}, nil
	}
	if err != nil {
		return chain.Header{}, fmt.Errorf("header %s: %v", hash, err)
	}
	if len(row) != 4+chain.HeaderLen {
		return chain.Header{}, fmt.Errorf("header row for %s is %d bytes", hash, len(row))
	}
	hdr, err := chain.DecodeHeader(row[4:])
	if err != nil {
		return chain.Header{}, err
	}
	hdr.Height = int32(binary.BigEndian.Uint32(row[:4]))
	return hdr, nil
}

// Block returns the stored raw block; nil when unknown.
func (s *DB) Block(hash chainhash.Hash) ([]byte, error) {
	raw, err := s.ldb.Get(hashKey(keyBlock, hash), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("block %s: %v", hash, err)
	}
	return raw, nil
}

// Transaction resolves a txid: a confirmed entry (proof rebuilt from
// the stored block) when mined, an unconfirmed entry when in the
// mempool, the not-found sentinel otherwise.
func (s *DB) Transaction(txid chainhash.Hash) (ledger.DoubleEntry, error) {
	row, err := s.ldb.Get(hashKey(keyTx, txid), nil)
	switch {
	case err == leveldb.ErrNotFound:
		return s.mempoolEntry(txid)
	case err != nil:
		return ledger.DoubleEntry{}, fmt.Errorf("tx %s: %v", txid, err)
	case len(row) != chainhash.HashSize+4:
		return ledger.DoubleEntry{}, fmt.Errorf("tx row for %s is %d bytes", txid, len(row))
	}

	var blockHash chainhash.Hash
	copy(blockHash[:], row[:chainhash.HashSize])
	txIndex := binary.BigEndian.Uint32(row[chainhash.HashSize:])

	raw, err := s.Block(blockHash)
	if err != nil {
		return ledger.DoubleEntry{}, err
	}
	if raw == nil {
		return ledger.DoubleEntry{}, fmt.Errorf("tx %s indexed in missing block %s", txid, blockHash)
	}
	txs, err := chain.Transactions(raw)
	if err != nil {
		return ledger.DoubleEntry{}, err
	}
	if uint64(txIndex) >= uint64(len(txs)) {
		return ledger.DoubleEntry{}, fmt.Errorf("tx %s indexed at %d of %d in block %s",
			txid, txIndex, len(txs), blockHash)
	}

	proof, err := merkle.Prove(chain.TxIDs(txs), uint64(txIndex))
	if err != nil {
		return ledger.DoubleEntry{}, err
	}
	hdr, err := s.Header(blockHash)
	if err != nil {
		return ledger.DoubleEntry{}, err
	}

	var buf bytes.Buffer
	if err := txs[txIndex].Serialize(&buf); err != nil {
		return ledger.DoubleEntry{}, err
	}
	return ledger.NewConfirmed(buf.Bytes(), proof, hdr), nil
}

// mempoolEntry answers Transaction from the mempool bucket.
func (s *DB) mempoolEntry(txid chainhash.Hash) (ledger.DoubleEntry, error) {
	raw, err := s.ldb.Get(hashKey(keyMempool, txid), nil)
	if err == leveldb.ErrNotFound {
		return ledger.DoubleEntry{}, nil
	}
	if err != nil {
		return ledger.DoubleEntry{}, fmt.Errorf("mempool tx %s: %v", txid, err)
	}
	return ledger.NewUnconfirmed(raw), nil
}

// Broadcast accepts a structurally sane transaction into the mempool
// bucket.  A rejection is an outcome, not an error.
func (s *DB) Broadcast(raw []byte) (bool, error) {
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		log.Debugf("rejecting broadcast: %v", err)
		return false, nil
	}
	if err := blockchain.CheckTransactionSanity(btcutil.NewTx(&tx)); err != nil {
		log.Debugf("rejecting broadcast of %s: %v", tx.TxHash(), err)
		return false, nil
	}
	txid := tx.TxHash()
	if err := s.ldb.Put(hashKey(keyMempool, txid), raw, nil); err != nil {
		return false, fmt.Errorf("store tx %s: %v", txid, err)
	}
	log.Infof("accepted tx %s into the mempool", txid)
	return true, nil
}
