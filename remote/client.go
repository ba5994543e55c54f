package remote

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/go-socks/socks"

	"github.com/spvtally/tally/chain"
	"github.com/spvtally/tally/ledger"
)

// Client is a ledger.Timechain backed by a remote peer.  One request is
// in flight at a time; the connection mutex makes the client safe for
// concurrent callers.
type Client struct {
	mtx  sync.Mutex
	conn net.Conn
}

var _ ledger.Timechain = (*Client)(nil)

// Dial connects to a remote timechain.  A non-empty proxyAddr routes
// the connection through a SOCKS5 proxy.
func Dial(addr, proxyAddr string) (*Client, error) {
	var conn net.Conn
	var err error
	if proxyAddr != "" {
		proxy := &socks.Proxy{Addr: proxyAddr}
		conn, err = proxy.Dial("tcp", addr)
	} else {
		conn, err = net.Dial("tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %v", addr, err)
	}
	log.Infof("connected to timechain %s", addr)
	return &Client{conn: conn}, nil
}

// Close drops the connection.
func (c *Client) Close() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.conn.Close()
}

// roundTrip sends one request and reads the response frame.
func (c *Client) roundTrip(op byte, payload []byte) ([]byte, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if _, err := c.conn.Write(append([]byte{op}, payload...)); err != nil {
		return nil, fmt.Errorf("send op %d: %v", op, err)
	}
	body, err := readFrame(c.conn)
	if err != nil {
		return nil, fmt.Errorf("read op %d response: %v", op, err)
	}
	return body, nil
}

// Headers asks the peer for its headers from sinceHeight on.
func (c *Client) Headers(sinceHeight int32) ([]chain.Header, error) {
	var payload [4]byte
	binary.BigEndian.PutUint32(payload[:], uint32(sinceHeight))
	body, err := c.roundTrip(opHeaders, payload[:])
	if err != nil {
		return nil, err
	}

	r := bytes.NewReader(body)
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, err
	}
	// each header occupies 4 height bytes plus the 80-byte
	// serialization; a count the body can't hold never allocates
	if uint64(count)*(4+chain.HeaderLen) > uint64(r.Len()) {
		return nil, fmt.Errorf("header count %d exceeds %d-byte response",
			count, r.Len())
	}
	headers := make([]chain.Header, 0, count)
	for i := uint32(0); i < count; i++ {
		var height int32
		if err := binary.Read(r, binary.BigEndian, &height); err != nil {
			return nil, err
		}
		var raw [chain.HeaderLen]byte
		if _, err := io.ReadFull(r, raw[:]); err != nil {
			return nil, err
		}
		hdr, err := chain.DecodeHeader(raw[:])
		if err != nil {
			return nil, err
		}
		hdr.Height = height
		headers = append(headers, hdr)
	}
	return headers, nil
}

// Transaction resolves a txid through the peer.
func (c *Client) Transaction(txid chainhash.Hash) (ledger.DoubleEntry, error) {
	body, err := c.roundTrip(opTx, txid[:])
	if err != nil {
		return ledger.DoubleEntry{}, err
	}
	var entry ledger.DoubleEntry
	if err := entry.Deserialize(bytes.NewReader(body)); err != nil {
		return ledger.DoubleEntry{}, fmt.Errorf("decode entry for %s: %v", txid, err)
	}
	return entry, nil
}

// Header resolves a block header through the peer.
func (c *Client) Header(hash chainhash.Hash) (chain.Header, error) {
	body, err := c.roundTrip(opHeader, hash[:])
	if err != nil {
		return chain.Header{}, err
	}
	if len(body) == 0 {
		return chain.Header{}, nil
	}
	if len(body) != 4+chain.HeaderLen {
		return chain.Header{}, fmt.Errorf("header response of %d bytes", len(body))
	}
	hdr, err := chain.DecodeHeader(body[4:])
	if err != nil {
		return chain.Header{}, err
	}
	hdr.Height = int32(binary.BigEndian.Uint32(body[:4]))
	return hdr, nil
}

// Block fetches a raw block through the peer.
func (c *Client) Block(hash chainhash.Hash) ([]byte, error) {
	body, err := c.roundTrip(opBlock, hash[:])
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}
	return body, nil
}

// Broadcast submits a raw transaction to the peer.
func (c *Client) Broadcast(raw []byte) (bool, error) {
	payload := make([]byte, 4+len(raw))
	binary.BigEndian.PutUint32(payload[:4], uint32(len(raw)))
	copy(payload[4:], raw)
	body, err := c.roundTrip(opBroadcast, payload)
	if err != nil {
		return false, err
	}
	return len(body) == 1 && body[0] == 1, nil
}
