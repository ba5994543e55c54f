package remote

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/spvtally/tally/chain"
	"github.com/spvtally/tally/ledger"
)

// Serve answers timechain queries from tc over the listener until the
// halt channel closes.  Each connection gets its own worker.
func Serve(listener net.Listener, tc ledger.Timechain, halt chan struct{}) {
	cons := make(chan net.Conn)
	done := make(chan struct{})
	go acceptConnections(listener, cons, done)

	for {
		select {
		case <-halt:
			// closing the listener makes the next Accept fail, which is
			// how the accept loop learns to exit; keep draining cons so
			// a connection accepted just before the close isn't stuck
			listener.Close()
			for {
				select {
				case con := <-cons:
					go serveWorker(con, tc)
				case <-done:
					return
				}
			}
		case con := <-cons:
			go serveWorker(con, tc)
		}
	}
}

func acceptConnections(listener net.Listener, cons chan net.Conn, done chan struct{}) {
	defer close(done)
	for {
		con, err := listener.Accept()
		if err != nil {
			log.Warnf("accept: %v", err)
			return
		}
		cons <- con
	}
}

// serveWorker answers one connection's queries until it hangs up or
// sends something unreadable.
func serveWorker(c net.Conn, tc ledger.Timechain) {
	defer c.Close()
	log.Debugf("serving %s", c.RemoteAddr())

	var op [1]byte
	for {
		if _, err := io.ReadFull(c, op[:]); err != nil {
			if err != io.EOF {
				log.Debugf("%s: read op: %v", c.RemoteAddr(), err)
			}
			return
		}

		var body []byte
		var err error
		switch op[0] {
		case opHeaders:
			body, err = answerHeaders(c, tc)
		case opTx:
			body, err = answerTx(c, tc)
		case opHeader:
			body, err = answerHeader(c, tc)
		case opBlock:
			body, err = answerBlock(c, tc)
		case opBroadcast:
			body, err = answerBroadcast(c, tc)
		default:
			log.Warnf("%s: unknown op %d", c.RemoteAddr(), op[0])
			return
		}
		if err != nil {
			log.Warnf("%s: op %d: %v", c.RemoteAddr(), op[0], err)
			return
		}
		if err := writeFrame(c, body); err != nil {
			log.Debugf("%s: write response: %v", c.RemoteAddr(), err)
			return
		}
	}
}

func answerHeaders(c net.Conn, tc ledger.Timechain) ([]byte, error) {
	var sinceHeight int32
	if err := binary.Read(c, binary.BigEndian, &sinceHeight); err != nil {
		return nil, err
	}
	headers, err := tc.Headers(sinceHeight)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(len(headers)))
	for i := range headers {
		binary.Write(&buf, binary.BigEndian, headers[i].Height)
		buf.Write(headers[i].Bytes())
	}
	return buf.Bytes(), nil
}

func answerTx(c net.Conn, tc ledger.Timechain) ([]byte, error) {
	var txid chainhash.Hash
	if _, err := io.ReadFull(c, txid[:]); err != nil {
		return nil, err
	}
	entry, err := tc.Transaction(txid)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := entry.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func answerHeader(c net.Conn, tc ledger.Timechain) ([]byte, error) {
	var hash chainhash.Hash
	if _, err := io.ReadFull(c, hash[:]); err != nil {
		return nil, err
	}
	hdr, err := tc.Header(hash)
	if err != nil {
		return nil, err
	}
	if hdr.IsZero() {
		return nil, nil
	}
	body := make([]byte, 4, 4+chain.HeaderLen)
	binary.BigEndian.PutUint32(body, uint32(hdr.Height))
	return append(body, hdr.Bytes()...), nil
}

func answerBlock(c net.Conn, tc ledger.Timechain) ([]byte, error) {
	var hash chainhash.Hash
	if _, err := io.ReadFull(c, hash[:]); err != nil {
		return nil, err
	}
	return tc.Block(hash)
}

func answerBroadcast(c net.Conn, tc ledger.Timechain) ([]byte, error) {
	raw, err := readFrame(c)
	if err != nil {
		return nil, err
	}
	ok, err := tc.Broadcast(raw)
	if err != nil {
		return nil, err
	}
	if ok {
		return []byte{1}, nil
	}
	return []byte{0}, nil
}
