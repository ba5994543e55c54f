// Package remote serves a Timechain over TCP and consumes one from the
// other side.  The protocol is a plain request/response exchange: a
// 1-byte opcode plus a fixed query payload out, a 4-byte length-
// prefixed response back.
package remote

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Opcodes.
const (
	opHeaders byte = iota + 1
	opTx
	opHeader
	opBlock
	opBroadcast
)

// maxResponse caps what either side will buffer for one message.
// Blocks are the largest payload; 32MB leaves plenty of headroom.
const maxResponse = 32 * 1024 * 1024

// writeFrame sends a length-prefixed message body.
func writeFrame(w io.Writer, body []byte) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(body))); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// readFrame reads one length-prefixed message body.
func readFrame(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	if n > maxResponse {
		return nil, fmt.Errorf("frame of %d bytes exceeds the %d cap", n, maxResponse)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}
