// Package wif is the human-readable key and address text codec: WIF
// (base58check) private keys and bech32 p2wpkh addresses.
package wif

import (
	"fmt"

	"github.com/btcsuite/btcutil/base58"
)

// SecretLen is the raw private key size.
const SecretLen = 32

// compressedMarker is the suffix byte saying the key's public key
// should be serialized compressed.
const compressedMarker = 0x01

// WIF is a decoded private key: network prefix byte, the 32-byte
// secret, and whether the corresponding public key is compressed.
type WIF struct {
	Prefix     byte
	Secret     [SecretLen]byte
	Compressed bool
}

// Decode parses a WIF string: the whole buffer is base58check decoded
// into prefix byte + 32-byte secret + optional compressed marker.
func Decode(s string) (*WIF, error) {
	payload, prefix, err := base58.CheckDecode(s)
	if err != nil {
		return nil, err
	}
	w := &WIF{Prefix: prefix}
	switch len(payload) {
	case SecretLen:
	case SecretLen + 1:
		if payload[SecretLen] != compressedMarker {
			return nil, fmt.Errorf("bad key suffix 0x%02x", payload[SecretLen])
		}
		w.Compressed = true
	default:
		return nil, fmt.Errorf("key payload of %d bytes", len(payload))
	}
	copy(w.Secret[:], payload[:SecretLen])
	return w, nil
}

// Encode builds the WIF string for a secret.
func Encode(prefix byte, secret [SecretLen]byte, compressed bool) string {
	data := make([]byte, SecretLen, SecretLen+1)
	copy(data, secret[:])
	if compressed {
		data = append(data, compressedMarker)
	}
	return base58.CheckEncode(data, prefix)
}

// String re-encodes the key.
func (w *WIF) String() string {
	return Encode(w.Prefix, w.Secret, w.Compressed)
}
