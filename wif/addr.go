package wif

import (
	"crypto/sha256"
	"fmt"

	"github.com/adiabat/bech32"
	"golang.org/x/crypto/ripemd160"
)

// Hash160 is sha256 followed by ripemd160, the standard pubkey-to-
// address digest.
func Hash160(b []byte) [20]byte {
	sha := sha256.Sum256(b)
	rip := ripemd160.New()
	rip.Write(sha[:])
	var out [20]byte
	copy(out[:], rip.Sum(nil))
	return out
}

// EncodeP2WPKH encodes a 20-byte pubkey hash as a bech32 segwit v0
// address under the given human-readable prefix.
func EncodeP2WPKH(hrp string, pkh [20]byte) (string, error) {
	return bech32.SegWitV0Encode(hrp, pkh[:])
}

// DecodeP2WPKH decodes a bech32 p2wpkh address back to the pubkey hash.
// Only v0 20-byte programs qualify; the decoded form is the output
// script (version op, push, program), hence the 22-byte check.
func DecodeP2WPKH(addr string) ([20]byte, error) {
	var pkh [20]byte
	script, err := bech32.SegWitAddressDecode(addr)
	if err != nil {
		return pkh, err
	}
	if len(script) != 22 {
		return pkh, fmt.Errorf("need a bech32 p2wpkh address, %s has %d bytes",
			addr, len(script))
	}
	copy(pkh[:], script[2:])
	return pkh, nil
}
