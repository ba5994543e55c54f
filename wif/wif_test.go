package wif

import (
	"testing"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil"
	"github.com/btcsuite/btcutil/base58"
)

func testSecret() [SecretLen]byte {
	var s [SecretLen]byte
	for i := range s {
		s[i] = byte(i*7 + 1)
	}
	return s
}

func TestWIFRoundTrip(t *testing.T) {
	secret := testSecret()
	for _, compressed := range []bool{false, true} {
		encoded := Encode(0x80, secret, compressed)
		w, err := Decode(encoded)
		if err != nil {
			t.Fatalf("compressed=%v: %v", compressed, err)
		}
		if w.Prefix != 0x80 || w.Secret != secret || w.Compressed != compressed {
			t.Fatalf("compressed=%v: round trip mismatch: %+v", compressed, w)
		}
		if w.String() != encoded {
			t.Fatalf("re-encode differs: %s vs %s", w.String(), encoded)
		}
	}
}

// Encode must agree byte for byte with btcutil's own WIF handling.
func TestWIFMatchesBtcutil(t *testing.T) {
	secret := testSecret()
	priv, _ := btcec.PrivKeyFromBytes(btcec.S256(), secret[:])

	for _, compressed := range []bool{false, true} {
		reference, err := btcutil.NewWIF(priv, &chaincfg.MainNetParams, compressed)
		if err != nil {
			t.Fatal(err)
		}
		if got := Encode(chaincfg.MainNetParams.PrivateKeyID, secret, compressed); got != reference.String() {
			t.Fatalf("compressed=%v:\ngot  %s\nwant %s", compressed, got, reference.String())
		}

		w, err := Decode(reference.String())
		if err != nil {
			t.Fatal(err)
		}
		if w.Secret != secret || w.Compressed != compressed {
			t.Fatalf("compressed=%v: decoded %+v", compressed, w)
		}
	}
}

func TestWIFRejects(t *testing.T) {
	secret := testSecret()

	// flipped character breaks the checksum
	encoded := []byte(Encode(0x80, secret, true))
	if encoded[10] == 'a' {
		encoded[10] = 'b'
	} else {
		encoded[10] = 'a'
	}
	if _, err := Decode(string(encoded)); err == nil {
		t.Fatal("corrupted string decoded")
	}

	// wrong compressed marker
	payload := append(secret[:], 0x02)
	if _, err := Decode(base58.CheckEncode(payload, 0x80)); err == nil {
		t.Fatal("bad suffix accepted")
	}

	// wrong payload size
	if _, err := Decode(base58.CheckEncode(secret[:16], 0x80)); err == nil {
		t.Fatal("short secret accepted")
	}
}

func TestP2WPKHRoundTrip(t *testing.T) {
	priv, _ := btcec.PrivKeyFromBytes(btcec.S256(), func() []byte { s := testSecret(); return s[:] }())
	pkh := Hash160(priv.PubKey().SerializeCompressed())

	// Hash160 must match the ecosystem's
	if ref := btcutil.Hash160(priv.PubKey().SerializeCompressed()); string(ref) != string(pkh[:]) {
		t.Fatalf("Hash160 mismatch: %x vs %x", pkh, ref)
	}

	addr, err := EncodeP2WPKH("bc", pkh)
	if err != nil {
		t.Fatal(err)
	}
	back, err := DecodeP2WPKH(addr)
	if err != nil {
		t.Fatal(err)
	}
	if back != pkh {
		t.Fatalf("address round trip: %x vs %x", back, pkh)
	}

	if _, err := DecodeP2WPKH("bc1qqqqq"); err == nil {
		t.Fatal("garbage address decoded")
	}
}
