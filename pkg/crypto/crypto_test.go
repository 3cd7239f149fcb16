// Copyright 2025 Covenant Protocol
//
// Crypto Primitive Tests

package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestSignVerify_Roundtrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("failed to generate key pair: %v", err)
	}

	msg := []byte("the quick brown fox")
	sig, err := Sign(msg, kp.PrivateKey)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	if len(sig) != 64 {
		t.Errorf("signature length mismatch: got %d, want 64", len(sig))
	}
	if !Verify(msg, sig, kp.PublicKey) {
		t.Error("signature did not verify")
	}
}

func TestSign_Deterministic(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("failed to generate key pair: %v", err)
	}

	msg := []byte("deterministic message")
	sig1, _ := Sign(msg, kp.PrivateKey)
	sig2, _ := Sign(msg, kp.PrivateKey)
	if !bytes.Equal(sig1, sig2) {
		t.Error("Ed25519 signatures over the same message differ")
	}
}

func TestVerify_Tampering(t *testing.T) {
	kp, _ := GenerateKeyPair()
	msg := []byte("original message")
	sig, _ := Sign(msg, kp.PrivateKey)

	// Tampered message
	tampered := []byte("original messagE")
	if Verify(tampered, sig, kp.PublicKey) {
		t.Error("tampered message verified")
	}

	// Tampered signature
	badSig := make([]byte, len(sig))
	copy(badSig, sig)
	badSig[0] ^= 0x01
	if Verify(msg, badSig, kp.PublicKey) {
		t.Error("tampered signature verified")
	}

	// Wrong key
	other, _ := GenerateKeyPair()
	if Verify(msg, sig, other.PublicKey) {
		t.Error("signature verified with wrong public key")
	}
}

func TestVerify_MalformedInputs(t *testing.T) {
	kp, _ := GenerateKeyPair()
	msg := []byte("msg")
	sig, _ := Sign(msg, kp.PrivateKey)

	if Verify(msg, sig[:40], kp.PublicKey) {
		t.Error("truncated signature verified")
	}
	if Verify(msg, sig, kp.PublicKey[:16]) {
		t.Error("truncated public key verified")
	}
	if Verify(msg, nil, kp.PublicKey) {
		t.Error("nil signature verified")
	}
}

func TestKeyPairFromSeed_Deterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{0x42}, 32)
	kp1, err := KeyPairFromSeed(seed)
	if err != nil {
		t.Fatalf("failed to derive key pair: %v", err)
	}
	kp2, _ := KeyPairFromSeed(seed)
	if kp1.PublicKeyHex != kp2.PublicKeyHex {
		t.Error("public key derivation is not deterministic")
	}
	if _, err := KeyPairFromSeed(seed[:16]); err == nil {
		t.Error("expected error for short seed")
	}
}

func TestCanonicalizeJSON_KeyOrderInvariance(t *testing.T) {
	a := map[string]interface{}{"a": 1.0, "b": 2.0}
	b := map[string]interface{}{"b": 2.0, "a": 1.0}

	ca, err := CanonicalizeJSON(a)
	if err != nil {
		t.Fatalf("canonicalize failed: %v", err)
	}
	cb, _ := CanonicalizeJSON(b)
	if ca != cb {
		t.Errorf("canonical forms differ: %s vs %s", ca, cb)
	}
	if ca != `{"a":1,"b":2}` {
		t.Errorf("unexpected canonical form: %s", ca)
	}
}

func TestCanonicalizeJSON_Nesting(t *testing.T) {
	v := map[string]interface{}{
		"z": map[string]interface{}{"b": true, "a": nil},
		"a": []interface{}{"x", 2.5, false},
	}
	got, err := CanonicalizeJSON(v)
	if err != nil {
		t.Fatalf("canonicalize failed: %v", err)
	}
	want := `{"a":["x",2.5,false],"z":{"a":null,"b":true}}`
	if got != want {
		t.Errorf("canonical form mismatch: got %s, want %s", got, want)
	}
}

func TestCanonicalizeJSON_NoHTMLEscaping(t *testing.T) {
	got, err := CanonicalizeJSON(map[string]interface{}{"k": "<a>&</a>"})
	if err != nil {
		t.Fatalf("canonicalize failed: %v", err)
	}
	if got != `{"k":"<a>&</a>"}` {
		t.Errorf("HTML characters were escaped: %s", got)
	}
}

func TestCanonicalizeJSON_ControlEscapes(t *testing.T) {
	got, err := CanonicalizeJSON("line1\nline2\ttab\x01")
	if err != nil {
		t.Fatalf("canonicalize failed: %v", err)
	}
	want := `"line1\nline2\ttab"`
	if got != want {
		t.Errorf("string escaping mismatch: got %s, want %s", got, want)
	}
}

func TestCanonicalizeJSON_Numbers(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{1, "1"},
		{-1, "-1"},
		{1.5, "1.5"},
		{100000, "100000"},
		{0.1, "0.1"},
	}
	for _, tc := range cases {
		got, err := CanonicalizeJSON(tc.in)
		if err != nil {
			t.Fatalf("canonicalize %v failed: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("number form mismatch for %v: got %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestSHA256Object_FieldOrderIndependent(t *testing.T) {
	h1, err := SHA256Object(map[string]interface{}{"x": 1.0, "y": "v"})
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	h2, _ := SHA256Object(map[string]interface{}{"y": "v", "x": 1.0})
	if h1 != h2 {
		t.Error("object hashes differ across key order")
	}
	if len(h1) != 64 {
		t.Errorf("hash length mismatch: got %d, want 64", len(h1))
	}
}

func TestHex_Roundtrip(t *testing.T) {
	data := []byte{0x00, 0x01, 0xab, 0xff}
	enc := ToHex(data)
	if enc != "0001abff" {
		t.Errorf("hex encoding mismatch: %s", enc)
	}
	dec, err := FromHex(enc)
	if err != nil {
		t.Fatalf("hex decode failed: %v", err)
	}
	if !bytes.Equal(dec, data) {
		t.Error("hex roundtrip mismatch")
	}
}

func TestFromHex_Rejections(t *testing.T) {
	if _, err := FromHex("abc"); err == nil {
		t.Error("odd-length hex accepted")
	}
	if _, err := FromHex("zz"); err == nil {
		t.Error("non-hex characters accepted")
	}
}

func TestBase64URL_Roundtrip(t *testing.T) {
	for _, data := range [][]byte{{}, {0xfb}, {0xfb, 0xff}, {0xfb, 0xff, 0xbf}, []byte("hello world")} {
		enc := Base64URLEncode(data)
		if strings.ContainsAny(enc, "+/=") {
			t.Errorf("base64url output contains forbidden characters: %s", enc)
		}
		dec, err := Base64URLDecode(enc)
		if err != nil {
			t.Fatalf("base64url decode failed: %v", err)
		}
		if !bytes.Equal(dec, data) {
			t.Errorf("base64url roundtrip mismatch for %x", data)
		}
	}
}

func TestBase64URLDecode_AcceptsPadding(t *testing.T) {
	dec, err := Base64URLDecode("aGVsbG8=")
	if err != nil {
		t.Fatalf("padded base64url rejected: %v", err)
	}
	if string(dec) != "hello" {
		t.Errorf("padded decode mismatch: %s", dec)
	}
}

func TestConstantTimeEqual(t *testing.T) {
	a := []byte("secret-value")
	b := []byte("secret-value")
	c := []byte("secret-valuX")

	if !ConstantTimeEqual(a, b) {
		t.Error("equal buffers compared unequal")
	}
	if ConstantTimeEqual(a, c) {
		t.Error("unequal buffers compared equal")
	}
	if ConstantTimeEqual(a, a[:5]) {
		t.Error("length mismatch compared equal")
	}
}

func TestGenerateNonce_Size(t *testing.T) {
	n1, err := GenerateNonce()
	if err != nil {
		t.Fatalf("nonce generation failed: %v", err)
	}
	if len(n1) != NonceSize {
		t.Errorf("nonce size mismatch: got %d, want %d", len(n1), NonceSize)
	}
	n2, _ := GenerateNonce()
	if bytes.Equal(n1, n2) {
		t.Error("two nonces are identical")
	}
}

func TestGenerateID_Length(t *testing.T) {
	id, err := GenerateID(0)
	if err != nil {
		t.Fatalf("id generation failed: %v", err)
	}
	if len(id) != DefaultIDBytes*2 {
		t.Errorf("default id length mismatch: got %d", len(id))
	}
	id8, _ := GenerateID(8)
	if len(id8) != 16 {
		t.Errorf("custom id length mismatch: got %d", len(id8))
	}
}

func TestTimestamp_Format(t *testing.T) {
	ts := Timestamp()
	if !strings.HasSuffix(ts, "Z") {
		t.Errorf("timestamp missing Z suffix: %s", ts)
	}
	if len(ts) != len("2025-01-15T12:00:00.000Z") {
		t.Errorf("timestamp length mismatch: %s", ts)
	}
	if _, err := ParseTimestamp(ts); err != nil {
		t.Errorf("generated timestamp does not parse: %v", err)
	}
}
