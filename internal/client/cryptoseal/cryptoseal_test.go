package cryptoseal

import (
	"bytes"
	"testing"
)

func TestSealRoundTrip(t *testing.T) {
	s := New("cli-linux-9e107d9d")

	plain := []byte("eyJhbGciOiJIUzI1NiJ9.access-token")
	sealed, err := s.Seal(plain)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(sealed, plain) {
		t.Fatal("sealed output contains the plaintext")
	}

	got, err := s.Unseal(sealed)
	if err != nil {
		t.Fatalf("unseal: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("round trip = %q, want %q", got, plain)
	}
}

func TestSealNonceVaries(t *testing.T) {
	s := New("cli-linux-9e107d9d")

	a, err := s.Seal([]byte("same input"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Seal([]byte("same input"))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, b) {
		t.Error("two seals of the same input must differ (random nonce)")
	}
}

func TestUnsealWrongDevice(t *testing.T) {
	sealed, err := New("cli-linux-device-a").Seal([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := New("cli-linux-device-b").Unseal(sealed); err == nil {
		t.Error("unseal with another device's key should fail")
	}
}

func TestUnsealTruncated(t *testing.T) {
	s := New("cli-linux-9e107d9d")
	if _, err := s.Unseal([]byte{1, 2, 3}); err == nil {
		t.Error("unseal of data shorter than a nonce should fail")
	}
}
