package store

import (
	"bytes"
	"testing"
)

func TestSealUnsealRoundtrip(t *testing.T) {
	t.Parallel()

	secret, err := NewSecret()
	if err != nil {
		t.Fatalf("NewSecret: %v", err)
	}
	plain := []byte(`{"id":"u-1","email":"a@example.org"}`)

	sealed, err := Seal(secret, plain)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Contains(sealed, []byte("example.org")) {
		t.Fatal("plaintext visible in sealed blob")
	}

	got, err := Unseal(secret, sealed)
	if err != nil {
		t.Fatalf("Unseal: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("roundtrip mismatch: %q", got)
	}
}

func TestUnseal_WrongSecret(t *testing.T) {
	t.Parallel()

	s1, _ := NewSecret()
	s2, _ := NewSecret()
	sealed, err := Seal(s1, []byte("payload"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := Unseal(s2, sealed); err == nil {
		t.Fatal("want failure with rotated secret")
	}
}

func TestUnseal_Truncated(t *testing.T) {
	t.Parallel()

	s, _ := NewSecret()
	if _, err := Unseal(s, []byte("short")); err == nil {
		t.Fatal("want failure on truncated blob")
	}
}

func TestSeal_NonceUnique(t *testing.T) {
	t.Parallel()

	s, _ := NewSecret()
	a, _ := Seal(s, []byte("x"))
	b, _ := Seal(s, []byte("x"))
	if bytes.Equal(a, b) {
		t.Fatal("two seals of the same plaintext must differ")
	}
}
