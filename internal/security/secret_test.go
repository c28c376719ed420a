package security

import (
	"strings"
	"testing"
)

func TestEncryptDecryptValueRoundTrip(t *testing.T) {
	enc, err := EncryptValue("bearer-token", "pass")
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}
	if strings.Contains(enc, "bearer-token") {
		t.Fatal("ciphertext leaks plaintext")
	}
	got, err := DecryptValue(enc, "pass")
	if err != nil {
		t.Fatalf("DecryptValue: %v", err)
	}
	if got != "bearer-token" {
		t.Errorf("DecryptValue = %q, want %q", got, "bearer-token")
	}
}

func TestDecryptValueWrongPassphrase(t *testing.T) {
	enc, err := EncryptValue("secret", "right")
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}
	if _, err := DecryptValue(enc, "wrong"); err == nil {
		t.Error("expected error with wrong passphrase")
	}
}

func TestDecryptValueInvalidInput(t *testing.T) {
	for _, in := range []string{"no-colon", "zz:00", "00:zz", "00:00"} {
		if _, err := DecryptValue(in, "pass"); err == nil {
			t.Errorf("DecryptValue(%q) should fail", in)
		}
	}
}

func TestSealerRoundTrip(t *testing.T) {
	s, err := NewSealer("pass")
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	defer s.Zeroize()

	sealed, err := s.Seal("tok")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !IsSealed(sealed) {
		t.Fatalf("sealed value %q lacks prefix", sealed)
	}

	other, _ := s.Seal("tok")
	if sealed == other {
		t.Error("two seals of the same plaintext should differ")
	}

	got, err := s.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got != "tok" {
		t.Errorf("Open = %q, want tok", got)
	}
}

func TestSealerOpensValuesFromOtherInstances(t *testing.T) {
	a, _ := NewSealer("pass")
	b, _ := NewSealer("pass")

	sealed, err := a.Seal("shared")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	got, err := b.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got != "shared" {
		t.Errorf("Open = %q", got)
	}

	enc, _ := EncryptValue("plain format", "pass")
	got, err = b.Open(SecretPrefix + enc)
	if err != nil || got != "plain format" {
		t.Errorf("Open(EncryptValue) = %q, %v", got, err)
	}
}

func TestSealerPlaintextPassthrough(t *testing.T) {
	s, _ := NewSealer("pass")
	got, err := s.Open("not encrypted")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got != "not encrypted" {
		t.Errorf("Open = %q", got)
	}
}

func TestNewSealerEmptyPassphrase(t *testing.T) {
	if _, err := NewSealer(""); err == nil {
		t.Error("expected error for empty passphrase")
	}
}
