package utils

import (
	"bytes"
	"testing"
)

func TestEncryptorRoundTrip(t *testing.T) {
	salt := bytes.Repeat([]byte{7}, SaltLen)
	enc, err := NewEncryptorFromPassphrase("passphrase", salt)
	if err != nil {
		t.Fatalf("new encryptor: %v", err)
	}
	blob, err := enc.EncryptToBlob([]byte("eyJhbGciOi"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(blob, []byte("eyJhbGciOi")) {
		t.Fatalf("plaintext leaked into blob")
	}
	out, err := enc.DecryptBlob(blob)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(out) != "eyJhbGciOi" {
		t.Fatalf("unexpected plaintext %q", out)
	}

	other, _ := NewEncryptorFromPassphrase("other", salt)
	if _, err := other.DecryptBlob(blob); err == nil {
		t.Fatalf("expected failure with wrong passphrase")
	}
}

func TestEncryptorRejectsShortSalt(t *testing.T) {
	if _, err := NewEncryptorFromPassphrase("p", []byte("short")); err == nil {
		t.Fatalf("expected error for short salt")
	}
}

func TestNewSalt(t *testing.T) {
	a, err := NewSalt()
	if err != nil {
		t.Fatalf("salt: %v", err)
	}
	b, _ := NewSalt()
	if len(a) != SaltLen || bytes.Equal(a, b) {
		t.Fatalf("expected distinct %d-byte salts, got %x and %x", SaltLen, a, b)
	}
	if _, err := NewEncryptorFromPassphrase("p", a); err != nil {
		t.Fatalf("fresh salt rejected: %v", err)
	}
}

func TestValidators(t *testing.T) {
	if err := ValidateEmail("fatou@example.sn"); err != nil {
		t.Fatalf("valid email rejected: %v", err)
	}
	for _, bad := range []string{"", "fatou", "Fatou <fatou@example.sn>"} {
		if err := ValidateEmail(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
	if err := ValidatePassword("12345"); err == nil {
		t.Fatalf("expected short password to be rejected")
	}
	if err := ValidatePassword("secret"); err != nil {
		t.Fatalf("valid password rejected: %v", err)
	}
	if err := ValidateUsername("Fatou Diop"); err != nil {
		t.Fatalf("valid username rejected: %v", err)
	}
	if err := ValidatePhone("+221 77 000 00 00"); err != nil {
		t.Fatalf("valid phone rejected: %v", err)
	}
	if err := ValidateNationalID("1 234"); err == nil {
		t.Fatalf("expected national id with space to be rejected")
	}
}
