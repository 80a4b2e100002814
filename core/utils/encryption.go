package utils

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
	SaltLen             = 16
)

// Encryptor seals small values (cookie values at rest) with XChaCha20-Poly1305.
type Encryptor struct {
	aead cipher.AEAD
}

// NewSalt returns a fresh key-derivation salt for a cookie database.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// NewEncryptorFromPassphrase derives the key with argon2id.
func NewEncryptorFromPassphrase(passphrase string, salt []byte) (*Encryptor, error) {
	if passphrase == "" {
		return nil, errors.New("empty passphrase")
	}
	if len(salt) < SaltLen {
		return nil, fmt.Errorf("salt must be at least %d bytes, got %d", SaltLen, len(salt))
	}
	key := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &Encryptor{aead: aead}, nil
}

func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, []byte, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	ciphertext := e.aead.Seal(nil, nonce, plaintext, nil)
	return nonce, ciphertext, nil
}

func (e *Encryptor) Decrypt(nonce, ciphertext []byte) ([]byte, error) {
	return e.aead.Open(nil, nonce, ciphertext, nil)
}

func (e *Encryptor) EncryptToBlob(plaintext []byte) ([]byte, error) {
	nonce, ct, err := e.Encrypt(plaintext)
	if err != nil {
		return nil, err
	}
	return append(nonce, ct...), nil
}

func (e *Encryptor) DecryptBlob(data []byte) ([]byte, error) {
	ns := e.aead.NonceSize()
	if len(data) < ns {
		return nil, errors.New("ciphertext too short")
	}
	nonce := data[:ns]
	ct := data[ns:]
	return e.Decrypt(nonce, ct)
}
