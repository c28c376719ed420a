package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

// SecretPrefix marks an encrypted value in config files and stores.
const SecretPrefix = "enc:"

// EncryptValue encrypts plaintext with AES-256-GCM under a key derived from
// passphrase via Argon2id. Format: hex(salt) + ":" + hex(nonce+ciphertext).
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return seal(DeriveKey(passphrase, salt), salt, plaintext)
}

// DecryptValue reverses EncryptValue.
func DecryptValue(encrypted, passphrase string) (string, error) {
	salt, data, err := splitSealed(encrypted)
	if err != nil {
		return "", err
	}
	return open(DeriveKey(passphrase, salt), data)
}

// DeriveKey uses Argon2id to derive a 32-byte key from passphrase + salt.
func DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// Sealer encrypts many values under one passphrase. The Argon2id key is
// derived once per salt and cached, which keeps repeated store reads cheap.
type Sealer struct {
	passphrase string

	mu   sync.Mutex
	salt []byte
	keys map[string][]byte // hex(salt) -> key
}

// NewSealer returns a Sealer. The passphrase must not be empty.
func NewSealer(passphrase string) (*Sealer, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase must not be empty")
	}
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return &Sealer{passphrase: passphrase, salt: salt, keys: make(map[string][]byte)}, nil
}

// Seal encrypts plaintext and returns SecretPrefix + the EncryptValue format.
func (s *Sealer) Seal(plaintext string) (string, error) {
	out, err := seal(s.key(s.salt), s.salt, plaintext)
	if err != nil {
		return "", err
	}
	return SecretPrefix + out, nil
}

// Open decrypts a sealed value. Values without SecretPrefix are returned
// unchanged so plaintext written before encryption was enabled still reads.
func (s *Sealer) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	salt, data, err := splitSealed(strings.TrimPrefix(value, SecretPrefix))
	if err != nil {
		return "", err
	}
	return open(s.key(salt), data)
}

// Zeroize clears cached key material.
func (s *Sealer) Zeroize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, key := range s.keys {
		for i := range key {
			key[i] = 0
		}
		delete(s.keys, k)
	}
}

// IsSealed reports whether value carries SecretPrefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, SecretPrefix)
}

func (s *Sealer) key(salt []byte) []byte {
	id := hex.EncodeToString(salt)
	s.mu.Lock()
	defer s.mu.Unlock()
	if key, ok := s.keys[id]; ok {
		return key
	}
	key := DeriveKey(s.passphrase, salt)
	s.keys[id] = key
	return key
}

func seal(key, salt []byte, plaintext string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

func open(key, data []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

func splitSealed(encrypted string) (salt, data []byte, err error) {
	parts := strings.SplitN(encrypted, ":", 2)
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("invalid encrypted format")
	}
	salt, err = hex.DecodeString(parts[0])
	if err != nil {
		return nil, nil, fmt.Errorf("decode salt: %w", err)
	}
	data, err = hex.DecodeString(parts[1])
	if err != nil {
		return nil, nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	return salt, data, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}
