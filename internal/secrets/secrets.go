// Package secrets seals model-provider keys at rest. A value is encrypted
// with AES-256-GCM under a key derived from the server passphrase with
// scrypt and a per-value salt; the workspace id is bound as additional data
// so a sealed key cannot be replayed into another workspace.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	keySize   = 32
	saltSize  = 16
	nonceSize = 12
	version   = "v1"

	// DefaultCost is the scrypt N parameter (2^15).
	DefaultCost = 32768
	scryptR     = 8
	scryptP     = 1
)

var (
	ErrNoPassphrase = errors.New("secrets passphrase not configured")
	ErrDecrypt      = errors.New("unable to decrypt sealed value")
)

type Sealer struct {
	Passphrase string
	// Cost overrides the scrypt N parameter; zero means DefaultCost.
	Cost int
}

func (s Sealer) cost() int {
	if s.Cost > 1 {
		return s.Cost
	}
	return DefaultCost
}

func (s Sealer) aead(salt []byte) (cipher.AEAD, error) {
	if s.Passphrase == "" {
		return nil, ErrNoPassphrase
	}
	key, err := scrypt.Key([]byte(s.Passphrase), salt, s.cost(), scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext for the given workspace and returns
// "v1:" + base64(salt|nonce|ciphertext).
func (s Sealer) Seal(workspaceID, plaintext string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	gcm, err := s.aead(salt)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), []byte(workspaceID))
	buf := make([]byte, 0, saltSize+nonceSize+len(sealed))
	buf = append(buf, salt...)
	buf = append(buf, nonce...)
	buf = append(buf, sealed...)
	return version + ":" + base64.StdEncoding.EncodeToString(buf), nil
}

// Open reverses Seal. Any tampering, wrong passphrase or wrong workspace
// yields ErrDecrypt.
func (s Sealer) Open(workspaceID, sealed string) (string, error) {
	raw, ok := strings.CutPrefix(sealed, version+":")
	if !ok {
		return "", ErrDecrypt
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(data) < saltSize+nonceSize+16 {
		return "", ErrDecrypt
	}
	gcm, err := s.aead(data[:saltSize])
	if err != nil {
		return "", err
	}
	plain, err := gcm.Open(nil, data[saltSize:saltSize+nonceSize], data[saltSize+nonceSize:], []byte(workspaceID))
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

// Hint returns the last four characters of a key for display.
func Hint(key string) string {
	key = strings.TrimSpace(key)
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return "..." + key[len(key)-4:]
}
