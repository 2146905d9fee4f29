package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters (interactive-login profile).
const (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// saltSize is the length of the random salt prepended to ciphertext.
const saltSize = 16

// Cipher handles AES-256-GCM encryption/decryption of the session file with a
// key derived from a passphrase.
type Cipher struct {
	passphrase []byte
}

// NewCipher creates a Cipher from a passphrase.
// Returns nil if passphrase is empty (encryption disabled).
func NewCipher(passphrase string) *Cipher {
	if passphrase == "" {
		return nil
	}
	return &Cipher{passphrase: []byte(passphrase)}
}

func (c *Cipher) aead(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(c.passphrase, salt, scryptN, scryptR, scryptP, 32)
	if err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return aead, nil
}

// Encrypt encrypts plaintext and returns base64-encoded ciphertext with a
// prepended salt and nonce. If Cipher is nil, returns plaintext unchanged.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if c == nil {
		return plaintext, nil
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	aead, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	out := append(append(salt, nonce...), sealed...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt decrypts base64-encoded ciphertext (with prepended salt and nonce)
// and returns plaintext. If Cipher is nil, returns ciphertext unchanged
// (assumes unencrypted).
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	if c == nil {
		return ciphertext, nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decoding base64: %w", err)
	}
	if len(data) < saltSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	salt, rest := data[:saltSize], data[saltSize:]
	aead, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	nonceSize := aead.NonceSize()
	if len(rest) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, sealed := rest[:nonceSize], rest[nonceSize:]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("decrypting: %w", err)
	}

	return string(plaintext), nil
}
