package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize       = 8
	pbkdf2Iter     = 4096
	cipherKeyBytes = 32
)

var ErrWrongPassphrase = errors.New("incorrect passphrase")

// Encrypt seals plaintext with AES-GCM using key derived from the
// passphrase. Result is hex encoded "salt-nonce-ciphertext".
func Encrypt(passphrase string, plaintext []byte) (string, error) {
	if passphrase == "" {
		return "", errors.New("passphrase cannot be empty")
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)
	return strings.Join([]string{hex.EncodeToString(salt), hex.EncodeToString(nonce), hex.EncodeToString(ciphertext)}, "-"), nil
}

func Decrypt(passphrase string, data string) ([]byte, error) {
	parts := strings.Split(data, "-")
	if len(parts) != 3 {
		return nil, fmt.Errorf("expected 3 parts in encrypted data, got %d", len(parts))
	}
	var decoded [3][]byte
	for i, p := range parts {
		b, err := hex.DecodeString(p)
		if err != nil {
			return nil, fmt.Errorf("decoding hex data: %w", err)
		}
		decoded[i] = b
	}
	salt, nonce, ciphertext := decoded[0], decoded[1], decoded[2]

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("invalid nonce length %d", len(nonce))
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWrongPassphrase, err)
	}
	return plaintext, nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iter, cipherKeyBytes, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM cipher: %w", err)
	}
	return gcm, nil
}
