// Package crypto provides simple encryption for sensitive data like the
// remote API token. Uses AES-256-GCM for authenticated encryption.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
)

var (
	// ErrInvalidCiphertext is returned when decryption fails.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	// ErrInvalidKey is returned when the key is invalid.
	ErrInvalidKey = errors.New("invalid key")
)

// Encrypt encrypts plaintext using AES-256-GCM.
// The key is derived from the input using SHA-256.
func Encrypt(plaintext, key []byte) (string, error) {
	derivedKey := sha256.Sum256(key)

	block, err := aes.NewCipher(derivedKey[:])
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)

	// Encode as base64 for storage
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts ciphertext that was encrypted with Encrypt.
func Decrypt(ciphertext string, key []byte) ([]byte, error) {
	derivedKey := sha256.Sum256(key)

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}

	block, err := aes.NewCipher(derivedKey[:])
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, ErrInvalidCiphertext
	}

	nonce, cipherData := data[:nonceSize], data[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, cipherData, nil)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}

	return plaintext, nil
}

// EncryptToken encrypts a remote API token for at-rest storage.
// The machine ID scopes the key to this device.
func EncryptToken(token, machineID string) (string, error) {
	if machineID == "" {
		return "", ErrInvalidKey
	}
	return Encrypt([]byte(token), []byte(machineID))
}

// DecryptToken decrypts a token encrypted with EncryptToken.
func DecryptToken(ciphertext, machineID string) (string, error) {
	if machineID == "" {
		return "", ErrInvalidKey
	}
	plaintext, err := Decrypt(ciphertext, []byte(machineID))
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
