// Package fragment implements the client-side symmetric encryption convention used
// by linkcore clients: content is sealed with AES-256-GCM under a random key which
// travels in the url fragment - the part of an address browsers never transmit -
// so the server only ever sees opaque ciphertext. The server core never imports
// this package for decryption; it exists so Go clients agree on one wire format
// with the web client: base64( 12-byte nonce || ciphertext ).
package fragment

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const (
	// KeyLen is the AES-256 key size in bytes.
	KeyLen = 32

	nonceLen = 12
)

// GenerateKey returns a fresh random content key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("error generating content key: %w", err)
	}
	return key, nil
}

// EncodeKey renders the key in the form carried in the url fragment.
func EncodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// DecodeKey parses a key lifted from a url fragment.
func DecodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("error decoding content key: %w", err)
	}
	if len(key) != KeyLen {
		return nil, fmt.Errorf("content key must be %d bytes, got %d", KeyLen, len(key))
	}
	return key, nil
}

// Encrypt seals plaintext under key, prepending the random nonce to the
// ciphertext before encoding, matching the web client's layout.
func Encrypt(plaintext string, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("error generating nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. It fails on a wrong key or tampered ciphertext.
func Decrypt(encoded string, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("error decoding ciphertext: %w", err)
	}
	if len(sealed) < nonceLen {
		return "", fmt.Errorf("ciphertext shorter than nonce")
	}
	plaintext, err := gcm.Open(nil, sealed[:nonceLen], sealed[nonceLen:], nil)
	if err != nil {
		return "", fmt.Errorf("error decrypting content: %w", err)
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeyLen {
		return nil, fmt.Errorf("content key must be %d bytes, got %d", KeyLen, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("error initializing cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("error initializing GCM: %w", err)
	}
	return gcm, nil
}
