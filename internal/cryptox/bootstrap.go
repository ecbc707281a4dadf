// Package cryptox seals and opens the bootstrap blob that carries the
// store's identifier and access token. The blob is shared with the group
// out of band; only the passphrase unlocks it.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/waffle/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// Salt is fixed so every member derives the same key from the passphrase.
	Salt       = "waffle-app-salt-2026"
	Iterations = 100000
	KeySize    = 32
	NonceSize  = 12
)

// DeriveKey stretches the passphrase into an AES-256 key.
func DeriveKey(passphrase []byte) []byte {
	return pbkdf2.Key(passphrase, []byte(Salt), Iterations, KeySize, sha256.New)
}

// SealBootstrap encrypts "{storeID}|{token}" and returns base64(nonce || ciphertext).
func SealBootstrap(storeID, token, passphrase string) (string, error) {
	if storeID == "" || strings.Contains(storeID, "|") {
		return "", fmt.Errorf("%w: store id must be non-empty and must not contain '|'", common.ErrValidation)
	}
	if token == "" {
		return "", fmt.Errorf("%w: token is empty", common.ErrValidation)
	}

	key := DeriveKey([]byte(passphrase))
	defer common.WipeByteArray(key)

	aesgcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := common.GenerateRandByteArray(NonceSize)
	sealed := aesgcm.Seal(nonce, nonce, []byte(storeID+"|"+token), nil)

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// OpenBootstrap reverses SealBootstrap. A wrong passphrase yields
// ErrAuthenticationFailed; a blob that cannot be a sealed secret at all
// yields ErrMalformedBootstrap, which also matches ErrAuthenticationFailed.
func OpenBootstrap(blob, passphrase string) (storeID, token string, err error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(blob))
	if err != nil {
		return "", "", malformed("not base64")
	}
	if len(raw) <= NonceSize {
		return "", "", malformed("too short")
	}

	key := DeriveKey([]byte(passphrase))
	defer common.WipeByteArray(key)

	aesgcm, err := newGCM(key)
	if err != nil {
		return "", "", err
	}

	plaintext, err := aesgcm.Open(nil, raw[:NonceSize], raw[NonceSize:], nil)
	if err != nil {
		return "", "", common.ErrAuthenticationFailed
	}
	defer common.WipeByteArray(plaintext)

	storeID, token, ok := strings.Cut(string(plaintext), "|")
	if !ok || storeID == "" || token == "" {
		return "", "", malformed("no separator")
	}
	return storeID, token, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func malformed(reason string) error {
	return fmt.Errorf("%w: %w: %s", common.ErrAuthenticationFailed, common.ErrMalformedBootstrap, reason)
}
