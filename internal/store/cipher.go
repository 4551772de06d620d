package store

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// SecretLen is the size of the keyfile material backends generate on first open.
const SecretLen = 32

// snapshot sealing: the persisted user snapshot carries PII, so backends seal
// it with XChaCha20-Poly1305 under a key derived from a local keyfile.
// Layout: nonce || ciphertext.

const sealInfo = "parishdesk/user-snapshot"

// NewSecret returns fresh keyfile material.
func NewSecret() ([]byte, error) {
	b := make([]byte, SecretLen)
	_, err := rand.Read(b)
	return b, err
}

func sealKey(secret []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, nil, []byte(sealInfo))
	key := make([]byte, chacha20poly1305.KeySize)
	_, err := r.Read(key)
	return key, err
}

// Seal encrypts plaintext under a key derived from secret.
func Seal(secret, plaintext []byte) ([]byte, error) {
	key, err := sealKey(secret)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, plaintext, nil)...)
	return out, nil
}

// Unseal decrypts a blob produced by Seal with the same secret.
func Unseal(secret, blob []byte) ([]byte, error) {
	if len(blob) < chacha20poly1305.NonceSizeX {
		return nil, errors.New("sealed blob too short")
	}
	key, err := sealKey(secret)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := blob[:chacha20poly1305.NonceSizeX]
	ct := blob[chacha20poly1305.NonceSizeX:]
	return aead.Open(nil, nonce, ct, nil)
}
