// Package pincrypt encrypts transfer PINs in the format the payment provider
// expects on its payout endpoints.
package pincrypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// AES256CBC names the only construction the provider currently accepts.
const AES256CBC = "aes-256-cbc"

type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(encoded string) (string, error)
}

// New returns the cipher registered under name, keyed with the given
// passphrase.
func New(name, passphrase string) (Cipher, error) {
	switch name {
	case AES256CBC:
		return NewEVPAES(passphrase), nil
	}
	return nil, fmt.Errorf("pincrypt: unknown cipher %q", name)
}

// EVPAES implements OpenSSL's `enc -aes-256-cbc` format: the key and IV are
// derived from the passphrase and a random 8-byte salt via EVP_BytesToKey
// with one MD5 round, and the output is base64("Salted__" + salt + ciphertext).
// The provider decrypts with OpenSSL defaults, so the construction cannot
// change independently.
type EVPAES struct {
	passphrase []byte
	saltSource io.Reader
}

func NewEVPAES(passphrase string) *EVPAES {
	return &EVPAES{passphrase: []byte(passphrase), saltSource: rand.Reader}
}

const (
	saltedPrefix = "Salted__"
	saltLen      = 8
	keyLen       = 32
	ivLen        = aes.BlockSize
)

func (e *EVPAES) Encrypt(plaintext string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(e.saltSource, salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	key, iv := deriveKeyIV(e.passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(saltedPrefix)+saltLen+len(padded))
	copy(out, saltedPrefix)
	copy(out[len(saltedPrefix):], salt)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[len(saltedPrefix)+saltLen:], padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

func (e *EVPAES) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(raw) < len(saltedPrefix)+saltLen || string(raw[:len(saltedPrefix)]) != saltedPrefix {
		return "", errors.New("ciphertext is not in salted format")
	}
	salt := raw[len(saltedPrefix) : len(saltedPrefix)+saltLen]
	body := raw[len(saltedPrefix)+saltLen:]
	if len(body) == 0 || len(body)%aes.BlockSize != 0 {
		return "", errors.New("ciphertext length is not a whole number of blocks")
	}

	key, iv := deriveKeyIV(e.passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)

	unpadded, err := pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

// deriveKeyIV is EVP_BytesToKey with MD5 and a single iteration: chained
// digests of (previous digest + passphrase + salt) until 48 bytes are
// available for the key and IV.
func deriveKeyIV(passphrase, salt []byte) (key, iv []byte) {
	var derived []byte
	var prev []byte
	for len(derived) < keyLen+ivLen {
		h := md5.New()
		h.Write(prev)
		h.Write(passphrase)
		h.Write(salt)
		prev = h.Sum(nil)
		derived = append(derived, prev...)
	}
	return derived[:keyLen], derived[keyLen : keyLen+ivLen]
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}
