// Package cryptox implements the cryptographic primitives used to protect
// locally stored secrets and backup payloads: password-based AES-GCM,
// SHA-256 hex digests, the raw RSA public-key transform used by the server
// identity check, and a secure generator for keys, nonces and passwords.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/nickuc/nlogin-addon/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

// Output layout of Encrypt: IV (12 bytes) || salt (16 bytes) || ciphertext
// with the GCM tag appended. IV and salt are freshly random on every call.
const (
	ivLength   = 12
	saltLength = 16

	pbkdf2Iterations = 65536
	aesKeyLength     = 32
)

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLength, sha256.New)
}

// Encrypt performs authenticated encryption of plaintext with a key derived
// from password via PBKDF2-HMAC-SHA256.
func Encrypt(plaintext []byte, password string) ([]byte, error) {
	salt := Nonce(saltLength)
	iv := Nonce(ivLength)

	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}

	out := make([]byte, 0, ivLength+saltLength+len(plaintext)+aesgcm.Overhead())
	out = append(out, iv...)
	out = append(out, salt...)
	return aesgcm.Seal(out, iv, plaintext, nil), nil
}

// Decrypt parses the Encrypt layout and reverses it. It returns an error if
// the buffer is too short or the authentication tag does not verify.
func Decrypt(content []byte, password string) ([]byte, error) {
	if len(content) < ivLength+saltLength {
		return nil, common.ErrCiphertextTooShort
	}

	iv := content[:ivLength]
	salt := content[ivLength : ivLength+saltLength]
	ciphertext := content[ivLength+saltLength:]

	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}

	plaintext, err := aesgcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

// EncryptToBase64 encrypts a UTF-8 string and base64-encodes the result.
func EncryptToBase64(content, password string) (string, error) {
	out, err := Encrypt([]byte(content), password)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

// DecryptFromBase64 reverses EncryptToBase64.
func DecryptFromBase64(content, password string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	plaintext, err := Decrypt(raw, password)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
