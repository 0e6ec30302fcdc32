// Package common contains shared constants and sentinel errors used across
// addon components.
package common

const (
	// MainKeyLength is the length, in base64 characters, of a generated
	// zero-knowledge key. Each character carries 6 bits, so the raw key
	// material is MainKeyLength*6/8 bytes.
	MainKeyLength = 192

	// DefaultPasswordLength is the length of generated server passwords.
	DefaultPasswordLength = 12

	// RSAChallengeBytes is the size of the handshake challenge nonce.
	RSAChallengeBytes = 4

	// CredentialsFileName is the name of the persisted credential store.
	CredentialsFileName = "credentials.json"
)
