package common

import "errors"

// Sentinel errors. Callers should use errors.Is to match these values.
var (
	// Crypto errors. Callers treat every one of these as fail-closed.
	ErrCiphertextTooShort = errors.New("ciphertext too short")
	ErrInvalidPublicKey   = errors.New("invalid public key")
	ErrSignatureTooLarge  = errors.New("signature block larger than modulus")
	ErrTransformTooLong   = errors.New("transform result longer than expected")

	// Store errors.
	ErrMalformedCredentials = errors.New("malformed credentials file")
)
