package cryptox

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/nickuc/nlogin-addon/internal/common"
)

// PublicKeyFromDER imports an RSA public key from X.509 (PKIX) DER bytes.
func PublicKeyFromDER(der []byte) (*rsa.PublicKey, error) {
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidPublicKey, err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, common.ErrInvalidPublicKey
	}
	return key, nil
}

// PublicKeyFromBase64 imports an RSA public key from base64-encoded DER.
func PublicKeyFromBase64(s string) (*rsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidPublicKey, err)
	}
	return PublicKeyFromDER(der)
}

// EncodePublicKey returns the X.509 (PKIX) DER encoding of key. Stored and
// remote keys are compared byte-for-byte on this encoding.
func EncodePublicKey(key *rsa.PublicKey) []byte {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		// MarshalPKIXPublicKey cannot fail for a well-formed *rsa.PublicKey.
		panic(err)
	}
	return der
}

// RawTransform applies the raw RSA public-key operation block^e mod n and
// returns the big-endian result left-padded to size bytes. The padding
// matters: a result with leading zero bytes must still compare equal to a
// same-length expected value.
//
// This is not signature verification: the "signature" is an opaque block
// whose transform the caller compares byte-for-byte against the session
// challenge. Textbook RSA is required for wire compatibility, so no padding
// or hashing is involved.
func RawTransform(key *rsa.PublicKey, block []byte, size int) ([]byte, error) {
	c := new(big.Int).SetBytes(block)
	if c.Cmp(key.N) >= 0 {
		return nil, common.ErrSignatureTooLarge
	}
	m := new(big.Int).Exp(c, big.NewInt(int64(key.E)), key.N)
	if (m.BitLen()+7)/8 > size {
		return nil, common.ErrTransformTooLong
	}
	out := make([]byte, size)
	m.FillBytes(out)
	return out, nil
}
