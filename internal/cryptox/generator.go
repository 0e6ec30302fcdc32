package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"

	"github.com/nickuc/nlogin-addon/internal/common"
)

var (
	letters  = []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz")
	digits   = []byte("0123456789")
	symbols  = []byte("^!@#$%&*")
	alphabet = func() []byte {
		all := make([]byte, 0, len(letters)+len(digits)+len(symbols))
		all = append(all, letters...)
		all = append(all, digits...)
		return append(all, symbols...)
	}()
)

// Key generates an opaque zero-knowledge key: 144 random bytes encoded to a
// 192-character base64 string (6 bits per character).
func Key() string {
	raw := Nonce(common.MainKeyLength * 6 / 8)
	return base64.StdEncoding.EncodeToString(raw)
}

// Challenge generates the 4-byte handshake nonce.
func Challenge() []byte {
	return Nonce(common.RSAChallengeBytes)
}

// Nonce returns n bytes from the process-wide secure random source.
func Nonce(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand.Read never fails on supported platforms.
		panic(err)
	}
	return b
}

func randIndex(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(err)
	}
	return int(v.Int64())
}

// Password generates a 12-character password over letters+digits+symbols.
//
// After the uniform sample, every position triggers one forced digit
// substitution and one forced symbol substitution at two distinct random
// positions: the guard below only skips when the inspected character is a
// digit AND a symbol at once, which never happens since the sets are
// disjoint. The digit/symbol guarantee is therefore probabilistic, not
// structural. Changing this loop is a wire-compatibility regression.
func Password() string {
	length := common.DefaultPasswordLength

	buf := make([]byte, length)
	for i := range buf {
		buf[i] = alphabet[randIndex(len(alphabet))]
	}

	for i := 0; i < length; i++ {
		c := buf[i]

		isDigit := false
		for _, d := range digits {
			if c == d {
				isDigit = true
				break
			}
		}

		isDigitAndSymbol := false
		if isDigit {
			for _, s := range symbols {
				if c == s {
					isDigitAndSymbol = true
					break
				}
			}
		}

		if !isDigitAndSymbol {
			restricted := randIndex(length)
			buf[restricted] = digits[randIndex(len(digits))]
			for {
				pos := randIndex(length)
				if pos == restricted {
					continue
				}
				buf[pos] = symbols[randIndex(len(symbols))]
				break
			}
		}
	}

	return string(buf)
}
