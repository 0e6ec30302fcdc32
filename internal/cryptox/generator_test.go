package cryptox

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey_Length(t *testing.T) {
	key := Key()
	assert.Len(t, key, 192)
	assert.NotEqual(t, key, Key())
}

func TestChallenge_Length(t *testing.T) {
	assert.Len(t, Challenge(), 4)
}

func TestPassword_Alphabet(t *testing.T) {
	for i := 0; i < 100; i++ {
		password := Password()
		assert.Len(t, password, 12)
		for _, c := range []byte(password) {
			assert.Contains(t, string(alphabet), string(c))
		}
	}
}

func TestPassword_Distribution(t *testing.T) {
	const rounds = 10000

	lacking := 0
	for i := 0; i < rounds; i++ {
		password := []byte(Password())

		hasDigit := bytes.ContainsAny(password, string(digits))
		hasSymbol := bytes.ContainsAny(password, string(symbols))
		if !hasDigit || !hasSymbol {
			lacking++
		}
	}

	// The substitution loop makes passwords without a digit or symbol
	// vanishingly rare, but the algorithm gives no structural guarantee.
	assert.LessOrEqual(t, float64(lacking)/rounds, 0.001)
}
