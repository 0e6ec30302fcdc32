package cryptox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash_KnownVectors(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Hash(""))
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", Hash("abc"))
}

func TestChecksum(t *testing.T) {
	for _, s := range []string{"", "abc", "key-material", "päss"} {
		assert.True(t, Checksum(s, Hash(s)))
	}
}

func TestChecksum_FlippedDigest(t *testing.T) {
	digest := []byte(Hash("abc"))
	// flip one hex digit
	if digest[0] == 'a' {
		digest[0] = 'b'
	} else {
		digest[0] = 'a'
	}
	assert.False(t, Checksum("abc", string(digest)))
}

func TestChecksum_SingleRound(t *testing.T) {
	// hash(hash(s)) must not be accepted: the double-hash contract is gone.
	assert.False(t, Checksum("abc", Hash(Hash("abc"))))
}
