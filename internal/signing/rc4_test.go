package signing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRC4RoundTrip(t *testing.T) {
	key := []byte{0x79}
	plain := []byte("the quick brown fox")

	cipher := RC4(plain, key)
	require.NotEqual(t, plain, cipher)

	recovered := RC4(cipher, key)
	assert.Equal(t, plain, recovered)
}

func TestRuneBytesTruncatesToLowByte(t *testing.T) {
	got := RuneBytes("AŁ")
	require.Len(t, got, 2)
	assert.Equal(t, byte('A'), got[0])
	assert.Equal(t, byte(0x41), got[1]) // U+0141 & 0xFF
}

func TestRC4StringMatchesRC4OfRuneBytes(t *testing.T) {
	key := []byte{0x79}
	assert.Equal(t, RC4(RuneBytes("hello"), key), RC4String("hello", key))
}
