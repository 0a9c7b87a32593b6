package signing

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSM3EmptyMessage(t *testing.T) {
	got := hex.EncodeToString(SM3([]byte{}))
	assert.Equal(t, "1ab21d8355cfa17f8e61194831e81a8f22bec8c728fefb747ed035eb5082aa2b", got)
}

func TestSM3Abc(t *testing.T) {
	got := hex.EncodeToString(SM3([]byte("abc")))
	assert.Equal(t, "66c7f0f462eeedd9d1f2d46bdc10e4e24167c4875cf2f7a2297da02b8f4ba8e0", got)
}

func TestSM3DigestLength(t *testing.T) {
	assert.Len(t, SM3([]byte("arbitrary input")), 32)
}
