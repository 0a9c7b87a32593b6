package tars

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInt32RoundTrip(t *testing.T) {
	enc := NewEncoder()
	enc.WriteInt32(3, 42)

	dec := NewDecoder(enc.Bytes())
	got, err := dec.ReadInt32(3, true, -1)
	require.NoError(t, err)
	assert.Equal(t, int32(42), got)
}

func TestInt32ZeroTagRoundTrip(t *testing.T) {
	enc := NewEncoder()
	enc.WriteInt32(1, 0)

	dec := NewDecoder(enc.Bytes())
	got, err := dec.ReadInt32(1, true, -1)
	require.NoError(t, err)
	assert.Equal(t, int32(0), got)
}

func TestStringRoundTrip(t *testing.T) {
	enc := NewEncoder()
	enc.WriteString(2, "hello huya")

	dec := NewDecoder(enc.Bytes())
	got, err := dec.ReadString(2, true, "")
	require.NoError(t, err)
	assert.Equal(t, "hello huya", got)
}

func TestBytesRoundTrip(t *testing.T) {
	enc := NewEncoder()
	enc.WriteBytes(5, []byte{1, 2, 3, 4, 5})

	dec := NewDecoder(enc.Bytes())
	got, err := dec.ReadBytes(5, true, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, got)
}

// Field lookup by tag must be insensitive to field order and to unrelated
// skipped fields of other types interleaved between them.
func TestFieldLookupIgnoresOrderAndUnrelatedFields(t *testing.T) {
	enc := NewEncoder()
	enc.WriteInt32(9, 100)
	enc.WriteString(0, "unrelated")
	enc.WriteBytes(7, []byte{0xAA, 0xBB})
	enc.WriteInt32(2, 7)

	dec := NewDecoder(enc.Bytes())

	v2, err := dec.ReadInt32(2, true, -1)
	require.NoError(t, err)
	assert.Equal(t, int32(7), v2)

	v9, err := dec.ReadInt32(9, true, -1)
	require.NoError(t, err)
	assert.Equal(t, int32(100), v9)

	v7, err := dec.ReadBytes(7, true, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB}, v7)
}

func TestReadMissingTagReturnsDefault(t *testing.T) {
	enc := NewEncoder()
	enc.WriteInt32(1, 5)

	dec := NewDecoder(enc.Bytes())
	got, err := dec.ReadInt32(9, false, -1)
	require.NoError(t, err)
	assert.Equal(t, int32(-1), got)
}

func TestNestedStructRoundTrip(t *testing.T) {
	enc := NewEncoder()
	enc.WriteStructBegin(0)
	enc.WriteString(2, "nickname")
	enc.WriteInt32(3, 9)
	enc.WriteStructEnd()

	dec := NewDecoder(enc.Bytes())
	inner, ok, err := dec.ReadStruct(0, true)
	require.NoError(t, err)
	require.True(t, ok)

	name, err := inner.ReadString(2, true, "")
	require.NoError(t, err)
	assert.Equal(t, "nickname", name)

	level, err := inner.ReadInt32(3, true, -1)
	require.NoError(t, err)
	assert.Equal(t, int32(9), level)
}

func TestExtendedTagRoundTrip(t *testing.T) {
	enc := NewEncoder()
	enc.WriteInt32(20, 321)

	dec := NewDecoder(enc.Bytes())
	got, err := dec.ReadInt32(20, true, -1)
	require.NoError(t, err)
	assert.Equal(t, int32(321), got)
}
