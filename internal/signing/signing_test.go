package signing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMD5HexEmptyString(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", MD5Hex(""))
}

func TestMD5HexBytesMatchesMD5Hex(t *testing.T) {
	assert.Equal(t, MD5Hex("hello"), MD5HexBytes([]byte("hello")))
}

func TestWbiSignGoldenFixture(t *testing.T) {
	params := map[string]string{"foo": "114", "bar": "514", "baz": "618"}
	now := time.Unix(1702204169, 0)

	got := WbiSign(params, "7cd084941338484aae1ad9425b84077c", "4932caff0ff746eab6f01bf08b70ac45", now)

	require.Equal(t,
		"bar=514&baz=618&foo=114&wts=1702204169&w_rid=de5c6b1a8a825066fa67657869fe7155",
		got,
	)
}

func TestCanonicalQueryIsOrderIndependent(t *testing.T) {
	a := CanonicalQuery(map[string]string{"foo": "114", "bar": "514", "baz": "618"})
	b := CanonicalQuery(map[string]string{"baz": "618", "foo": "114", "bar": "514"})
	assert.Equal(t, a, b)
	assert.Equal(t, "bar=514&baz=618&foo=114", a)
}

func TestEncodeComponentLeavesUnreservedAlone(t *testing.T) {
	assert.Equal(t, "abcXYZ09-_.~", EncodeComponent("abcXYZ09-_.~"))
}

func TestEncodeComponentDropsStripChars(t *testing.T) {
	assert.Equal(t, "abc", EncodeComponent("a!b'c()*"))
}

func TestEncodeComponentPercentEncodesEverythingElse(t *testing.T) {
	assert.Equal(t, "%20", EncodeComponent(" "))
	assert.Equal(t, "%2F", EncodeComponent("/"))
}

func TestCanonicalQueryPairsSortsByKey(t *testing.T) {
	got := CanonicalQueryPairs([][2]string{{"z", "1"}, {"a", "2"}})
	assert.Equal(t, "a=2&z=1", got)
}
