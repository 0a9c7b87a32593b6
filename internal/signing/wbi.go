package signing

import (
	"strconv"
	"time"
)

// mixinKeyEncTab is Bilibili's fixed permutation table for deriving the
// 32-byte mixin key from img_key+sub_key. Pinned verbatim; there is no
// derivation, only table lookup.
var mixinKeyEncTab = [64]int{
	46, 47, 18, 2, 53, 8, 23, 32, 15, 50, 10, 31, 58, 3, 45, 35, 27, 43, 5, 49, 33, 9, 42, 19, 29,
	28, 14, 39, 12, 38, 41, 13, 37, 48, 7, 16, 24, 55, 40, 61, 26, 17, 0, 1, 60, 51, 30, 4, 22, 25,
	54, 21, 56, 59, 6, 63, 57, 62, 11, 36, 20, 34, 44, 52,
}

// MixinKey derives the 32-character mixin key from the concatenation of
// img_key and sub_key.
func MixinKey(imgKey, subKey string) string {
	src := imgKey + subKey
	out := make([]byte, 32)
	for i, idx := range mixinKeyEncTab[:32] {
		out[i] = src[idx]
	}
	return string(out)
}

// WbiSign signs params with the given img_key/sub_key pair, appending "wts"
// and "w_rid" as the last two query parameters. now defaults to time.Now
// when zero, letting tests pin a fixed timestamp (spec §8's w_rid fixture).
func WbiSign(params map[string]string, imgKey, subKey string, now time.Time) string {
	if now.IsZero() {
		now = time.Now()
	}
	mixin := MixinKey(imgKey, subKey)

	pairs := make([][2]string, 0, len(params)+1)
	for k, v := range params {
		pairs = append(pairs, [2]string{k, v})
	}
	pairs = append(pairs, [2]string{"wts", strconv.FormatInt(now.Unix(), 10)})

	query := CanonicalQueryPairs(pairs)
	wRid := MD5Hex(query + mixin)
	return query + "&w_rid=" + wRid
}
