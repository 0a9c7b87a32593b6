package signing

import (
	"fmt"
	"sort"
	"strings"
)

// unreserved matches RFC 3986 unreserved characters (ALPHA, DIGIT and
// "-_.~"); every other byte is percent-encoded.
func isUnreserved(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	case b == '-' || b == '_' || b == '.' || b == '~':
		return true
	}
	return false
}

// dropped are characters WBI strips outright from values rather than
// percent-encoding (spec §4.1: "strip characters !'()* from values").
func isDropped(b byte) bool {
	switch b {
	case '!', '\'', '(', ')', '*':
		return true
	}
	return false
}

// EncodeComponent percent-encodes s per the WBI/canonical-query rule: leave
// unreserved characters alone, drop !'()*, percent-encode every other UTF-8
// byte as uppercase %XX.
func EncodeComponent(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case isUnreserved(c):
			b.WriteByte(c)
		case isDropped(c):
			// omitted entirely
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// CanonicalQuery sorts params by key (ASCII ascending), percent-encodes key
// and value, and joins as "k=v&k=v...". Used directly by WBI and by any
// resolver that needs a reproducible signed query regardless of input
// ordering.
func CanonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, EncodeComponent(k)+"="+EncodeComponent(params[k]))
	}
	return strings.Join(parts, "&")
}

// CanonicalQueryPairs is the ordered-pairs variant, used where duplicate
// keys or explicit insertion order pre-sort matters (WBI takes a slice of
// pairs because "wts" is appended before sorting).
func CanonicalQueryPairs(pairs [][2]string) string {
	sort.Slice(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, EncodeComponent(p[0])+"="+EncodeComponent(p[1]))
	}
	return strings.Join(parts, "&")
}
