package jsworker

import _ "embed"

// The vendored signing scripts Douyu/Douyin ship are minified, frequently
// rotated third-party assets not present in this project's source tree.
// These embedded stand-ins implement the narrow surface the two callers
// need (CryptoJS.MD5/enc.Base64 for Douyu's ub98484234, a deterministic
// get_sign for Douyin's danmaku signature) and are swappable for the real
// vendor files by passing a different jsworker.Script at construction
// time. See DESIGN.md for the grounding/justification note.

//go:embed assets/cryptojs.min.js
var CryptoJSSource string

//go:embed assets/sign.js
var SignJSSource string

// WrapIsolatedDouyu implements spec §4.2's scoping rule for Douyu's
// per-room ub98484234 script: the obfuscated source is wrapped in an
// isolated closure via `new Function` so it cannot pollute or persist in
// the shared runtime's global scope between calls.
func WrapIsolatedDouyu(crptext, rid, did, ts string) string {
	return `(() => { const __crptext = ` + jsStringLiteral(crptext) + `;` +
		`return (new Function('r','d','t', __crptext + '; return ub98484234(r,d,t);'))` +
		`(` + jsStringLiteral(rid) + `,` + jsStringLiteral(did) + `,` + ts + `); })()`
}

// jsStringLiteral renders s as a double-quoted JS string literal, escaping
// backslashes, quotes, and newlines.
func jsStringLiteral(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\', '"':
			out = append(out, '\\', c)
		case '\n':
			out = append(out, '\\', 'n')
		case '\r':
			out = append(out, '\\', 'r')
		default:
			out = append(out, c)
		}
	}
	out = append(out, '"')
	return string(out)
}
