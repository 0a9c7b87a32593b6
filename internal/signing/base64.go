package signing

import "encoding/base64"

// Base64StdDecode decodes standard base64, padded or not, matching the
// leniency of Rust's base64 general_purpose::STANDARD engine against
// slightly malformed anti-hotlink tokens.
func Base64StdDecode(s string) ([]byte, error) {
	if decoded, err := base64.StdEncoding.DecodeString(s); err == nil {
		return decoded, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
