package common

import "strings"

// ShortHex keeps the first and last digits of a 0x prefixed hex value, e.g.
// a proposal id, joined by an ellipsis
func ShortHex(s string, digits int) string {
	h := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if digits <= 0 || len(h) <= digits*2 {
		return s
	}

	return "0x" + h[:digits] + "…" + h[len(h)-digits:]
}
