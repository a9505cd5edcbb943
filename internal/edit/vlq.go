package edit

import "strings"

const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// writeVLQ appends the base64 VLQ encoding of n used by source map mappings.
func writeVLQ(sb *strings.Builder, n int) {
	v := n << 1
	if n < 0 {
		v = (-n << 1) | 1
	}
	for {
		digit := v & 0x1f
		v >>= 5
		if v > 0 {
			digit |= 0x20
		}
		sb.WriteByte(base64Chars[digit])
		if v == 0 {
			return
		}
	}
}
