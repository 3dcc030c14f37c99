// Copyright (c) 2024 Neomantra Corp

package pkt

import "bytes"

// Utf8Size returns the number of bytes the UTF-8 encoding of v occupies.
func Utf8Size(v string) int {
	return len(v)
}

// Utf8ToBytes encodes v as UTF-8 bytes.
func Utf8ToBytes(v string) []byte {
	return []byte(v)
}

// Utf8FromBytes decodes b as a UTF-8 string.
func Utf8FromBytes(b []byte) string {
	return string(b)
}

// TrimNullBytes removes trailing NUL bytes from b and returns a string. It
// is the decode-side half of a fixed-width byte-array slot's NUL-padded
// text transform, e.g. a literal-count FormatBytes tag field whose
// WithTransform encode/decode pair wraps PadNullBytes and TrimNullBytes.
func TrimNullBytes(b []byte) string {
	return string(bytes.TrimRight(b, "\x00"))
}

// PadNullBytes right-pads s with NUL bytes up to width, truncating if s is
// already longer. It is the encode-side half of the transform pair above.
func PadNullBytes(s string, width int) []byte {
	b := make([]byte, width)
	copy(b, s)
	return b
}
