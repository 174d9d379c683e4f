// Package transport implements the framing that carries a signed CWT
// inside a scannable barcode: zlib compression, Base45 text encoding
// and the "HC1:" prefix.
package transport

import (
	"fmt"
	"strings"
)

// RFC 9285 alphabet. The index of a character is its Base45 value.
const base45Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ $%*+-./:"

// Base45Encode encodes data as Base45 text: each two-byte group becomes
// three characters, a trailing single byte becomes two.
func Base45Encode(data []byte) string {
	var sb strings.Builder
	sb.Grow((len(data)/2)*3 + 2)

	for i := 0; i+1 < len(data); i += 2 {
		n := int(data[i])<<8 | int(data[i+1])
		sb.WriteByte(base45Alphabet[n%45])
		sb.WriteByte(base45Alphabet[(n/45)%45])
		sb.WriteByte(base45Alphabet[n/(45*45)])
	}
	if len(data)%2 == 1 {
		n := int(data[len(data)-1])
		sb.WriteByte(base45Alphabet[n%45])
		sb.WriteByte(base45Alphabet[n/45])
	}
	return sb.String()
}

// Base45Decode is the inverse of Base45Encode. It rejects characters
// outside the alphabet, impossible lengths (len mod 3 == 1) and groups
// whose value overflows the bytes they must decode to.
func Base45Decode(s string) ([]byte, error) {
	if len(s)%3 == 1 {
		return nil, fmt.Errorf("invalid base45 length: %d", len(s))
	}

	vals := make([]int, len(s))
	for i := 0; i < len(s); i++ {
		v := strings.IndexByte(base45Alphabet, s[i])
		if v < 0 {
			return nil, fmt.Errorf("invalid base45 character %q at position %d", s[i], i)
		}
		vals[i] = v
	}

	out := make([]byte, 0, (len(s)/3)*2+1)
	for i := 0; i+2 < len(vals); i += 3 {
		n := vals[i] + vals[i+1]*45 + vals[i+2]*45*45
		if n > 0xFFFF {
			return nil, fmt.Errorf("base45 group overflow at position %d", i)
		}
		out = append(out, byte(n>>8), byte(n))
	}
	if len(vals)%3 == 2 {
		n := vals[len(vals)-2] + vals[len(vals)-1]*45
		if n > 0xFF {
			return nil, fmt.Errorf("base45 group overflow at position %d", len(vals)-2)
		}
		out = append(out, byte(n))
	}
	return out, nil
}
