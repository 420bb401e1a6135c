package compress

import (
	"github.com/wowemulation-dev/warcraft-go/werr"
)

// Blizzard's sparse/RLE codec (method bit 0x20). Per spec.md's open
// questions (§9), the decode direction to preserve against real archives
// is: a control byte with bit 0x80 set starts a literal run of
// (byte&0x7F)+1 raw bytes; a control byte below 0x80 starts a zero run of
// byte+1 zero bytes.
func sparseDecode(data []byte, sizeHint int) ([]byte, error) {
	out := make([]byte, 0, sizeHint)
	i := 0
	for i < len(data) {
		ctrl := data[i]
		i++
		if ctrl&0x80 != 0 {
			n := int(ctrl&0x7F) + 1
			if i+n > len(data) {
				return nil, werr.New(werr.CompressionError, "sparse: literal run exceeds buffer")
			}
			out = append(out, data[i:i+n]...)
			i += n
		} else {
			n := int(ctrl) + 1
			for j := 0; j < n; j++ {
				out = append(out, 0)
			}
		}
	}
	return out, nil
}

// sparseEncode is the inverse of sparseDecode: runs of zero bytes become
// (n-1) control bytes below 0x80, everything else is emitted as literal
// runs up to 128 bytes long.
func sparseEncode(data []byte) []byte {
	var out []byte
	i := 0
	for i < len(data) {
		if data[i] == 0 {
			j := i
			for j < len(data) && data[j] == 0 && j-i < 128 {
				j++
			}
			out = append(out, byte(j-i-1))
			i = j
			continue
		}

		j := i
		for j < len(data) && data[j] != 0 && j-i < 128 {
			j++
		}
		out = append(out, 0x80|byte(j-i-1))
		out = append(out, data[i:j]...)
		i = j
	}
	return out
}
