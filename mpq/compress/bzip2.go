package compress

import (
	"bytes"
	"compress/bzip2"

	"github.com/wowemulation-dev/warcraft-go/werr"
)

// bzip2Decompress decodes a bzip2-compressed sector. The standard
// library's compress/bzip2 package is decode-only (see DESIGN.md for why
// no third-party bzip2 encoder from the pack is wired in); Compress's
// encodeOne therefore returns OperationNotSupported for this bit, mirror
// of the allowance spec.md §4.2 already grants Huffman.
func bzip2Decompress(data []byte) ([]byte, error) {
	r := bzip2.NewReader(bytes.NewReader(data))
	out, err := readAll(r, len(data)*3)
	if err != nil {
		return nil, werr.Wrap(werr.CompressionError, "bzip2", err)
	}
	return out, nil
}
