package compress

import (
	"bytes"

	"github.com/klauspost/compress/zlib"

	"github.com/wowemulation-dev/warcraft-go/werr"
)

// zlibDecompress accepts both a proper zlib-wrapped stream and a raw
// deflate stream, per spec.md §4.2 ("accept both wrapped and raw
// streams"): MPQ archives produced by some third-party tools write raw
// deflate under the 0x02 bit instead of a zlib-framed stream.
func zlibDecompress(data []byte, sizeHint int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err == nil {
		out, readErr := readAll(r, sizeHint)
		_ = r.Close()
		if readErr == nil {
			return out, nil
		}
	}

	// Fall back to raw deflate (no zlib 2-byte header / Adler32 trailer).
	fr := flateNewReader(data)
	out, readErr := readAll(fr, sizeHint)
	_ = fr.Close()
	if readErr != nil {
		return nil, werr.Wrap(werr.CompressionError, "zlib/deflate", readErr)
	}
	return out, nil
}

func zlibCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
