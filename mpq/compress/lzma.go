package compress

import (
	"bytes"
	"encoding/binary"

	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"

	"github.com/wowemulation-dev/warcraft-go/werr"
)

// lzmaPropsSize is the fixed 5-byte LZMA1 properties header (lc/lp/pb
// packed byte + 4-byte little-endian dictionary size) MPQ stores ahead of
// the raw compressed stream. Unlike a standalone .lzma file, MPQ omits
// the classic format's trailing 8-byte uncompressed-size field, so it is
// synthesized here as "unknown" (all-0xFF) before handing the stream to
// ulikunitz/xz/lzma, which only understands the classic container.
const lzmaPropsSize = 5

// decompressLZMA decodes the MPQ raw-LZMA sector format (method byte
// 0x12, an exact value rather than a bit field per spec.md §4.2). On
// failure it retries assuming the sector was instead XZ-framed, since
// some third-party MPQ tools emit a full XZ stream under the same method
// byte (spec.md §4.2: "attempt XZ-framed fallback on decode failure").
func decompressLZMA(data []byte, sizeHint int) ([]byte, error) {
	out, err := decodeRawLZMA(data, sizeHint)
	if err == nil {
		return out, nil
	}

	xr, xzErr := xz.NewReader(bytes.NewReader(data))
	if xzErr != nil {
		return nil, werr.Wrap(werr.CompressionError, "lzma (and xz fallback)", err)
	}
	out, readErr := readAll(xr, sizeHint)
	if readErr != nil {
		return nil, werr.Wrap(werr.CompressionError, "lzma (and xz fallback)", err)
	}
	log.Debugf("mpq/compress: sector decoded via xz fallback after raw lzma failure: %v", err)
	return out, nil
}

func decodeRawLZMA(data []byte, sizeHint int) ([]byte, error) {
	if len(data) < lzmaPropsSize {
		return nil, werr.New(werr.CompressionError, "lzma: sector too short for properties header")
	}

	var classic bytes.Buffer
	classic.Write(data[:lzmaPropsSize])
	var unknownSize [8]byte
	binary.LittleEndian.PutUint64(unknownSize[:], 0xFFFFFFFFFFFFFFFF)
	classic.Write(unknownSize[:])
	classic.Write(data[lzmaPropsSize:])

	r, err := lzma.NewReader(bytes.NewReader(classic.Bytes()))
	if err != nil {
		return nil, err
	}
	return readAll(r, sizeHint)
}

// compressLZMA encodes data using LZMA1 with default properties, writing
// the MPQ raw form (properties header, no trailing size field).
func compressLZMA(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
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

	full := buf.Bytes()
	if len(full) < lzmaPropsSize+8 {
		return nil, werr.New(werr.CompressionError, "lzma: writer produced undersized stream")
	}
	out := make([]byte, 0, len(full)-8)
	out = append(out, full[:lzmaPropsSize]...)
	out = append(out, full[lzmaPropsSize+8:]...)
	return out, nil
}
