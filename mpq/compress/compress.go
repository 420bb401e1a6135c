// Package compress implements the sector compression codecs dispatched by
// a method-mask byte, per spec.md §4.2. A compressed sector begins with a
// single mask byte whose bits select one or more algorithms; multi-bit
// masks denote a fixed-order pipeline with ADPCM always innermost.
package compress

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/wowemulation-dev/warcraft-go/werr"
)

// Method-mask bits, per spec.md §4.2's dispatch table.
const (
	MethodHuffman      = 0x01
	MethodZlib         = 0x02
	MethodImplodeLegacy = 0x04
	MethodImplode      = 0x08
	MethodBzip2        = 0x10
	MethodSparse       = 0x20
	MethodADPCMMono    = 0x40
	MethodADPCMStereo  = 0x80

	// MethodLZMA is an exact byte value, not a bit field: it never
	// combines with the bits above.
	MethodLZMA = 0x12
)

// pipeline order for multi-bit masks: ADPCM is always innermost (closest
// to raw audio), everything else is an outer generic compressor applied
// after it during compression / before it during decompression, in this
// fixed order (spec.md §4.2).
var pipelineOrder = []byte{
	MethodSparse,
	MethodBzip2,
	MethodImplode,
	MethodImplodeLegacy,
	MethodZlib,
	MethodHuffman,
	MethodADPCMStereo,
	MethodADPCMMono,
}

// Decompress reverses Compress for the given method mask. expectedSize is
// a hint for buffer pre-allocation only (spec.md §4.2: "not an equality
// constraint — some real archives understate output size").
func Decompress(data []byte, method byte, expectedSize int) ([]byte, error) {
	if method == MethodLZMA {
		return decompressLZMA(data, expectedSize)
	}

	cur := data
	for _, bit := range pipelineOrder {
		if method&bit == 0 {
			continue
		}
		var err error
		cur, err = decodeOne(bit, cur, expectedSize)
		if err != nil {
			return nil, werr.Wrap(werr.CompressionError, methodName(bit), err)
		}
	}
	return cur, nil
}

// Compress applies the given method mask to data, returning a
// method-byte-prefixed buffer only if the result is strictly smaller than
// the input; otherwise it returns data unchanged, unprefixed (spec.md
// §4.2: callers infer "stored" from compressed size == logical size).
func Compress(data []byte, method byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	var cur []byte
	var err error
	if method == MethodLZMA {
		cur, err = compressLZMA(data)
		if err != nil {
			return nil, werr.Wrap(werr.CompressionError, "lzma", err)
		}
	} else {
		cur = data
		// Encode in reverse pipeline order (ADPCM innermost means it is
		// applied first on the way in).
		for i := len(pipelineOrder) - 1; i >= 0; i-- {
			bit := pipelineOrder[i]
			if method&bit == 0 {
				continue
			}
			cur, err = encodeOne(bit, cur)
			if err != nil {
				return nil, werr.Wrap(werr.CompressionError, methodName(bit), err)
			}
		}
	}

	if len(cur)+1 >= len(data) {
		return data, nil
	}
	out := make([]byte, 0, len(cur)+1)
	out = append(out, method)
	out = append(out, cur...)
	return out, nil
}

func decodeOne(bit byte, data []byte, expectedSize int) ([]byte, error) {
	switch bit {
	case MethodHuffman:
		return huffmanDecode(data)
	case MethodZlib:
		return zlibDecompress(data, expectedSize)
	case MethodImplode, MethodImplodeLegacy:
		return pkwareExplode(data, bit == MethodImplode)
	case MethodBzip2:
		return bzip2Decompress(data)
	case MethodSparse:
		return sparseDecode(data, expectedSize)
	case MethodADPCMMono:
		return adpcmDecode(data, 1)
	case MethodADPCMStereo:
		return adpcmDecode(data, 2)
	default:
		return nil, errors.Errorf("unknown method bit %#x", bit)
	}
}

func encodeOne(bit byte, data []byte) ([]byte, error) {
	switch bit {
	case MethodHuffman:
		// Spec.md §4.2 explicitly allows the compression side of Huffman
		// to be not-implemented; this mirrors the teacher's own
		// not-yet-implemented sentinels for explosion/decryption of the
		// packed offset table.
		return nil, werr.New(werr.OperationNotSupported, "huffman encode not implemented")
	case MethodZlib:
		return zlibCompress(data)
	case MethodImplode, MethodImplodeLegacy:
		return pkwareImplode(data, bit == MethodImplode)
	case MethodBzip2:
		// The Go standard library ships compress/bzip2 as decode-only and
		// no pack repo wires a bzip2 encoder (see DESIGN.md); treated the
		// same as Huffman's not-implemented compression side.
		return nil, werr.New(werr.OperationNotSupported, "bzip2 encode not implemented")
	case MethodSparse:
		return sparseEncode(data), nil
	case MethodADPCMMono:
		return adpcmEncode(data, 1), nil
	case MethodADPCMStereo:
		return adpcmEncode(data, 2), nil
	default:
		return nil, errors.Errorf("unknown method bit %#x", bit)
	}
}

func methodName(bit byte) string {
	switch bit {
	case MethodHuffman:
		return "huffman"
	case MethodZlib:
		return "zlib"
	case MethodImplodeLegacy:
		return "pkware-implode-legacy"
	case MethodImplode:
		return "pkware-implode"
	case MethodBzip2:
		return "bzip2"
	case MethodSparse:
		return "sparse"
	case MethodADPCMMono:
		return "adpcm-mono"
	case MethodADPCMStereo:
		return "adpcm-stereo"
	case MethodLZMA:
		return "lzma"
	default:
		return "unknown"
	}
}

var log = logrus.StandardLogger()

// SetLogger overrides the package-level logger used for non-fatal codec
// warnings (e.g. falling back from raw LZMA to XZ framing).
func SetLogger(l *logrus.Logger) {
	log = l
}

func readAll(r io.Reader, sizeHint int) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, sizeHint))
	_, err := io.Copy(buf, r)
	return buf.Bytes(), err
}
