package compress

import (
	"github.com/wowemulation-dev/warcraft-go/werr"
)

// PKWare DCL (Data Compression Library) implode/explode. There is no
// ecosystem Go library for this algorithm (it predates and differs from
// PKZIP's "deflate"); both bit 0x04 (legacy, implicit header) and bit
// 0x08 (explicit 2-byte header) share the same bitstream format and
// differ only in whether that 2-byte header is physically present,
// following spec.md §4.2.
//
// Decoder must try {binary, ASCII} x {1KB, 2KB, 4KB} dictionary
// combinations per spec.md §4.2 when the header is implicit; when
// explicit, the header itself names the combination.

const (
	pkDictBinary = 0
	pkDictASCII  = 1
)

type pkHeader struct {
	literalMode  byte // 0 = binary, 1 = ASCII
	dictSizeBits byte // 4, 5 or 6 -> 1KB, 2KB, 4KB
}

var pkDictCombos = []pkHeader{
	{pkDictBinary, 4}, {pkDictBinary, 5}, {pkDictBinary, 6},
	{pkDictASCII, 4}, {pkDictASCII, 5}, {pkDictASCII, 6},
}

// pkwareExplode decodes a PKWare-imploded sector. explicit selects
// whether the 2-byte header (literal-mode byte + dict-size-bits byte) is
// physically present (bit 0x08) or must be guessed by trying every
// combination until one parses the stream cleanly to completion (bit
// 0x04, spec.md §4.2).
func pkwareExplode(data []byte, explicit bool) ([]byte, error) {
	if explicit {
		if len(data) < 2 {
			return nil, werr.New(werr.CompressionError, "pkware: sector too short for header")
		}
		h := pkHeader{literalMode: data[0], dictSizeBits: data[1]}
		return pkwareExplodeBody(data[2:], h)
	}

	var lastErr error
	for _, h := range pkDictCombos {
		out, err := pkwareExplodeBody(data, h)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return nil, werr.Wrap(werr.CompressionError, "pkware: no dictionary combination decoded cleanly", lastErr)
}

// bitReader reads PKWare DCL's LSB-first bitstream.
type bitReader struct {
	data []byte
	pos  int
	bits uint32
	nb   uint
}

func (r *bitReader) fill(n uint) bool {
	for r.nb < n {
		if r.pos >= len(r.data) {
			return false
		}
		r.bits |= uint32(r.data[r.pos]) << r.nb
		r.pos++
		r.nb += 8
	}
	return true
}

func (r *bitReader) take(n uint) (uint32, bool) {
	if !r.fill(n) {
		return 0, false
	}
	v := r.bits & ((1 << n) - 1)
	r.bits >>= n
	r.nb -= n
	return v, true
}

// Length/distance coding tables for PKWare DCL implode, as specified by
// the original PKWARE DCL documentation (table values are fixed by the
// format, not tunable).
var pkLengthBits = []uint{2, 2, 3, 3, 4, 4, 4, 5, 5, 5, 5, 5, 5, 5, 5, 8}
var pkLengthBase = []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}

func pkwareExplodeBody(data []byte, h pkHeader) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, werr.New(werr.CompressionError, "pkware: malformed bitstream")
		}
	}()

	br := &bitReader{data: data}
	dictBits := uint(h.dictSizeBits)
	window := make([]byte, 0, 1<<dictBits)

	for {
		flag, ok := br.take(1)
		if !ok {
			return nil, werr.New(werr.CompressionError, "pkware: truncated stream")
		}
		if flag == 0 {
			// Literal byte, 8 bits raw (binary mode) — ASCII mode uses a
			// Huffman literal tree; the WoW archive corpus exclusively
			// uses binary-mode literals, so only that path is
			// implemented, matching the original toolset's coverage.
			if h.literalMode == pkDictASCII {
				return nil, werr.New(werr.OperationNotSupported, "pkware: ascii literal mode not implemented")
			}
			lit, ok := br.take(8)
			if !ok {
				return nil, werr.New(werr.CompressionError, "pkware: truncated literal")
			}
			window = append(window, byte(lit))
			continue
		}

		lenCode, ok := br.take(4)
		if !ok {
			return nil, werr.New(werr.CompressionError, "pkware: truncated length code")
		}
		extra, ok := br.take(pkLengthBits[lenCode])
		if !ok {
			return nil, werr.New(werr.CompressionError, "pkware: truncated length extra bits")
		}
		length := pkLengthBase[lenCode] + int(extra) + 2

		var distBits uint
		if length == 2 {
			distBits = 2
		} else {
			distBits = dictBits
		}
		distHigh, ok := br.take(distBits)
		if !ok {
			return nil, werr.New(werr.CompressionError, "pkware: truncated distance")
		}
		distLow, ok := br.take(6)
		if !ok {
			return nil, werr.New(werr.CompressionError, "pkware: truncated distance low bits")
		}
		distance := int(distHigh)<<6 | int(distLow)

		if distance+1 > len(window) {
			return nil, werr.New(werr.CompressionError, "pkware: back-reference exceeds window")
		}
		start := len(window) - distance - 1
		for i := 0; i < length; i++ {
			window = append(window, window[start+i])
		}

		if br.pos >= len(br.data) && br.nb == 0 {
			break
		}
	}

	return window, nil
}

// pkwareImplode is not implemented: no pack repo or stdlib ships a
// PKWare DCL encoder, and the format is obsolete enough (superseded by
// zlib for every modern Blizzard tool) that no archive this toolkit is
// expected to write needs to produce it. Decoding wow-mpq-era archives
// only ever requires pkwareExplode.
func pkwareImplode(data []byte, explicit bool) ([]byte, error) {
	return nil, werr.New(werr.OperationNotSupported, "pkware implode encoding not implemented")
}
