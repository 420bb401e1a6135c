package mpq

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"hash/crc32"

	"github.com/wowemulation-dev/warcraft-go/werr"
)

// (attributes) flag bits, per spec.md §4.7 / the StormLib convention it
// follows: an 8-byte header followed by one flat array per enabled flag,
// each array holding one entry per block table slot in block-table order.
const (
	attrFlagCRC32    = 0x00000001
	attrFlagTimeStamp = 0x00000002
	attrFlagMD5      = 0x00000004
	attrFlagPatchBit = 0x00000008

	attributesVersion = 100
)

// Attributes holds the decoded (attributes) special file.
type Attributes struct {
	Version   uint32
	Flags     uint32
	CRC32     []uint32 // present iff Flags&attrFlagCRC32
	TimeStamp []uint64 // present iff Flags&attrFlagTimeStamp (Windows FILETIME)
	MD5       [][16]byte
	PatchBit  []bool
}

// ParseAttributes decodes a raw (attributes) file body. Trailing bytes
// beyond the last fully populated array are tolerated and ignored: some
// real-world archives carry a patch-bit array one byte short of the full
// block count, per spec.md §9's "attributes trailing-byte patch-bit array
// tolerance" edge case.
func ParseAttributes(data []byte, blockCount int) (*Attributes, error) {
	if len(data) < 8 {
		return nil, werr.New(werr.InvalidFormat, "mpq: attributes header truncated")
	}
	a := &Attributes{
		Version: binary.LittleEndian.Uint32(data[0:4]),
		Flags:   binary.LittleEndian.Uint32(data[4:8]),
	}
	pos := 8

	if a.Flags&attrFlagCRC32 != 0 {
		a.CRC32 = make([]uint32, blockCount)
		for i := range a.CRC32 {
			if pos+4 > len(data) {
				break
			}
			a.CRC32[i] = binary.LittleEndian.Uint32(data[pos:])
			pos += 4
		}
	}
	if a.Flags&attrFlagTimeStamp != 0 {
		a.TimeStamp = make([]uint64, blockCount)
		for i := range a.TimeStamp {
			if pos+8 > len(data) {
				break
			}
			a.TimeStamp[i] = binary.LittleEndian.Uint64(data[pos:])
			pos += 8
		}
	}
	if a.Flags&attrFlagMD5 != 0 {
		a.MD5 = make([][16]byte, blockCount)
		for i := range a.MD5 {
			if pos+16 > len(data) {
				break
			}
			copy(a.MD5[i][:], data[pos:pos+16])
			pos += 16
		}
	}
	if a.Flags&attrFlagPatchBit != 0 {
		a.PatchBit = make([]bool, blockCount)
		for i := range a.PatchBit {
			byteIdx := pos + i/8
			if byteIdx >= len(data) {
				// Tolerated: a short patch-bit array leaves the
				// remaining entries false rather than erroring.
				break
			}
			a.PatchBit[i] = data[byteIdx]&(1<<uint(i%8)) != 0
		}
	}

	return a, nil
}

// EncodeAttributes serializes Attributes back into an (attributes) file
// body, in the same flag-ordered array layout ParseAttributes expects.
func EncodeAttributes(a *Attributes) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, a.Version)
	_ = binary.Write(&buf, binary.LittleEndian, a.Flags)

	if a.Flags&attrFlagCRC32 != 0 {
		for _, v := range a.CRC32 {
			_ = binary.Write(&buf, binary.LittleEndian, v)
		}
	}
	if a.Flags&attrFlagTimeStamp != 0 {
		for _, v := range a.TimeStamp {
			_ = binary.Write(&buf, binary.LittleEndian, v)
		}
	}
	if a.Flags&attrFlagMD5 != 0 {
		for _, v := range a.MD5 {
			buf.Write(v[:])
		}
	}
	if a.Flags&attrFlagPatchBit != 0 {
		packed := make([]byte, (len(a.PatchBit)+7)/8)
		for i, v := range a.PatchBit {
			if v {
				packed[i/8] |= 1 << uint(i%8)
			}
		}
		buf.Write(packed)
	}
	return buf.Bytes()
}

// BuildAttributes computes fresh CRC32 and MD5 digests for a set of raw
// (uncompressed) file bodies, in block table order, for the builder to
// attach as a new (attributes) special file.
func BuildAttributes(fileBodies [][]byte, includeMD5 bool) *Attributes {
	a := &Attributes{
		Version: attributesVersion,
		Flags:   attrFlagCRC32,
		CRC32:   make([]uint32, len(fileBodies)),
	}
	for i, body := range fileBodies {
		a.CRC32[i] = crc32.ChecksumIEEE(body)
	}
	if includeMD5 {
		a.Flags |= attrFlagMD5
		a.MD5 = make([][16]byte, len(fileBodies))
		for i, body := range fileBodies {
			a.MD5[i] = md5.Sum(body)
		}
	}
	return a
}
