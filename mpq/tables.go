package mpq

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/wowemulation-dev/warcraft-go/werr"
)

// Hash table entry sentinel values for hashEntry.blockIndex (spec.md §4.4).
const (
	hashEntryEmpty   = 0xFFFFFFFF
	hashEntryDeleted = 0xFFFFFFFE
)

// hashEntry is one 16-byte entry of the legacy hash table (spec.md §3.1,
// §4.4).
type hashEntry struct {
	nameHashA  uint32
	nameHashB  uint32
	locale     uint16
	platform   uint16
	blockIndex uint32
}

// blockEntry.flags bitmask constants, per spec.md §4.4.
const (
	beExists        = 0x80000000
	beCompressMulti = 0x00000200
	beCompressPK    = 0x00000100
	beEncrypted     = 0x00010000
	beFixKey        = 0x00020000
	beSingleUnit    = 0x01000000
	beSectorCRC     = 0x04000000
	beDeleteMarker  = 0x02000000
	bePatch         = 0x00100000

	beAnyCompress = beCompressMulti | beCompressPK
)

// blockEntry is one 16-byte entry of the legacy block table (spec.md
// §3.1, §4.4).
type blockEntry struct {
	filePosLo      uint32
	compressedSize uint32
	fileSize       uint32
	flags          uint32
}

const tableEntrySize = 16

// readHashTable reads and decrypts the N 16-byte hash table entries at
// the given absolute offset.
func readHashTable(r io.ReadSeeker, offset int64, entries uint32) ([]hashEntry, error) {
	buf := make([]byte, int64(entries)*tableEntrySize)
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return nil, werr.Wrap(werr.IoError, "mpq: seek to hash table", err)
	}
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, werr.Wrap(werr.IoError, "mpq: read hash table", err)
	}
	decryptWords(buf, hashTableKey)

	out := make([]hashEntry, entries)
	for i := range out {
		e := buf[i*tableEntrySize:]
		out[i] = hashEntry{
			nameHashA:  binary.LittleEndian.Uint32(e[0:]),
			nameHashB:  binary.LittleEndian.Uint32(e[4:]),
			locale:     binary.LittleEndian.Uint16(e[8:]),
			platform:   binary.LittleEndian.Uint16(e[10:]),
			blockIndex: binary.LittleEndian.Uint32(e[12:]),
		}
	}
	return out, nil
}

// readBlockTable reads and decrypts the N 16-byte block table entries at
// the given absolute offset.
func readBlockTable(r io.ReadSeeker, offset int64, entries uint32) ([]blockEntry, error) {
	buf := make([]byte, int64(entries)*tableEntrySize)
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return nil, werr.Wrap(werr.IoError, "mpq: seek to block table", err)
	}
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, werr.Wrap(werr.IoError, "mpq: read block table", err)
	}
	decryptWords(buf, blockTableKey)

	out := make([]blockEntry, entries)
	for i := range out {
		e := buf[i*tableEntrySize:]
		out[i] = blockEntry{
			filePosLo:      binary.LittleEndian.Uint32(e[0:]),
			compressedSize: binary.LittleEndian.Uint32(e[4:]),
			fileSize:       binary.LittleEndian.Uint32(e[8:]),
			flags:          binary.LittleEndian.Uint32(e[12:]),
		}
	}
	return out, nil
}

// readHiBlockTable reads the unencrypted, uncompressed array of 16-bit
// high halves of the block offset, present only for archives that exceed
// 4GB (spec.md §3.1, §4.4).
func readHiBlockTable(r io.ReadSeeker, offset int64, entries uint32) ([]uint16, error) {
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return nil, werr.Wrap(werr.IoError, "mpq: seek to hi-block table", err)
	}
	out := make([]uint16, entries)
	if err := binary.Read(r, binary.LittleEndian, out); err != nil {
		return nil, werr.Wrap(werr.IoError, "mpq: read hi-block table", err)
	}
	return out, nil
}

// blockOffset computes the full 64-bit file offset of a block, combining
// the low 32 bits with the optional hi-block high 16 bits (spec.md
// §3.1).
func blockOffset(be blockEntry, hi []uint16, index int) int64 {
	off := int64(be.filePosLo)
	if hi != nil && index < len(hi) {
		off += int64(hi[index]) << 32
	}
	return off
}

// encodeHashTable and encodeBlockTable serialize and encrypt hash or block
// table entries for the builder/mutator (spec.md §4.6).
func encodeHashTable(entries []hashEntry) []byte {
	var buf bytes.Buffer
	for _, e := range entries {
		_ = binary.Write(&buf, binary.LittleEndian, e)
	}
	out := buf.Bytes()
	encryptWords(out, hashTableKey)
	return out
}

func encodeBlockTable(entries []blockEntry) []byte {
	var buf bytes.Buffer
	for _, e := range entries {
		_ = binary.Write(&buf, binary.LittleEndian, e)
	}
	out := buf.Bytes()
	encryptWords(out, blockTableKey)
	return out
}

// nextPowerOfTwo returns the smallest power of two >= n, used to size the
// hash table per StormLib's load-factor convention (spec.md §4.6: next
// power of two >= 4/3 * count).
func nextPowerOfTwo(n uint32) uint32 {
	if n == 0 {
		return 1
	}
	p := uint32(1)
	for p < n {
		p <<= 1
	}
	return p
}
