package mpq

import (
	"encoding/binary"
	"io"

	"github.com/wowemulation-dev/warcraft-go/mpq/compress"
	"github.com/wowemulation-dev/warcraft-go/werr"
)

// HET/BET signatures, per spec.md §6.
var (
	hetSignature = [4]byte{'H', 'E', 'T', 0x1A}
	betSignature = [4]byte{'B', 'E', 'T', 0x1A}
)

// hetTable is the extended hash table (v3+), bucket_count short hashes
// plus a bit-packed index array into the BET table (spec.md §4.4).
type hetTable struct {
	hashTableSize   uint32 // entries allocated (may exceed bucket count)
	bucketCount     uint32
	hashEntrySize   uint32 // bits per stored hash (variable 40-64)
	totalIndexSize  uint32 // bits per BET index, incl. extra bit
	indexSizeExtra  uint32
	indexSize       uint32
	tableSize       uint32
	nameHashes      []uint8  // bucketCount short hashes ("name hash 1")
	fileIndices     []uint32 // bucketCount BET indices, unpacked
}

// betTable is the extended block table (v3+): a bit-packed array of
// per-file fields whose widths are header-described rather than fixed
// (spec.md §4.4).
type betTable struct {
	tableEntrySize    uint32
	bitIndexFilePos   uint32
	bitIndexFileSize  uint32
	bitIndexCmpSize   uint32
	bitIndexFlagIndex uint32
	bitIndexUnknown   uint32
	bitCountFilePos   uint32
	bitCountFileSize  uint32
	bitCountCmpSize   uint32
	bitCountFlagIndex uint32
	bitCountUnknown   uint32
	totalBetHashSize  uint32
	betHashSizeExtra  uint32
	betHashSize       uint32
	betHashArraySize  uint32
	flagCount         uint32
	flags             []uint32
	entryCount        uint32
	entries           []betEntry

	headerEnd int // byte offset of the first bit-packed entry, within the decompressed payload
}

type betEntry struct {
	filePos        uint64
	fileSize       uint64
	compressedSize uint64
	flagIndex      uint32
	betHash        uint64
}

// msbBitReader reads an MSB-first bit stream, as the BET/HET bit-packed
// fields require (spec.md §4.4: "Entries are read MSB-first into a bit
// stream").
type msbBitReader struct {
	data []byte
	pos  int // bit position
}

func (r *msbBitReader) readBits(n uint32) uint64 {
	var v uint64
	for i := uint32(0); i < n; i++ {
		byteIdx := r.pos / 8
		bitIdx := 7 - uint(r.pos%8)
		var bit uint64
		if byteIdx < len(r.data) {
			bit = uint64((r.data[byteIdx] >> bitIdx) & 1)
		}
		v = (v << 1) | bit
		r.pos++
	}
	return v
}

// readExtTable reads and decrypts an HET or BET table region. maxLen
// bounds how much of the file past offset may be read (typically the
// remainder of the archive, since neither table records its own
// compressed size anywhere else); the header's own dataSize field
// (read after decrypting) then trims the buffer down to the table's
// actual compressed extent. offset and key are the table's absolute
// file offset and well-known decryption key.
func readExtTable(r io.ReadSeeker, offset int64, maxLen int64, key uint32, wantSig [4]byte) ([]byte, error) {
	if offset == 0 || maxLen <= 0 {
		return nil, nil
	}
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return nil, werr.Wrap(werr.IoError, "mpq: seek to ext table", err)
	}
	buf := make([]byte, maxLen)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, werr.Wrap(werr.IoError, "mpq: read ext table", err)
	}
	buf = buf[:n]
	decryptWords(buf, key)

	if len(buf) < 16 || [4]byte{buf[0], buf[1], buf[2], buf[3]} != wantSig {
		return nil, werr.New(werr.InvalidFormat, "mpq: ext table signature mismatch")
	}
	dataSize := binary.LittleEndian.Uint32(buf[8:12])
	if int64(dataSize) > int64(len(buf)) {
		return nil, werr.New(werr.InvalidFormat, "mpq: ext table data size exceeds available bytes")
	}
	return buf[:dataSize], nil
}

// decompressExtTable expands an HET/BET table body, which is compressed
// with the same generic per-sector codec used for file data (spec.md
// §4.4); the leading 16-byte common header (signature, version, dataSize,
// tableSize) is always stored as-is. uncompressedSize is the header's own
// tableSize field, the size of header+body once expanded; when the raw
// buffer is already that long the body is stored uncompressed, matching
// how the per-sector codec treats compressedSize == uncompressedSize
// elsewhere in the archive.
func decompressExtTable(buf []byte, uncompressedSize uint32) ([]byte, error) {
	const commonHeaderSize = 16
	if len(buf) < commonHeaderSize {
		return nil, werr.New(werr.InvalidFormat, "mpq: ext table shorter than common header")
	}
	if uint32(len(buf)) >= uncompressedSize {
		return buf[:uncompressedSize], nil
	}

	body := buf[commonHeaderSize:]
	wantBodySize := int(uncompressedSize) - commonHeaderSize
	if len(body) == 0 {
		return nil, werr.New(werr.InvalidFormat, "mpq: ext table missing compressed body")
	}
	decompressedBody, err := compress.Decompress(body[1:], body[0], wantBodySize)
	if err != nil {
		return nil, werr.Wrap(werr.CompressionError, "mpq: decompress ext table body", err)
	}

	out := make([]byte, commonHeaderSize+len(decompressedBody))
	copy(out, buf[:commonHeaderSize])
	copy(out[commonHeaderSize:], decompressedBody)
	return out, nil
}

// parseHetTable parses a decrypted HET table payload.
func parseHetTable(buf []byte) (*hetTable, error) {
	if len(buf) < 16+28 {
		return nil, werr.New(werr.InvalidFormat, "mpq: het table too short")
	}
	// common header: signature, version, dataSize, tableSize (16 bytes)
	r := binReader{buf: buf, pos: 16}

	t := &hetTable{}
	t.hashTableSize = r.u32()
	t.bucketCount = r.u32()
	t.hashEntrySize = r.u32()
	t.totalIndexSize = r.u32()
	t.indexSizeExtra = r.u32()
	t.indexSize = r.u32()
	t.tableSize = r.u32()
	if r.err != nil {
		return nil, werr.Wrap(werr.InvalidFormat, "mpq: het header", r.err)
	}

	nameHashes := buf[r.pos : r.pos+int(t.bucketCount)]
	t.nameHashes = append([]uint8(nil), nameHashes...)
	r.pos += int(t.bucketCount)

	indexBytes := (int(t.bucketCount)*int(t.totalIndexSize) + 7) / 8
	if r.pos+indexBytes > len(buf) {
		return nil, werr.New(werr.InvalidFormat, "mpq: het index array truncated")
	}
	bitR := &msbBitReader{data: buf[r.pos : r.pos+indexBytes]}
	t.fileIndices = make([]uint32, t.bucketCount)
	for i := range t.fileIndices {
		t.fileIndices[i] = uint32(bitR.readBits(t.totalIndexSize))
	}

	return t, nil
}

// parseBetTable parses a decrypted BET table payload.
func parseBetTable(buf []byte) (*betTable, error) {
	if len(buf) < 16+60 {
		return nil, werr.New(werr.InvalidFormat, "mpq: bet table too short")
	}
	r := binReader{buf: buf, pos: 16}

	t := &betTable{}
	t.tableEntrySize = r.u32()
	t.bitIndexFilePos = r.u32()
	t.bitIndexFileSize = r.u32()
	t.bitIndexCmpSize = r.u32()
	t.bitIndexFlagIndex = r.u32()
	t.bitIndexUnknown = r.u32()
	t.bitCountFilePos = r.u32()
	t.bitCountFileSize = r.u32()
	t.bitCountCmpSize = r.u32()
	t.bitCountFlagIndex = r.u32()
	t.bitCountUnknown = r.u32()
	t.totalBetHashSize = r.u32()
	t.betHashSizeExtra = r.u32()
	t.betHashSize = r.u32()
	t.betHashArraySize = r.u32()
	t.flagCount = r.u32()
	if r.err != nil {
		return nil, werr.Wrap(werr.InvalidFormat, "mpq: bet header", r.err)
	}

	t.flags = make([]uint32, t.flagCount)
	for i := range t.flags {
		t.flags[i] = r.u32()
	}
	if r.err != nil {
		return nil, werr.Wrap(werr.InvalidFormat, "mpq: bet flags array", r.err)
	}

	// Entry count is not stored directly in this minimal header form; the
	// caller derives it from the owning archive's block table entry
	// count, since BET entries correspond 1:1 to block table entries.
	t.headerEnd = r.pos
	return t, nil
}

// decodeBetEntries unpacks entryCount bit-packed file records plus the
// trailing per-entry BET hash array, given the entry count taken from the
// archive's block table (BET entries correspond 1:1 to block table
// entries, a count the BET header itself does not redundantly store).
// entryBits holds tableEntrySize*entryCount bits of fixed fields followed
// by totalBetHashSize*entryCount bits of hash fields, matching the two
// back-to-back bit-packed arrays real archives lay out (spec.md §4.4).
func decodeBetEntries(t *betTable, entryBits []byte, entryCount uint32) {
	t.entryCount = entryCount
	t.entries = make([]betEntry, entryCount)

	fieldsR := &msbBitReader{data: entryBits}
	for i := range t.entries {
		t.entries[i] = betEntry{
			filePos:        fieldsR.readBits(t.bitCountFilePos),
			fileSize:       fieldsR.readBits(t.bitCountFileSize),
			compressedSize: fieldsR.readBits(t.bitCountCmpSize),
			flagIndex:      uint32(fieldsR.readBits(t.bitCountFlagIndex)),
		}
		fieldsR.readBits(t.bitCountUnknown)
	}

	hashArrayStart := (fieldsR.pos + 7) / 8
	if hashArrayStart < len(entryBits) {
		hashR := &msbBitReader{data: entryBits[hashArrayStart:]}
		for i := range t.entries {
			t.entries[i].betHash = hashR.readBits(t.totalBetHashSize)
		}
	}
}

// binReader is a tiny little-endian cursor over a byte slice used by the
// HET/BET header parsers, sparing them repetitive bounds-checked slicing.
type binReader struct {
	buf []byte
	pos int
	err error
}

func (r *binReader) u32() uint32 {
	if r.err != nil || r.pos+4 > len(r.buf) {
		if r.err == nil {
			r.err = io.ErrUnexpectedEOF
		}
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}
