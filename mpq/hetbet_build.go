package mpq

import "encoding/binary"

// msbBitWriter writes an MSB-first bit stream, the mirror of msbBitReader,
// so encoded HET/BET entries round-trip through the same bit layout
// parseHetTable/parseBetTable/decodeBetEntries expect (spec.md §4.4).
type msbBitWriter struct {
	buf []byte
	pos int // bit position
}

func (w *msbBitWriter) writeBits(v uint64, n uint32) {
	for i := int(n) - 1; i >= 0; i-- {
		byteIdx := w.pos / 8
		for byteIdx >= len(w.buf) {
			w.buf = append(w.buf, 0)
		}
		if (v>>uint(i))&1 == 1 {
			w.buf[byteIdx] |= 1 << uint(7-w.pos%8)
		}
		w.pos++
	}
}

// alignToByte pads the stream to the next byte boundary without writing
// any set bits, matching how a reader derives a byte offset from a bit
// position via (pos+7)/8.
func (w *msbBitWriter) alignToByte() {
	if w.pos%8 != 0 {
		w.pos += 8 - w.pos%8
	}
	for w.pos/8 > len(w.buf) {
		w.buf = append(w.buf, 0)
	}
}

func (w *msbBitWriter) bytes() []byte {
	w.alignToByte()
	return w.buf
}

// bitsNeeded returns the number of bits required to represent every value
// in [0, maxVal], with a floor of 1 (a single-entry field still costs a
// bit, matching how StormLib never emits a zero-width bit-packed field).
func bitsNeeded(maxVal uint64) uint32 {
	n := uint32(1)
	for maxVal >= (uint64(1) << n) {
		n++
	}
	return n
}

func putU32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

// hetBetHashBits is the width used for the HET table's bucket-selection
// hash. Real archives tune this per archive to balance table size against
// collision odds; this package always takes the full 64 bits, since bucket
// count alone already controls the collision rate and a fixed width keeps
// the encoder simple without weakening lookups (the stored "name hash 1"
// byte that actually gates a bucket match is independent of this choice).
const hetBetHashBits = 64

// buildHetTable lays out a v3+ HET table's post-common-header payload
// (spec.md §4.4): a fixed 7-field header, bucketCount short hashes, and a
// bit-packed BET index per bucket. betIndices[i] is the BET/block index to
// record for names[i]; the two slices are parallel and the same length.
func buildHetTable(names []string, betIndices []uint32, bucketCount uint32) []byte {
	const emptyBucket = 0xFF

	nameHashes := make([]byte, bucketCount)
	for i := range nameHashes {
		nameHashes[i] = emptyBucket
	}
	fileIndices := make([]uint32, bucketCount)

	maxIndex := uint64(0)
	for _, idx := range betIndices {
		if uint64(idx) > maxIndex {
			maxIndex = uint64(idx)
		}
	}
	totalIndexSize := bitsNeeded(maxIndex)

	for i, name := range names {
		fileHash, nameHash1 := hetHash(name, hetBetHashBits)
		if bucketCount == 0 {
			continue
		}
		start := uint32(fileHash % uint64(bucketCount))
		for j := uint32(0); j < bucketCount; j++ {
			b := (start + j) % bucketCount
			if nameHashes[b] == emptyBucket {
				nameHashes[b] = nameHash1
				fileIndices[b] = betIndices[i]
				break
			}
		}
	}

	idxW := &msbBitWriter{}
	for _, idx := range fileIndices {
		idxW.writeBits(uint64(idx), totalIndexSize)
	}
	indexBytes := idxW.bytes()

	payload := make([]byte, 0, 28+len(nameHashes)+len(indexBytes))
	payload = putU32(payload, bucketCount)       // hashTableSize
	payload = putU32(payload, bucketCount)       // bucketCount
	payload = putU32(payload, hetBetHashBits)    // hashEntrySize
	payload = putU32(payload, totalIndexSize)    // totalIndexSize
	payload = putU32(payload, 0)                 // indexSizeExtra
	payload = putU32(payload, totalIndexSize)    // indexSize
	payload = putU32(payload, uint32(28+len(nameHashes)+len(indexBytes))) // tableSize
	payload = append(payload, nameHashes...)
	payload = append(payload, indexBytes...)
	return payload
}

// buildBetTable lays out a v3+ BET table's post-common-header payload
// (spec.md §4.4): a 16-field header describing bit widths, a deduplicated
// flags array, then the bit-packed fixed fields and hash array for one
// entry per block table entry (BET entries correspond 1:1 to block
// entries, the same assumption decodeBetEntries makes when reading).
func buildBetTable(names []string, blockEntries []blockEntry) []byte {
	n := len(blockEntries)

	flagIndexOf := make(map[uint32]int, n)
	var flags []uint32
	flagIdx := make([]uint32, n)
	for i, be := range blockEntries {
		idx, ok := flagIndexOf[be.flags]
		if !ok {
			idx = len(flags)
			flagIndexOf[be.flags] = idx
			flags = append(flags, be.flags)
		}
		flagIdx[i] = uint32(idx)
	}

	var maxPos, maxSize, maxCmp uint64
	for _, be := range blockEntries {
		if uint64(be.filePosLo) > maxPos {
			maxPos = uint64(be.filePosLo)
		}
		if uint64(be.fileSize) > maxSize {
			maxSize = uint64(be.fileSize)
		}
		if uint64(be.compressedSize) > maxCmp {
			maxCmp = uint64(be.compressedSize)
		}
	}

	bitCountFilePos := bitsNeeded(maxPos)
	bitCountFileSize := bitsNeeded(maxSize)
	bitCountCmpSize := bitsNeeded(maxCmp)
	bitCountFlagIndex := uint32(1)
	if len(flags) > 1 {
		bitCountFlagIndex = bitsNeeded(uint64(len(flags) - 1))
	}
	const bitCountUnknown = uint32(0)

	bitIndexFilePos := uint32(0)
	bitIndexFileSize := bitIndexFilePos + bitCountFilePos
	bitIndexCmpSize := bitIndexFileSize + bitCountFileSize
	bitIndexFlagIndex := bitIndexCmpSize + bitCountCmpSize
	bitIndexUnknown := bitIndexFlagIndex + bitCountFlagIndex
	tableEntrySize := bitIndexUnknown + bitCountUnknown

	fieldsW := &msbBitWriter{}
	for i, be := range blockEntries {
		fieldsW.writeBits(uint64(be.filePosLo), bitCountFilePos)
		fieldsW.writeBits(uint64(be.fileSize), bitCountFileSize)
		fieldsW.writeBits(uint64(be.compressedSize), bitCountCmpSize)
		fieldsW.writeBits(uint64(flagIdx[i]), bitCountFlagIndex)
	}
	entryBits := fieldsW.bytes()

	const totalBetHashSize = hetBetHashBits
	hashW := &msbBitWriter{}
	for _, name := range names {
		fileHash, _ := hetHash(name, totalBetHashSize)
		hashW.writeBits(fileHash, totalBetHashSize)
	}
	hashBytes := hashW.bytes()
	entryBits = append(entryBits, hashBytes...)

	payload := make([]byte, 0, 64+len(flags)*4+len(entryBits))
	payload = putU32(payload, tableEntrySize)
	payload = putU32(payload, bitIndexFilePos)
	payload = putU32(payload, bitIndexFileSize)
	payload = putU32(payload, bitIndexCmpSize)
	payload = putU32(payload, bitIndexFlagIndex)
	payload = putU32(payload, bitIndexUnknown)
	payload = putU32(payload, bitCountFilePos)
	payload = putU32(payload, bitCountFileSize)
	payload = putU32(payload, bitCountCmpSize)
	payload = putU32(payload, bitCountFlagIndex)
	payload = putU32(payload, bitCountUnknown)
	payload = putU32(payload, totalBetHashSize)
	payload = putU32(payload, 0) // betHashSizeExtra
	payload = putU32(payload, totalBetHashSize)
	payload = putU32(payload, uint32(len(hashBytes)))
	payload = putU32(payload, uint32(len(flags)))
	for _, f := range flags {
		payload = putU32(payload, f)
	}
	payload = append(payload, entryBits...)
	return payload
}

// encodeExtTable wraps a HET/BET payload (everything after the common
// 16-byte header) in its common header and encrypts the result, storing it
// uncompressed: dataSize == tableSize tells a reader the table was stored
// rather than compressed (decompressExtTable's "already that long" case),
// which keeps this encoder independent of picking a sector codec for a
// structure that is usually tiny compared to file data anyway.
func encodeExtTable(sig [4]byte, payload []byte, key uint32) []byte {
	// encryptWords processes whole 4-byte words only; pad so the entire
	// buffer (common header included, always a multiple of 4) is covered.
	for len(payload)%4 != 0 {
		payload = append(payload, 0)
	}
	total := uint32(16 + len(payload))
	buf := make([]byte, 0, total)
	buf = append(buf, sig[:]...)
	buf = putU32(buf, 1) // version
	buf = putU32(buf, total)
	buf = putU32(buf, total)
	buf = append(buf, payload...)
	encryptWords(buf, key)
	return buf
}
