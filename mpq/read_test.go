package mpq

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wowemulation-dev/warcraft-go/werr"
)

// buildSectorCRCArchive assembles a minimal, unencrypted, uncompressed
// v1 archive holding one multi-sector SECTOR_CRC file, laid out the way
// decompressSectors expects to read it back: an offset table (one entry
// per sector boundary plus the CRC-table start, plus one trailing entry
// StormLib also writes but this package never parses), the raw sector
// bytes, then one CRC32 per sector. If corruptSector >= 0, a single bit
// in that sector's stored bytes is flipped after its CRC is computed, so
// the CRC table records the sector's original, now-stale checksum.
func buildSectorCRCArchive(t *testing.T, name string, sectorData [][]byte, corruptSector int) []byte {
	t.Helper()

	sectorCount := len(sectorData)
	tableEntries := sectorCount + 2 // sectorCount+1 offsets plus StormLib's trailing total-size entry
	tableLen := tableEntries * 4

	var body bytes.Buffer
	body.Write(make([]byte, tableLen)) // placeholder, filled in below

	offsets := make([]uint32, sectorCount+1)
	cur := uint32(tableLen)
	for i, sd := range sectorData {
		offsets[i] = cur
		body.Write(sd)
		cur += uint32(len(sd))
	}
	offsets[sectorCount] = cur // start of the CRC table

	crcs := make([]uint32, sectorCount)
	for i, sd := range sectorData {
		crcs[i] = crc32.ChecksumIEEE(sd)
	}
	for _, c := range crcs {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], c)
		body.Write(b[:])
	}

	raw := body.Bytes()
	for i, off := range offsets {
		binary.LittleEndian.PutUint32(raw[i*4:], off)
	}
	// Trailing StormLib-only entry: total size including the CRC table.
	binary.LittleEndian.PutUint32(raw[sectorCount*4+4:], uint32(len(raw)))

	if corruptSector >= 0 {
		start := int(offsets[corruptSector])
		raw[start] ^= 0x01
	}

	var fileSize uint32
	for _, sd := range sectorData {
		fileSize += uint32(len(sd))
	}

	be := blockEntry{
		filePosLo:      112,
		compressedSize: uint32(len(raw)),
		fileSize:       fileSize,
		flags:          beExists | beSectorCRC,
	}

	hashTableSize := uint32(4)
	hashEntries := make([]hashEntry, hashTableSize)
	for i := range hashEntries {
		hashEntries[i] = hashEntry{blockIndex: hashEntryEmpty}
	}
	tableOffset, nameA, nameB := FileNameHash(name)
	hashEntries[tableOffset%hashTableSize] = hashEntry{nameHashA: nameA, nameHashB: nameB, blockIndex: 0}

	hashTableBytes := encodeHashTable(hashEntries)
	blockTableBytes := encodeBlockTable([]blockEntry{be})

	headerBytes := buildHeader(headerFields{
		formatVersion:     0,
		headerSize:        headerSizeV1,
		sectorSizeShift:   0,
		hashTableOffset:   headerSizeV1,
		blockTableOffset:  headerSizeV1 + uint32(len(hashTableBytes)),
		hashTableEntries:  hashTableSize,
		blockTableEntries: 1,
		archiveSize:       headerSizeV1 + uint32(len(hashTableBytes)) + uint32(len(blockTableBytes)) + uint32(len(raw)),
	})
	require.Equal(t, 112, len(headerBytes)+len(hashTableBytes)+len(blockTableBytes), "test fixture assumes file data starts at offset 112")

	var archive bytes.Buffer
	archive.Write(headerBytes)
	archive.Write(hashTableBytes)
	archive.Write(blockTableBytes)
	archive.Write(raw)
	return archive.Bytes()
}

func TestReadFileSectorCRCMismatchReturnsChecksumMismatch(t *testing.T) {
	sectors := [][]byte{
		bytes.Repeat([]byte{0xAA}, 512),
		bytes.Repeat([]byte{0xBB}, 512),
		bytes.Repeat([]byte{0xCC}, 76),
	}
	archiveBytes := buildSectorCRCArchive(t, "test.dat", sectors, 1)

	a, err := OpenReader(bytes.NewReader(archiveBytes), OpenOptions{})
	require.NoError(t, err)

	_, err = a.ReadFile("test.dat", ReadOptions{})
	require.Error(t, err)
	require.True(t, werr.Is(err, werr.ChecksumMismatch), "expected ChecksumMismatch, got %v", err)
}

func TestReadFileMultiSectorSectorCRCRoundTrip(t *testing.T) {
	sectors := [][]byte{
		bytes.Repeat([]byte{0xAA}, 512),
		bytes.Repeat([]byte{0xBB}, 512),
		bytes.Repeat([]byte{0xCC}, 76),
	}
	archiveBytes := buildSectorCRCArchive(t, "test.dat", sectors, -1)

	a, err := OpenReader(bytes.NewReader(archiveBytes), OpenOptions{})
	require.NoError(t, err)

	data, err := a.ReadFile("test.dat", ReadOptions{})
	require.NoError(t, err)
	require.Equal(t, append(append(append([]byte{}, sectors[0]...), sectors[1]...), sectors[2]...), data)
}
