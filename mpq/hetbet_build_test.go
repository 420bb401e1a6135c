package mpq

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// buildTestHetBet runs buildHetTable/buildBetTable over a small file set
// and parses the result back through the read-side decoders, mirroring
// what Create's v3+ path does minus the encryption/common-header framing
// (parseHetTable/parseBetTable don't care about that envelope, only
// readExtTable/decompressExtTable do).
func buildTestHetBet(t *testing.T, names []string, blockEntries []blockEntry) (*hetTable, *betTable) {
	t.Helper()

	bucketCount := nextPowerOfTwo(uint32(len(names))*4/3 + 1)
	if bucketCount < 4 {
		bucketCount = 4
	}
	betIndices := make([]uint32, len(names))
	for i := range betIndices {
		betIndices[i] = uint32(i)
	}

	hetPayload := buildHetTable(names, betIndices, bucketCount)
	hetBuf := append(make([]byte, 16), hetPayload...)
	het, err := parseHetTable(hetBuf)
	require.NoError(t, err)

	betPayload := buildBetTable(names, blockEntries)
	betBuf := append(make([]byte, 16), betPayload...)
	bet, err := parseBetTable(betBuf)
	require.NoError(t, err)
	decodeBetEntries(bet, betBuf[bet.headerEnd:], uint32(len(blockEntries)))

	return het, bet
}

func TestHetBetRoundTripResolvesEveryName(t *testing.T) {
	names := []string{"(listfile)", "(attributes)", "unit\\human\\peasant.mdx", "interface\\icons\\inv_misc_bag_08.blp"}
	blockEntries := make([]blockEntry, len(names))
	for i := range blockEntries {
		blockEntries[i] = blockEntry{
			filePosLo:      uint32(i * 1000),
			fileSize:       uint32(500 + i*37),
			compressedSize: uint32(400 + i*31),
			flags:          beExists,
		}
	}

	het, bet := buildTestHetBet(t, names, blockEntries)

	a := &Archive{het: het, bet: bet, blockTable: blockEntries}
	for i, name := range names {
		idx, ok := a.lookupHet(name, localeNeutral)
		require.True(t, ok, "name %q should resolve", name)
		require.Equal(t, uint32(i), idx, "name %q resolved to wrong block index", name)
		require.Equal(t, blockEntries[i].fileSize, uint32(bet.entries[idx].fileSize))
		require.Equal(t, blockEntries[i].compressedSize, uint32(bet.entries[idx].compressedSize))
	}
}

func TestHetBetRoundTripRejectsUnknownName(t *testing.T) {
	names := []string{"a.txt", "b.txt", "c.txt"}
	blockEntries := make([]blockEntry, len(names))
	for i := range blockEntries {
		blockEntries[i] = blockEntry{fileSize: uint32(i + 1), flags: beExists}
	}

	het, bet := buildTestHetBet(t, names, blockEntries)
	a := &Archive{het: het, bet: bet, blockTable: blockEntries}

	_, ok := a.lookupHet("nonexistent.txt", localeNeutral)
	require.False(t, ok)
}

func TestBitsNeeded(t *testing.T) {
	require.Equal(t, uint32(1), bitsNeeded(0))
	require.Equal(t, uint32(1), bitsNeeded(1))
	require.Equal(t, uint32(2), bitsNeeded(2))
	require.Equal(t, uint32(2), bitsNeeded(3))
	require.Equal(t, uint32(3), bitsNeeded(4))
	require.Equal(t, uint32(8), bitsNeeded(255))
	require.Equal(t, uint32(9), bitsNeeded(256))
}

func TestMsbBitWriterReaderRoundTrip(t *testing.T) {
	w := &msbBitWriter{}
	values := []uint64{0, 1, 5, 127, 255, 1000, 0x1FFFF}
	widths := []uint32{1, 1, 3, 7, 8, 16, 17}
	for i, v := range values {
		w.writeBits(v, widths[i])
	}
	buf := w.bytes()

	r := &msbBitReader{data: buf}
	for i, want := range values {
		got := r.readBits(widths[i])
		require.Equal(t, want, got, "value %d", i)
	}
}
