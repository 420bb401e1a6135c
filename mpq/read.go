package mpq

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/wowemulation-dev/warcraft-go/mpq/compress"
	"github.com/wowemulation-dev/warcraft-go/werr"
)

// ReadOptions configures ReadFile.
type ReadOptions struct {
	// Locale selects among same-named entries carrying different locale
	// tags (spec.md §4.4). Zero selects the neutral locale.
	Locale uint16
}

// ReadFile extracts and returns the full, decompressed contents of the
// named file from the archive.
func (a *Archive) ReadFile(name string, opts ReadOptions) ([]byte, error) {
	blockIndex, ok := a.lookup(name, opts.Locale)
	if !ok {
		return nil, errFileNotFound(name)
	}
	return a.readBlock(blockIndex, name)
}

// Contains reports whether name resolves to an entry in the archive.
func (a *Archive) Contains(name string, locale uint16) bool {
	_, ok := a.lookup(name, locale)
	return ok
}

func (a *Archive) readBlock(blockIndex uint32, name string) ([]byte, error) {
	if blockIndex >= uint32(len(a.blockTable)) {
		return nil, werr.New(werr.InvalidFormat, "mpq: block index out of range")
	}
	be := a.blockTable[blockIndex]
	if be.flags&beExists == 0 {
		return nil, werr.New(werr.FileNotFound, "mpq: block marked deleted")
	}

	var hi []uint16
	if a.hiBlock != nil {
		hi = a.hiBlock
	}
	offset := a.archiveOffset + blockOffset(be, hi, int(blockIndex))

	sr := io.NewSectionReader(a.rawReaderAt, offset, int64(be.compressedSize))

	raw := make([]byte, be.compressedSize)
	if _, err := io.ReadFull(sr, raw); err != nil {
		return nil, werr.Wrap(werr.IoError, "mpq: read block data", err)
	}

	var key uint32
	if be.flags&beEncrypted != 0 {
		key = fileKey(name, be.filePosLo, be.fileSize, be.flags&beFixKey != 0)
	}

	if be.flags&beSingleUnit != 0 {
		if be.flags&beEncrypted != 0 {
			decryptWords(raw, key)
		}
		return decompressUnit(raw, be.fileSize, be.flags)
	}
	return a.decompressSectors(raw, be, key, name)
}

// decompressUnit expands a single-unit file body (spec.md §4.3): the
// entire file is one logical unit, optionally compressed as a whole.
// Legacy PKWARE-compressed files (beCompressPK without beCompressMulti)
// carry no leading method-mask byte, since the old single-method scheme
// predates the generic per-sector codec dispatch.
func decompressUnit(raw []byte, fileSize uint32, flags uint32) ([]byte, error) {
	if flags&beAnyCompress == 0 || uint32(len(raw)) >= fileSize {
		return raw[:min32(uint32(len(raw)), fileSize)], nil
	}
	if flags&beCompressPK != 0 && flags&beCompressMulti == 0 {
		return compress.Decompress(raw, compress.MethodImplodeLegacy, int(fileSize))
	}
	return compress.Decompress(raw[1:], raw[0], int(fileSize))
}

// decompressSectors expands a multi-sector file body, per spec.md §4.3:
// fixed-size sectors (the archive's sector size, last sector short), each
// independently compressed, addressed by a leading table of sector
// offsets; when beSectorCRC is set the table has one extra entry and a
// CRC32 per sector follows the last sector, at the offset the table's
// final sector boundary names. key is the base per-file key (zero when
// unencrypted); the offset table is decrypted with key-1 and sector i
// with key+i, per spec.md §3.1. name identifies the file in a
// ChecksumMismatch error.
func (a *Archive) decompressSectors(raw []byte, be blockEntry, key uint32, name string) ([]byte, error) {
	sectorSize := a.sectorSize
	sectorCount := int((be.fileSize + sectorSize - 1) / sectorSize)
	offsetsLen := (sectorCount + 1) * 4
	if be.flags&beSectorCRC != 0 {
		offsetsLen += 4
	}
	if len(raw) < offsetsLen {
		return nil, werr.New(werr.InvalidFormat, "mpq: sector offset table truncated")
	}

	encrypted := be.flags&beEncrypted != 0
	if encrypted {
		offsetTable := make([]byte, offsetsLen)
		copy(offsetTable, raw[:offsetsLen])
		decryptWords(offsetTable, key-1)
		copy(raw[:offsetsLen], offsetTable)
	}

	offsets := make([]uint32, sectorCount+1)
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}

	crcOffset := -1
	if be.flags&beSectorCRC != 0 {
		crcOffset = int(offsets[sectorCount])
		if crcOffset+sectorCount*4 > len(raw) {
			return nil, werr.New(werr.InvalidFormat, "mpq: sector CRC table truncated")
		}
	}

	out := make([]byte, 0, be.fileSize)
	remaining := be.fileSize
	for i := 0; i < sectorCount; i++ {
		start, end := offsets[i], offsets[i+1]
		if end < start || int(end) > len(raw) {
			return nil, werr.New(werr.InvalidFormat, "mpq: sector offset out of range")
		}
		sectorRaw := make([]byte, end-start)
		copy(sectorRaw, raw[start:end])
		if encrypted {
			decryptWords(sectorRaw, key+uint32(i))
		}

		// spec.md §4.5 step 4: verify each sector's stored CRC32 right
		// after decryption and before decompression, raising
		// ChecksumMismatch rather than tolerating it — unlike the HET/BET
		// and attributes ambiguities spec.md §9 actually lists, sector CRC
		// tolerance is not one of them.
		if crcOffset >= 0 {
			wantCRC := binary.LittleEndian.Uint32(raw[crcOffset+i*4:])
			gotCRC := crc32.ChecksumIEEE(sectorRaw)
			if wantCRC != gotCRC {
				return nil, werr.New(werr.ChecksumMismatch, fmt.Sprintf("mpq: %s/sector %d: sector crc mismatch", name, i))
			}
		}

		want := sectorSize
		if remaining < want {
			want = remaining
		}

		var plain []byte
		var err error
		switch {
		case be.flags&beAnyCompress == 0 || uint32(len(sectorRaw)) >= want:
			plain = sectorRaw
		case be.flags&beCompressPK != 0 && be.flags&beCompressMulti == 0:
			plain, err = compress.Decompress(sectorRaw, compress.MethodImplodeLegacy, int(want))
		default:
			plain, err = compress.Decompress(sectorRaw[1:], sectorRaw[0], int(want))
		}
		if err != nil {
			return nil, werr.Wrap(werr.CompressionError, "mpq: decompress sector", err)
		}
		if uint32(len(plain)) != want {
			return nil, werr.New(werr.InvalidFormat, "mpq: sector decompressed to wrong size")
		}

		out = append(out, plain...)
		remaining -= want
	}

	return out, nil
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

// List returns every filename recorded in the archive's listfile special
// file, sorted as stored, or an error if no listfile is present (spec.md
// §4.7: names are not otherwise recoverable, since the hash and HET
// tables never store plaintext names).
func (a *Archive) List() ([]string, error) {
	data, err := a.ReadFile("(listfile)", ReadOptions{})
	if err != nil {
		return nil, werr.Wrap(werr.MissingDependency, "mpq: archive has no (listfile)", err)
	}
	return ParseListfile(data), nil
}
