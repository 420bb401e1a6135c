package mpq

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/wowemulation-dev/warcraft-go/mpq/compress"
	"github.com/wowemulation-dev/warcraft-go/werr"
)

func md5Sum(data []byte) []byte {
	sum := md5.Sum(data)
	return sum[:]
}

// BuildFile describes one file to add to a new archive.
type BuildFile struct {
	Name        string
	Data        []byte
	Compression byte // 0 disables compression for this file
	Encrypt     bool
	FixKey      bool
	Locale      uint16
}

// BuildSpec configures Create.
type BuildSpec struct {
	Files           []BuildFile
	SectorSizeShift uint16 // default 3 (4096-byte sectors)
	FormatVersion   uint16 // 0-3; 3+ also emits HET/BET tables and v4 MD5 digests
	GenerateListfile   bool
	AttributesMode     string // "none", "crc32_only", "full"
	Logger          *logrus.Logger
}

// Create builds a new MPQ archive at path from spec, writing the header,
// hash table, block table, file data and optional HET/BET tables, in that
// layout order (spec.md §4.6). The regenerated (listfile)/(attributes)
// special files, when requested, are staged as ordinary files after
// spec.Files and so live in the file data region.
func Create(path string, spec BuildSpec) error {
	f, err := os.Create(path)
	if err != nil {
		return werr.Wrap(werr.IoError, "mpq: create archive file", err)
	}
	defer f.Close()

	if spec.SectorSizeShift == 0 {
		spec.SectorSizeShift = 3
	}

	files := append([]BuildFile(nil), spec.Files...)
	if spec.GenerateListfile {
		names := make([]string, 0, len(files))
		for _, bf := range files {
			names = append(names, bf.Name)
		}
		files = append(files, BuildFile{
			Name:        "(listfile)",
			Data:        EncodeListfile(names),
			Compression: compress.MethodZlib,
		})
	}

	// Attributes are appended after the listfile so its own entry is
	// covered too; the array is computed over files-so-far (including
	// (listfile)) and padded with one zero CRC32/MD5 for the (attributes)
	// slot itself, whose body cannot digest itself.
	if spec.AttributesMode != "" && spec.AttributesMode != "none" {
		bodies := make([][]byte, len(files))
		for i, bf := range files {
			bodies[i] = bf.Data
		}
		attrs := BuildAttributes(bodies, spec.AttributesMode == "full")
		bodies = append(bodies, nil)
		attrs.CRC32 = append(attrs.CRC32, 0)
		if attrs.MD5 != nil {
			attrs.MD5 = append(attrs.MD5, [16]byte{})
		}
		files = append(files, BuildFile{
			Name:        "(attributes)",
			Data:        EncodeAttributes(attrs),
			Compression: compress.MethodZlib,
		})
	}

	hashTableSize := nextPowerOfTwo(uint32(len(files)*4/3 + 1))
	if hashTableSize < 4 {
		hashTableSize = 4
	}

	sectorSize := uint32(512) << spec.SectorSizeShift

	type staged struct {
		name string
		file BuildFile
		body []byte // compressed-or-raw sector stream, pre-encryption
		be   blockEntry
	}
	stagedFiles := make([]staged, len(files))

	for i, bf := range files {
		compressed, flags := encodeFileBody(bf, sectorSize)
		if bf.Encrypt {
			flags |= beEncrypted
			if bf.FixKey {
				flags |= beFixKey
			}
		}
		be := blockEntry{
			compressedSize: uint32(len(compressed)),
			fileSize:       uint32(len(bf.Data)),
			flags:          flags,
		}
		stagedFiles[i] = staged{name: bf.Name, file: bf, body: compressed, be: be}
	}

	hashEntries := make([]hashEntry, hashTableSize)
	for i := range hashEntries {
		hashEntries[i] = hashEntry{blockIndex: hashEntryEmpty}
	}
	blockEntries := make([]blockEntry, len(stagedFiles))

	log := spec.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	// Block entries record each file's offset from the archive start; file
	// data begins right after the header and both tables.
	dataStart := uint32(headerSizeV1)
	switch {
	case spec.FormatVersion >= 3:
		dataStart = headerSizeV4
	case spec.FormatVersion == 2:
		dataStart = headerSizeV3
	case spec.FormatVersion == 1:
		dataStart = headerSizeV2
	}
	dataStart += (hashTableSize + uint32(len(stagedFiles))) * tableEntrySize

	var dataBuf bytes.Buffer
	dataOffset := uint32(0)
	for i, sf := range stagedFiles {
		be := sf.be
		be.filePosLo = dataStart + dataOffset
		blockEntries[i] = be
		dataOffset += be.compressedSize

		body := sf.body
		if sf.file.Encrypt && len(body) > 0 {
			key := fileKey(sf.name, be.filePosLo, be.fileSize, sf.file.FixKey)
			encryptWords(body, key)
		}
		dataBuf.Write(body)

		tableOffset, nameA, nameB := FileNameHash(sf.name)
		idx := tableOffset % hashTableSize
		placed := false
		for j := uint32(0); j < hashTableSize; j++ {
			slot := (idx + j) % hashTableSize
			if hashEntries[slot].blockIndex == hashEntryEmpty {
				hashEntries[slot] = hashEntry{
					nameHashA:  nameA,
					nameHashB:  nameB,
					locale:     sf.file.Locale,
					blockIndex: uint32(i),
				}
				placed = true
				break
			}
		}
		if !placed {
			log.Warnf("mpq: hash table full, %q has no directory entry", sf.name)
		}
	}

	// Per spec.md §3.1/§4.4's format_version table (original, extended,
	// HET/BET, MD5), version 1 widens the header for the hi-block table
	// and 64-bit offset highs, version 2 adds the 64-bit archive size and
	// HET/BET offset fields (left zero here), and version 3 adds the MD5
	// digests and the HET/BET tables themselves. Open's loadExtTables gates HET/BET loading on
	// formatVersion>=3 (matching the detailed open algorithm in spec.md
	// §4.5 step 4 rather than the prose table's looser "HET/BET" label
	// on version 2), so Create writes HET/BET at the same tier to keep
	// round-trips self-consistent.
	headerSize := uint32(headerSizeV1)
	if spec.FormatVersion >= 1 {
		headerSize = headerSizeV2
	}
	if spec.FormatVersion >= 2 {
		headerSize = headerSizeV3
	}
	if spec.FormatVersion >= 3 {
		headerSize = headerSizeV4
	}

	hashTableBytes := encodeHashTable(hashEntries)
	blockTableBytes := encodeBlockTable(blockEntries)

	hashTableOffset := headerSize
	blockTableOffset := hashTableOffset + uint32(len(hashTableBytes))
	archiveSize := blockTableOffset + uint32(len(blockTableBytes)) + dataOffset

	names := make([]string, len(stagedFiles))
	for i, sf := range stagedFiles {
		names[i] = sf.name
	}

	var hetBytes, betBytes []byte
	var hetTableOffset, betTableOffset uint32
	if spec.FormatVersion >= 3 {
		bucketCount := nextPowerOfTwo(uint32(len(names))*4/3 + 1)
		if bucketCount < 4 {
			bucketCount = 4
		}
		betIndices := make([]uint32, len(names))
		for i := range betIndices {
			betIndices[i] = uint32(i)
		}
		hetPayload := buildHetTable(names, betIndices, bucketCount)
		betPayload := buildBetTable(names, blockEntries)

		hetTableOffset = archiveSize
		hetBytes = encodeExtTable(hetSignature, hetPayload, hetBetKey("(het table)"))
		betTableOffset = hetTableOffset + uint32(len(hetBytes))
		betBytes = encodeExtTable(betSignature, betPayload, hetBetKey("(bet table)"))
		archiveSize = betTableOffset + uint32(len(betBytes))
	}

	headerBytes := buildHeader(headerFields{
		formatVersion:     spec.FormatVersion,
		headerSize:        uint16(headerSize),
		sectorSizeShift:   spec.SectorSizeShift,
		hashTableOffset:   hashTableOffset,
		blockTableOffset:  blockTableOffset,
		hashTableEntries:  hashTableSize,
		blockTableEntries: uint32(len(blockEntries)),
		archiveSize:       archiveSize,
		hetTableOffset64:  uint64(hetTableOffset),
		betTableOffset64:  uint64(betTableOffset),
		hashTableBytes:    hashTableBytes,
		blockTableBytes:   blockTableBytes,
		hetBytes:          hetBytes,
		betBytes:          betBytes,
	})

	if _, err := f.Write(headerBytes); err != nil {
		return werr.Wrap(werr.IoError, "mpq: write header", err)
	}
	if _, err := f.Write(hashTableBytes); err != nil {
		return werr.Wrap(werr.IoError, "mpq: write hash table", err)
	}
	if _, err := f.Write(blockTableBytes); err != nil {
		return werr.Wrap(werr.IoError, "mpq: write block table", err)
	}
	if _, err := f.Write(dataBuf.Bytes()); err != nil {
		return werr.Wrap(werr.IoError, "mpq: write file data", err)
	}
	if _, err := f.Write(hetBytes); err != nil {
		return werr.Wrap(werr.IoError, "mpq: write HET table", err)
	}
	if _, err := f.Write(betBytes); err != nil {
		return werr.Wrap(werr.IoError, "mpq: write BET table", err)
	}

	return nil
}

// encodeFileBody compresses (or stores) a file's bytes as a single unit
// and returns its on-disk body plus the block flags describing it.
func encodeFileBody(bf BuildFile, sectorSize uint32) ([]byte, uint32) {
	flags := uint32(beExists)
	if len(bf.Data) == 0 {
		return nil, flags | beSingleUnit
	}

	if bf.Compression == 0 {
		return append([]byte(nil), bf.Data...), flags | beSingleUnit
	}

	compressed, err := compress.Compress(bf.Data, bf.Compression)
	if err != nil || len(compressed) >= len(bf.Data) {
		return append([]byte(nil), bf.Data...), flags | beSingleUnit
	}
	flags |= beSingleUnit | beCompressMulti
	return compressed, flags
}

// headerFields carries everything buildHeader needs to lay out a v1-v4
// header, including the already-encoded table bytes it digests into the
// v4 MD5 fields.
type headerFields struct {
	formatVersion     uint16
	headerSize        uint16
	sectorSizeShift   uint16
	hashTableOffset   uint32
	blockTableOffset  uint32
	hashTableEntries  uint32
	blockTableEntries uint32
	archiveSize       uint32
	hetTableOffset64  uint64
	betTableOffset64  uint64

	hashTableBytes  []byte
	blockTableBytes []byte
	hetBytes        []byte
	betBytes        []byte
}

// buildHeader lays out the MPQ header section as an in-memory buffer
// (spec.md §3.1/§6), growing the field set by header-size tier exactly as
// readHeaderSection expects it back: v1's 8 fixed fields, v2 adds the
// hi-block table offset and the two 64-bit-offset high halves, v3 adds the
// 64-bit archive size and HET/BET offsets, v4 appends five table digests
// (block, hash, hi-block, BET, HET) plus a digest of the header bytes
// before it, then zero-pads to the declared header size. This repo never
// emits a hi-block table (no archive here exceeds 4GB), so
// hiBlockTableOffset and the offset highs are always zero and the
// hi-block digest is the MD5 of empty input.
func buildHeader(f headerFields) []byte {
	buf := make([]byte, 0, headerSizeV4)
	buf = append(buf, headerMagic[:]...)
	buf = putU32(buf, uint32(f.headerSize))
	buf = putU32(buf, f.archiveSize)
	buf = append(buf, byte(f.formatVersion), byte(f.formatVersion>>8))
	buf = append(buf, byte(f.sectorSizeShift), byte(f.sectorSizeShift>>8))
	buf = putU32(buf, f.hashTableOffset)
	buf = putU32(buf, f.blockTableOffset)
	buf = putU32(buf, f.hashTableEntries)
	buf = putU32(buf, f.blockTableEntries)

	if f.headerSize < headerSizeV2 {
		return buf
	}
	buf = putU64(buf, 0) // hiBlockTableOffset
	buf = append(buf, 0, 0) // hashTableOffsetHi
	buf = append(buf, 0, 0) // blockTableOffsetHi

	if f.headerSize < headerSizeV3 {
		return buf
	}
	buf = putU64(buf, uint64(f.archiveSize))
	buf = putU64(buf, f.betTableOffset64)
	buf = putU64(buf, f.hetTableOffset64)

	if f.headerSize < headerSizeV4 {
		return buf
	}
	buf = append(buf, md5Sum(f.blockTableBytes)...)
	buf = append(buf, md5Sum(f.hashTableBytes)...)
	buf = append(buf, md5Sum(nil)...) // hi-block table: never emitted
	buf = append(buf, md5Sum(f.betBytes)...)
	buf = append(buf, md5Sum(f.hetBytes)...)
	buf = append(buf, md5Sum(buf)...) // digest of everything written so far
	buf = append(buf, make([]byte, int(f.headerSize)-len(buf))...)
	return buf
}

func putU64(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}
