package mpq

import (
	"encoding/binary"
	"io"

	"github.com/wowemulation-dev/warcraft-go/werr"
)

// Magic bytes of the optional user-data prologue and the mandatory
// header section, per spec.md §6.
var (
	userDataMagic = [4]byte{'M', 'P', 'Q', 0x1b}
	headerMagic   = [4]byte{'M', 'P', 'Q', 0x1a}
)

// Header v1/v2/v3/v4 sizes, per spec.md §6.
const (
	headerSizeV1 = 32
	headerSizeV2 = 44
	headerSizeV3 = 68
	headerSizeV4 = 208
)

// userData is the optional shunt block preceding the archive header
// (spec.md §3.1). Blizzard-generated archives place it at offset 0 and
// begin the archive itself at the next 512-byte boundary after it.
type userData struct {
	size         uint32
	headerOffset uint32
	data         []byte
}

// header holds every field defined across MPQ format versions 0-3. Fields
// only present from a given version onward are zero-valued when absent.
type header struct {
	size              uint32
	archiveSize       uint32 // deprecated since v1; archiveOffset is used in the source instead
	formatVersion     uint16
	sectorSizeShift   uint16
	hashTableOffset   uint32
	blockTableOffset  uint32
	hashTableEntries  uint32
	blockTableEntries uint32

	// v1+ (header size 44+)
	hiBlockTableOffset uint64
	hashTableOffsetHi  uint16
	blockTableOffsetHi uint16

	// v2+ (header size 68+, HET/BET)
	archiveSize64    uint64
	betTableOffset64 uint64
	hetTableOffset64 uint64

	// v3+ (header size 208, MD5)
	md5BlockTable      [16]byte
	md5HashTable       [16]byte
	md5HiBlockTable    [16]byte
	md5BetTable        [16]byte
	md5HetTable        [16]byte
	md5MpqHeader       [16]byte
	rawHeaderForMD5Len uint32
}

// readHeaderSection reads the optional user-data prologue (if present)
// and the mandatory header, per spec.md §4.5 steps 1-2. archiveOffset is
// the absolute file offset at which the MPQ\x1A magic was found (the
// "ArchiveOffset" referenced throughout spec.md §3.1).
func readHeaderSection(r io.ReadSeeker, archiveOffset int64) (*userData, *header, error) {
	if _, err := r.Seek(archiveOffset, io.SeekStart); err != nil {
		return nil, nil, werr.Wrap(werr.IoError, "mpq: seek to archive offset", err)
	}

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, nil, werr.Wrap(werr.IoError, "mpq: read magic", err)
	}

	var ud *userData
	headerBase := archiveOffset

	if magic == userDataMagic {
		u := userData{}
		if err := binary.Read(r, binary.LittleEndian, &u.size); err != nil {
			return nil, nil, werr.Wrap(werr.InvalidFormat, "mpq: user data size", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &u.headerOffset); err != nil {
			return nil, nil, werr.Wrap(werr.InvalidFormat, "mpq: user data header offset", err)
		}
		u.data = make([]byte, u.size)
		if _, err := io.ReadFull(r, u.data); err != nil {
			return nil, nil, werr.Wrap(werr.InvalidFormat, "mpq: user data body", err)
		}
		ud = &u

		headerBase = archiveOffset + int64(u.headerOffset)
		if _, err := r.Seek(headerBase, io.SeekStart); err != nil {
			return nil, nil, werr.Wrap(werr.IoError, "mpq: seek to header offset", err)
		}
		if _, err := io.ReadFull(r, magic[:]); err != nil {
			return nil, nil, werr.Wrap(werr.IoError, "mpq: read header magic", err)
		}
	}

	if magic != headerMagic {
		return nil, nil, werr.New(werr.InvalidFormat, "mpq: missing MPQ\\x1A magic")
	}

	h := &header{}
	read := func(v interface{}) error {
		return binary.Read(r, binary.LittleEndian, v)
	}

	if err := read(&h.size); err != nil {
		return nil, nil, werr.Wrap(werr.InvalidFormat, "mpq: header size", err)
	}
	switch h.size {
	case headerSizeV1, headerSizeV2, headerSizeV3, headerSizeV4:
	default:
		return nil, nil, werr.New(werr.InvalidFormat, "mpq: unexpected header size")
	}

	fields := []func() error{
		func() error { return read(&h.archiveSize) },
		func() error { return read(&h.formatVersion) },
		func() error { return read(&h.sectorSizeShift) },
		func() error { return read(&h.hashTableOffset) },
		func() error { return read(&h.blockTableOffset) },
		func() error { return read(&h.hashTableEntries) },
		func() error { return read(&h.blockTableEntries) },
	}
	for _, f := range fields {
		if err := f(); err != nil {
			return nil, nil, werr.Wrap(werr.InvalidFormat, "mpq: header field", err)
		}
	}

	if h.formatVersion > 3 {
		return nil, nil, werr.New(werr.UnsupportedVersion, "mpq: format version")
	}

	if h.size >= headerSizeV2 {
		v2fields := []func() error{
			func() error { return read(&h.hiBlockTableOffset) },
			func() error { return read(&h.hashTableOffsetHi) },
			func() error { return read(&h.blockTableOffsetHi) },
		}
		for _, f := range v2fields {
			if err := f(); err != nil {
				return nil, nil, werr.Wrap(werr.InvalidFormat, "mpq: v2 header field", err)
			}
		}
	}

	if h.size >= headerSizeV3 {
		v3fields := []func() error{
			func() error { return read(&h.archiveSize64) },
			func() error { return read(&h.betTableOffset64) },
			func() error { return read(&h.hetTableOffset64) },
		}
		for _, f := range v3fields {
			if err := f(); err != nil {
				return nil, nil, werr.Wrap(werr.InvalidFormat, "mpq: v3 header field", err)
			}
		}
	}

	if h.size >= headerSizeV4 {
		v4fields := []func() error{
			func() error { return read(&h.md5BlockTable) },
			func() error { return read(&h.md5HashTable) },
			func() error { return read(&h.md5HiBlockTable) },
			func() error { return read(&h.md5BetTable) },
			func() error { return read(&h.md5HetTable) },
			func() error { return read(&h.md5MpqHeader) },
		}
		for _, f := range v4fields {
			if err := f(); err != nil {
				return nil, nil, werr.Wrap(werr.InvalidFormat, "mpq: v4 header field", err)
			}
		}
	}

	return ud, h, nil
}

// findArchiveOffset scans from the start of src in 512-byte-aligned steps
// looking for the header or user-data magic, per spec.md §4.5 step 1.
func findArchiveOffset(r io.ReadSeeker) (int64, error) {
	size, err := streamSize(r)
	if err != nil {
		return 0, err
	}

	var magic [4]byte
	for offset := int64(0); offset+4 <= size; offset += 512 {
		if _, err := r.Seek(offset, io.SeekStart); err != nil {
			return 0, werr.Wrap(werr.IoError, "mpq: seek while scanning for magic", err)
		}
		if _, err := io.ReadFull(r, magic[:]); err != nil {
			break
		}
		if magic == headerMagic || magic == userDataMagic {
			return offset, nil
		}
	}
	return 0, werr.New(werr.InvalidFormat, "mpq: no MPQ header found")
}

func streamSize(r io.Seeker) (int64, error) {
	cur, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, werr.Wrap(werr.IoError, "mpq: tell", err)
	}
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, werr.Wrap(werr.IoError, "mpq: seek end", err)
	}
	if _, err := r.Seek(cur, io.SeekStart); err != nil {
		return 0, werr.Wrap(werr.IoError, "mpq: restore position", err)
	}
	return end, nil
}
