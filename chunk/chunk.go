// Package chunk implements the generic "tag + size + payload" walker
// shared by the M2 and ADT parsers (spec.md §4.3). Tags are stored
// big-endian ASCII on disk; this package always hands callers the raw
// 4-byte tag as read, never byte-swapped, so "MVER" on disk reads back as
// the string "MVER" regardless of which ecosystem tool produced the file.
package chunk

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/wowemulation-dev/warcraft-go/werr"
)

// headerSize is the fixed 8-byte tag+size header preceding every chunk's
// payload.
const headerSize = 8

// Tag is a 4-character chunk identifier, exactly as stored on disk.
type Tag [4]byte

func (t Tag) String() string {
	return string(t[:])
}

// Record describes one discovered chunk without having read its payload.
type Record struct {
	Tag       Tag
	Size      uint32
	DataStart int64 // absolute offset of payload in the source
}

// Walker iterates chunk records over a source. It never reads past a
// chunk's declared size; callers that want the payload seek to DataStart
// themselves (this is what lets the ADT two-pass parser do a cheap
// discovery pass before any payload parsing).
type Walker struct {
	r       io.ReadSeeker
	size    int64 // total readable size, for bounds checks
	pos     int64
	warnFn  func(format string, args ...interface{})
	Records []Record
}

// NewWalker creates a Walker over r, which must support Seek. size is the
// total number of bytes available starting at the walker's current
// position (used to detect truncated final chunks per spec.md §4.8's
// "abort chunk if offset+size exceeds file size, report as truncated but
// keep discovered chunks").
func NewWalker(r io.ReadSeeker, size int64) *Walker {
	return &Walker{r: r, size: size}
}

// SetWarnFunc installs a callback invoked once per truncated or otherwise
// recoverable chunk-header problem. If nil (the default), warnings are
// silently dropped; callers typically wire this to a logrus.Logger's
// Warnf method.
func (w *Walker) SetWarnFunc(fn func(format string, args ...interface{})) {
	w.warnFn = fn
}

func (w *Walker) warn(format string, args ...interface{}) {
	if w.warnFn != nil {
		w.warnFn(format, args...)
	}
}

// Walk reads chunk headers from the current position until EOF or a
// truncated header, appending each discovered Record to w.Records and
// calling visit for each. A chunk whose declared size runs past the end
// of the input is reported through the warning callback and clamped to
// the remaining bytes before it is recorded and visited. A non-nil error
// from visit aborts the walk and is returned; otherwise Walk always
// advances past the (possibly clamped) payload, so unknown tags never
// abort parsing (spec.md §4.3).
func (w *Walker) Walk(visit func(Record) error) error {
	var hdr [headerSize]byte
	for {
		if w.pos+headerSize > w.size {
			if w.pos != w.size {
				w.warn("chunk: %d trailing bytes after last chunk header, ignoring", w.size-w.pos)
			}
			return nil
		}

		if _, err := io.ReadFull(w.r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				w.warn("chunk: truncated chunk header at offset %d", w.pos)
				return nil
			}
			return werr.Wrap(werr.IoError, "chunk: read header", err)
		}

		var tag Tag
		copy(tag[:], hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])
		dataStart := w.pos + headerSize

		if dataStart+int64(size) > w.size {
			w.warn("chunk: %s at offset %d declares size %d exceeding remaining file size, truncating", tag, w.pos, size)
			size = uint32(w.size - dataStart)
		}

		rec := Record{Tag: tag, Size: size, DataStart: dataStart}
		w.Records = append(w.Records, rec)

		if visit != nil {
			if err := visit(rec); err != nil {
				return err
			}
		}

		// Always advance by the (possibly clamped) declared size: unknown
		// or unparsed chunks are skipped, never aborting the walk.
		next := dataStart + int64(size)
		if _, err := w.r.Seek(next, io.SeekStart); err != nil {
			return werr.Wrap(werr.IoError, "chunk: seek past payload", err)
		}
		w.pos = next
	}
}

// ReadPayload reads the payload bytes for rec from r, which must be
// positioned arbitrarily (ReadPayload seeks internally).
func ReadPayload(r io.ReadSeeker, rec Record) ([]byte, error) {
	if _, err := r.Seek(rec.DataStart, io.SeekStart); err != nil {
		return nil, werr.Wrap(werr.IoError, "chunk: seek to payload", err)
	}
	buf := make([]byte, rec.Size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, werr.Wrap(werr.IoError, "chunk: read payload", err)
	}
	return buf, nil
}

// FindFirst returns the first record in records whose tag matches want,
// and true, or a zero Record and false.
func FindFirst(records []Record, want string) (Record, bool) {
	var w Tag
	copy(w[:], want)
	for _, r := range records {
		if r.Tag == w {
			return r, true
		}
	}
	return Record{}, false
}

// FindAll returns every record in records whose tag matches want.
func FindAll(records []Record, want string) []Record {
	var w Tag
	copy(w[:], want)
	var out []Record
	for _, r := range records {
		if r.Tag == w {
			out = append(out, r)
		}
	}
	return out
}
