package mpq

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/wowemulation-dev/warcraft-go/werr"
)

// OpType identifies one step of a Modify batch.
type OpType int

const (
	OpAdd OpType = iota
	OpRemove
	OpRename
	OpSetCompression
	// OpCompact carries no field changes of its own: Modify always
	// rebuilds the archive from its live file set, so compaction is
	// simply calling Modify with an OpCompact-only batch (or none at
	// all). It exists as an explicit op so callers state their intent
	// (spec.md §6's modify_archive op enumeration) instead of passing
	// an empty batch.
	OpCompact
)

// Op is one mutation in a Modify batch.
type Op struct {
	Type        OpType
	Name        string // target name for Add/Remove/SetCompression, old name for Rename
	NewName     string // Rename only
	Data        []byte // Add only
	Compression byte   // Add/SetCompression only
	Encrypt     bool
	FixKey      bool
	Locale      uint16
}

// Modify applies a batch of add/remove/rename/recompress operations to
// the archive at path, writing the result to a UUID-named staging file
// in the same directory and renaming it over the original on success, so
// a crash mid-rewrite never leaves a half-written archive in place
// (spec.md §4.6's builder/mutator invariant that partial writes must not
// corrupt the original).
//
// Modify takes no lock: it does not detect or refuse another Modify, or
// any other writer, working on the same path at the same time.
func Modify(path string, ops []Op, spec BuildSpec) error {
	existing, err := Open(path, OpenOptions{Logger: spec.Logger})
	if err != nil {
		return err
	}

	names, err := existing.List()
	if err != nil {
		existing.Close()
		return err
	}
	bodies := map[string]BuildFile{}
	for _, n := range names {
		if isSpecialFile(n) {
			continue
		}
		data, rerr := existing.ReadFile(n, ReadOptions{})
		if rerr != nil {
			existing.Close()
			return werr.Wrap(werr.IoError, "mpq: read existing file during modify: "+n, rerr)
		}
		bodies[n] = BuildFile{Name: n, Data: data, Compression: compressionOfExisting(existing, n)}
	}
	existing.Close()

	for _, op := range ops {
		switch op.Type {
		case OpAdd:
			bodies[op.Name] = BuildFile{
				Name: op.Name, Data: op.Data, Compression: op.Compression,
				Encrypt: op.Encrypt, FixKey: op.FixKey, Locale: op.Locale,
			}
		case OpRemove:
			delete(bodies, op.Name)
		case OpRename:
			if bf, ok := bodies[op.Name]; ok {
				delete(bodies, op.Name)
				bf.Name = op.NewName
				bodies[op.NewName] = bf
			}
		case OpSetCompression:
			if bf, ok := bodies[op.Name]; ok {
				bf.Compression = op.Compression
				bodies[op.Name] = bf
			}
		}
	}

	files := make([]BuildFile, 0, len(bodies))
	for _, bf := range bodies {
		files = append(files, bf)
	}
	spec.Files = files

	dir := filepath.Dir(path)
	staging := filepath.Join(dir, "."+uuid.New().String()+".mpq.tmp")
	if err := Create(staging, spec); err != nil {
		os.Remove(staging)
		return err
	}
	if err := os.Rename(staging, path); err != nil {
		os.Remove(staging)
		return werr.Wrap(werr.IoError, "mpq: replace archive with rebuilt staging file", err)
	}
	return nil
}

func isSpecialFile(name string) bool {
	return name == "(listfile)" || name == "(attributes)" || name == "(signature)"
}

// compressionOfExisting picks the compression for re-adding an existing
// file: 0 when it was stored uncompressed, and zlib when it was stored
// compressed (or cannot be found). The file's original method byte is not
// read back, so a non-zlib method is not preserved.
func compressionOfExisting(a *Archive, name string) byte {
	idx, ok := a.lookup(name, 0)
	if !ok || idx >= uint32(len(a.blockTable)) {
		return compressMethodUnknown
	}
	be := a.blockTable[idx]
	if be.flags&beAnyCompress == 0 {
		return 0
	}
	return compressMethodUnknown // per-sector method byte varies per sector; re-pick at rebuild time
}

const compressMethodUnknown = 0x02 // default to zlib when the prior method can't be recovered cheaply
