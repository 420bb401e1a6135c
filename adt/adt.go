// Package adt parses Blizzard's ADT terrain-tile format: the monolithic
// pre-Cataclysm layout and the Cataclysm+ four-way split (root, _tex0,
// _obj0, optional _lod), detecting version purely from which feature
// chunks are present rather than any version field (spec.md §4.8). It
// reuses package chunk's generic tag-walker the same way package m2
// does, since both formats are chunk-based.
package adt

import (
	"bytes"
	"encoding/binary"

	"github.com/wowemulation-dev/warcraft-go/chunk"
	"github.com/wowemulation-dev/warcraft-go/werr"
	"github.com/wowemulation-dev/warcraft-go/wow"
)

// FileKind classifies a discovered ADT sibling file by which top-level
// chunks it carries, per spec.md §4.8 step 1.
type FileKind int

const (
	KindUnknown FileKind = iota
	KindRoot
	KindTex
	KindObj
	KindLOD
)

// Tile is a fully assembled 64x64 terrain tile, merged from its root
// file plus any discovered _tex0/_obj0/_lod siblings.
type Tile struct {
	Expansion wow.Expansion

	// Chunks is the tile's MCNK grid flattened row-major, mcnkGridSize
	// entries per row (spec.md §3.4: "a tile is 64x64 map-chunks").
	Chunks []MCNK

	ModelNames []string
	WMONames   []string

	HasMH2O  bool
	HasMFBO  bool
	HasSplit bool
	HasMLDD  bool
}

// mcnkGridSize is the number of map chunks per tile edge, per spec.md
// §3.4.
const mcnkGridSize = 64

// MCNK is one terrain sub-tile's assembled sub-chunk data. Parser must
// tolerate missing sub-chunks: an MCNK legitimately omits layers/liquid
// it doesn't use (spec.md §4.8).
type MCNK struct {
	Present bool

	Heights    []float32 // MCVT: 145 floats when present
	Normals    []byte    // MCNR: 448 bytes when present (last 3 padding)
	Layers     []TextureLayer
	AlphaMaps  [][]byte
	ShadowMap  []byte
	DoodadRefs []uint32
	WMORefs    []uint32
	SoundEmitters []byte
	VertexColors  []byte
	LiquidLegacy  []byte
}

// TextureLayer is one MCLY texture-layer record.
type TextureLayer struct {
	TextureID uint32
	Flags     uint32
	AlphaMapOffset uint32
	EffectID  uint32
}

// discoveredFile pairs a parsed chunk index with its byte source for the
// two-pass discovery+parse flow (spec.md §4.8).
type discoveredFile struct {
	kind    FileKind
	data    []byte
	records []chunk.Record
}

// discover runs the discovery pass over one file's bytes: walk chunks
// recording {tag, offset, size} without parsing payloads, then classify
// by which top-level chunks are present.
func discover(data []byte) (*discoveredFile, error) {
	w := chunk.NewWalker(bytes.NewReader(data), int64(len(data)))
	err := w.Walk(nil)
	if err != nil {
		return nil, werr.Wrap(werr.InvalidFormat, "adt: discovery pass", err)
	}

	df := &discoveredFile{data: data, records: w.Records}
	has := func(tag string) bool {
		_, ok := chunk.FindFirst(w.Records, tag)
		return ok
	}

	switch {
	case has("MH2O") || has("MCNK"):
		df.kind = KindRoot
	case has("MTEX") || has("MDID"):
		df.kind = KindTex
	case has("MMDX") || has("MODF"):
		df.kind = KindObj
	case has("MLHD"):
		df.kind = KindLOD
	default:
		df.kind = KindUnknown
	}
	return df, nil
}

// Sources bundles the root file plus whichever Cataclysm+ split siblings
// were found alongside it, for Parse.
type Sources struct {
	Root []byte
	Tex  []byte // optional, _tex0.adt
	Obj  []byte // optional, _obj0.adt
	LOD  []byte // optional, _lod.adt
}

// Parse assembles a Tile from one or more ADT sources, merging split
// siblings into the root's MCNKs per spec.md §4.8's overlay rule: tex
// contributes layers+alpha, obj contributes refs+name lists, root
// retains heights/normals/colours/liquid, and any chunk populated in
// both root and a sibling resolves to the sibling's copy.
func Parse(src Sources) (*Tile, error) {
	if src.Root == nil {
		return nil, werr.New(werr.InvalidFormat, "adt: no root source provided")
	}

	root, err := discover(src.Root)
	if err != nil {
		return nil, err
	}

	t := &Tile{}
	if err := parseRoot(t, root); err != nil {
		return nil, err
	}

	t.HasSplit = src.Tex != nil || src.Obj != nil
	if src.Tex != nil {
		tex, err := discover(src.Tex)
		if err != nil {
			return nil, err
		}
		if err := mergeTex(t, tex); err != nil {
			return nil, err
		}
	}
	if src.Obj != nil {
		obj, err := discover(src.Obj)
		if err != nil {
			return nil, err
		}
		if err := mergeObj(t, obj); err != nil {
			return nil, err
		}
	}

	t.Expansion = detectExpansion(t)
	return t, nil
}

func detectExpansion(t *Tile) wow.Expansion {
	switch {
	case t.HasMLDD:
		return wow.Legion
	case t.HasSplit:
		return wow.Cataclysm
	case t.HasMH2O:
		return wow.WotLK
	case t.HasMFBO:
		return wow.TBC
	default:
		return wow.Vanilla
	}
}

func readU32(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}
