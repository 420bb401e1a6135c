package adt

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/wowemulation-dev/warcraft-go/chunk"
	"github.com/wowemulation-dev/warcraft-go/werr"
)

// mcnkHeaderSize is the fixed-layout portion of an MCNK payload preceding
// its nested sub-chunks (spec.md §4.8: "MCNK is itself a chunked
// container"). Only the handful of fields the grid-placement and doodad
// ref split actually need are read; the rest of the real 128-byte header
// is skipped over.
const mcnkHeaderSize = 128

// mclyUseAlpha is the MCLY per-layer flag bit indicating the layer owns
// an entry in the sibling MCAL buffer.
const mclyUseAlpha = 0x100

// mcnkMeta holds the MCNK sub-header fields needed to place a chunk in
// the tile grid and to split MCRF's combined index array into doodad vs.
// WMO references.
type mcnkMeta struct {
	indexX      uint32
	indexY      uint32
	nDoodadRefs uint32
	areaID      uint32
}

func readMCNKMeta(payload []byte) (mcnkMeta, error) {
	if len(payload) < mcnkHeaderSize {
		return mcnkMeta{}, werr.New(werr.InvalidFormat, "adt: MCNK header shorter than 128 bytes")
	}
	return mcnkMeta{
		indexX:      binary.LittleEndian.Uint32(payload[0x04:]),
		indexY:      binary.LittleEndian.Uint32(payload[0x08:]),
		nDoodadRefs: binary.LittleEndian.Uint32(payload[0x10:]),
		areaID:      binary.LittleEndian.Uint32(payload[0x34:]),
	}, nil
}

// mcnkIndex resolves the grid slot for a parsed MCNK: the header's own
// indexX/indexY when they fall inside the grid, otherwise the order in
// which MCNK chunks were discovered (tex0/obj0 siblings cover the same
// 64x64 grid in the same sequential order as root, per spec.md §4.8's
// split-file merge).
func mcnkIndex(meta mcnkMeta, discoveryOrder int) int {
	if int(meta.indexX) < mcnkGridSize && int(meta.indexY) < mcnkGridSize {
		return int(meta.indexY)*mcnkGridSize + int(meta.indexX)
	}
	return discoveryOrder
}

// parseMCNK parses one top-level MCNK chunk's payload, tolerating any
// missing sub-chunk per spec.md §4.8 ("MCNKs legitimately omit layers
// they don't use").
func parseMCNK(data []byte, rec chunk.Record) (*MCNK, mcnkMeta, error) {
	payload := data[rec.DataStart : rec.DataStart+int64(rec.Size)]
	meta, err := readMCNKMeta(payload)
	if err != nil {
		return nil, mcnkMeta{}, err
	}

	mc := &MCNK{Present: true}
	body := payload[mcnkHeaderSize:]

	w := chunk.NewWalker(bytes.NewReader(body), int64(len(body)))
	if err := w.Walk(nil); err != nil {
		return nil, mcnkMeta{}, werr.Wrap(werr.InvalidFormat, "adt: MCNK sub-chunk walk", err)
	}

	for _, sub := range w.Records {
		absStart := rec.DataStart + mcnkHeaderSize + sub.DataStart
		sb := data[absStart : absStart+int64(sub.Size)]
		switch sub.Tag.String() {
		case "MCVT":
			mc.Heights = readFloat32Array(sb)
		case "MCNR":
			mc.Normals = append([]byte(nil), sb...)
		case "MCLY":
			mc.Layers = readLayers(sb)
		case "MCAL":
			mc.AlphaMaps = splitAlphaMaps(sb, mc.Layers)
		case "MCSH":
			mc.ShadowMap = append([]byte(nil), sb...)
		case "MCRF":
			refs := readU32Slice(sb)
			n := int(meta.nDoodadRefs)
			if n > len(refs) {
				n = len(refs)
			}
			mc.DoodadRefs = refs[:n]
			mc.WMORefs = refs[n:]
		case "MCSE":
			mc.SoundEmitters = append([]byte(nil), sb...)
		case "MCCV":
			mc.VertexColors = append([]byte(nil), sb...)
		case "MCLQ", "MCLV":
			mc.LiquidLegacy = append([]byte(nil), sb...)
		}
	}

	return mc, meta, nil
}

func readFloat32Array(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func readU32Slice(b []byte) []uint32 {
	n := len(b) / 4
	out := make([]uint32, n)
	for i := 0; i < n; i++ {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out
}

const mclyRecordSize = 16

func readLayers(b []byte) []TextureLayer {
	n := len(b) / mclyRecordSize
	out := make([]TextureLayer, n)
	for i := 0; i < n; i++ {
		off := i * mclyRecordSize
		out[i] = TextureLayer{
			TextureID:      binary.LittleEndian.Uint32(b[off:]),
			Flags:          binary.LittleEndian.Uint32(b[off+4:]),
			AlphaMapOffset: binary.LittleEndian.Uint32(b[off+8:]),
			EffectID:       binary.LittleEndian.Uint32(b[off+12:]),
		}
	}
	return out
}

// splitAlphaMaps slices the combined MCAL buffer into one entry per
// layer that declares mclyUseAlpha, using each layer's AlphaMapOffset as
// the start and the next greater offset (or end of buffer) as the end,
// per spec.md §4.8's "alpha maps, variable per layer flags".
func splitAlphaMaps(mcal []byte, layers []TextureLayer) [][]byte {
	if len(layers) == 0 {
		return nil
	}
	out := make([][]byte, len(layers))
	for i, l := range layers {
		if l.Flags&mclyUseAlpha == 0 {
			continue
		}
		start := int(l.AlphaMapOffset)
		if start < 0 || start > len(mcal) {
			continue
		}
		end := len(mcal)
		for _, other := range layers {
			o := int(other.AlphaMapOffset)
			if o > start && o < end {
				end = o
			}
		}
		out[i] = append([]byte(nil), mcal[start:end]...)
	}
	return out
}
