package adt

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wowemulation-dev/warcraft-go/wow"
)

// writeChunk appends one tag+size+payload record in the on-disk layout
// chunk.Walker expects: a 4-byte ASCII tag followed by a little-endian
// u32 payload size.
func writeChunk(buf *bytes.Buffer, tag string, payload []byte) {
	buf.WriteString(tag)
	var sz [4]byte
	binary.LittleEndian.PutUint32(sz[:], uint32(len(payload)))
	buf.Write(sz[:])
	buf.Write(payload)
}

// buildMCNKPayload returns one MCNK chunk's payload: a 128-byte header
// with indexX/indexY set, followed by nested MCLY/MCRF sub-chunks.
func buildMCNKPayload(indexX, indexY uint32, nDoodadRefs uint32, layers []TextureLayer, refs []uint32) []byte {
	header := make([]byte, mcnkHeaderSize)
	binary.LittleEndian.PutUint32(header[0x04:], indexX)
	binary.LittleEndian.PutUint32(header[0x08:], indexY)
	binary.LittleEndian.PutUint32(header[0x10:], nDoodadRefs)

	var body bytes.Buffer
	if layers != nil {
		var mcly bytes.Buffer
		for _, l := range layers {
			var rec [mclyRecordSize]byte
			binary.LittleEndian.PutUint32(rec[0:], l.TextureID)
			binary.LittleEndian.PutUint32(rec[4:], l.Flags)
			binary.LittleEndian.PutUint32(rec[8:], l.AlphaMapOffset)
			binary.LittleEndian.PutUint32(rec[12:], l.EffectID)
			mcly.Write(rec[:])
		}
		writeChunk(&body, "MCLY", mcly.Bytes())
	}
	if refs != nil {
		var mcrf bytes.Buffer
		for _, r := range refs {
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], r)
			mcrf.Write(b[:])
		}
		writeChunk(&body, "MCRF", mcrf.Bytes())
	}

	return append(header, body.Bytes()...)
}

func TestParseRootOnlyMonolithicTile(t *testing.T) {
	var root bytes.Buffer
	writeChunk(&root, "MVER", []byte{18, 0, 0, 0})
	mcnk := buildMCNKPayload(0, 0, 1, []TextureLayer{{TextureID: 7}}, []uint32{42})
	writeChunk(&root, "MCNK", mcnk)

	tile, err := Parse(Sources{Root: root.Bytes()})
	require.NoError(t, err)
	require.Equal(t, wow.Vanilla, tile.Expansion)
	require.False(t, tile.HasSplit)
	require.Len(t, tile.Chunks, mcnkGridSize*mcnkGridSize)

	mc := tile.Chunks[0]
	require.True(t, mc.Present)
	require.Len(t, mc.Layers, 1)
	require.Equal(t, uint32(7), mc.Layers[0].TextureID)
	require.Equal(t, []uint32{42}, mc.DoodadRefs)
}

func TestParseSplitFilesLayerCountMatchesMonolithic(t *testing.T) {
	layers := []TextureLayer{{TextureID: 1}, {TextureID: 2}}
	refs := []uint32{5, 6}

	// Monolithic: one MCNK carrying both layers and refs directly.
	var mono bytes.Buffer
	writeChunk(&mono, "MVER", []byte{18, 0, 0, 0})
	writeChunk(&mono, "MCNK", buildMCNKPayload(0, 0, 0, layers, refs))
	monoTile, err := Parse(Sources{Root: mono.Bytes()})
	require.NoError(t, err)

	// Split: root carries only the bare MCNK presence marker, tex0
	// contributes the layers, obj0 contributes the refs.
	var root bytes.Buffer
	writeChunk(&root, "MCNK", buildMCNKPayload(0, 0, 0, nil, nil))

	var tex bytes.Buffer
	writeChunk(&tex, "MTEX", []byte("tex.blp\x00"))
	writeChunk(&tex, "MCNK", buildMCNKPayload(0, 0, 0, layers, nil))

	var obj bytes.Buffer
	writeChunk(&obj, "MMDX", []byte("model.m2\x00"))
	writeChunk(&obj, "MCNK", buildMCNKPayload(0, 0, 0, nil, refs))

	splitTile, err := Parse(Sources{Root: root.Bytes(), Tex: tex.Bytes(), Obj: obj.Bytes()})
	require.NoError(t, err)
	require.True(t, splitTile.HasSplit)
	require.Equal(t, wow.Cataclysm, splitTile.Expansion)

	require.Equal(t, len(monoTile.Chunks[0].Layers), len(splitTile.Chunks[0].Layers))
	require.Equal(t, monoTile.Chunks[0].Layers, splitTile.Chunks[0].Layers)
	require.Equal(t, monoTile.Chunks[0].DoodadRefs, splitTile.Chunks[0].DoodadRefs)
}

func TestParseRequiresRootSource(t *testing.T) {
	_, err := Parse(Sources{})
	require.Error(t, err)
}

func TestParseDetectsMH2OAsWotLK(t *testing.T) {
	var root bytes.Buffer
	writeChunk(&root, "MH2O", []byte{})
	writeChunk(&root, "MCNK", buildMCNKPayload(0, 0, 0, nil, nil))

	tile, err := Parse(Sources{Root: root.Bytes()})
	require.NoError(t, err)
	require.True(t, tile.HasMH2O)
	require.Equal(t, wow.WotLK, tile.Expansion)
}
