package m2

import (
	"encoding/binary"

	"github.com/wowemulation-dev/warcraft-go/werr"
)

// Skin is a parsed .skin geometry partition: vertex index remapping,
// triangle indices, and submesh/texture-unit definitions. Pre-WotLK
// models carry this embedded in the model body instead (see
// Model.Views); WotLK+ models store it in external sibling files
// fetched through a Resolver.
type Skin struct {
	New     bool // true if the "SKIN" new-format magic was sniffed
	Version uint32

	Indices      []uint16 // local vertex index -> model vertex index
	Triangles    []uint16 // triangle list, indices into Indices
	SubmeshCount uint32
	TextureUnitCount uint32
}

const (
	skinNewMagic = "SKIN"
)

// ParseSkin autodetects the old vs. new .skin layout by sniffing the
// first 8 bytes, per spec.md §4.7: old files have no version field and
// begin directly with an index-count header; new files lead with the
// "SKIN" magic and a version field.
func ParseSkin(data []byte) (*Skin, error) {
	if len(data) < 8 {
		return nil, werr.New(werr.InvalidFormat, "m2: skin file too short")
	}

	s := &Skin{}
	r := &headerReader{buf: data}

	if string(data[0:4]) == skinNewMagic {
		s.New = true
		r.pos = 4
		s.Version = r.u32()
	}

	indicesArr := r.array()
	trianglesArr := r.array()
	_ = r.array() // bone-indices-per-vertex array, not yet surfaced
	s.SubmeshCount = r.array().Count
	s.TextureUnitCount = r.array().Count
	if r.err != nil {
		return nil, werr.Wrap(werr.InvalidFormat, "m2: skin header", r.err)
	}

	indices, err := sliceU16Array(data, indicesArr)
	if err != nil {
		return nil, werr.Wrap(werr.InvalidFormat, "m2: skin indices array", err)
	}
	triangles, err := sliceU16Array(data, trianglesArr)
	if err != nil {
		return nil, werr.Wrap(werr.InvalidFormat, "m2: skin triangles array", err)
	}
	s.Indices = indices
	s.Triangles = triangles
	return s, nil
}

func sliceU16Array(data []byte, a Array) ([]uint16, error) {
	start := int(a.Offset)
	end := start + int(a.Count)*2
	if start < 0 || end < start || end > len(data) {
		return nil, werr.New(werr.InvalidFormat, "m2: array out of bounds")
	}
	out := make([]uint16, a.Count)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(data[start+i*2:])
	}
	return out, nil
}

// ResolveSkins fetches every external .skin file this model references,
// in skin-index order, via resolver. Pre-WotLK models (with no external
// skins) return an empty slice rather than an error: the caller should
// fall back to Model.Views for the embedded geometry.
func (m *Model) ResolveSkins(resolver Resolver) ([]*Skin, error) {
	if !m.HasExternalSkins() {
		return nil, nil
	}
	count := len(m.SkinFileIDs)
	if count == 0 {
		count = int(m.Views)
	}
	out := make([]*Skin, 0, count)
	for i := 0; i < count; i++ {
		var id uint32
		if i < len(m.SkinFileIDs) {
			id = m.SkinFileIDs[i]
		} else {
			id = uint32(i)
		}
		data, err := resolver(ResolveSkin, id)
		if err != nil {
			return nil, werr.Wrap(werr.IoError, "m2: resolve skin", err)
		}
		if data == nil {
			continue // missing dependency, not an error (spec.md §4.7)
		}
		skin, err := ParseSkin(data)
		if err != nil {
			return nil, err
		}
		out = append(out, skin)
	}
	return out, nil
}
