package m2

import (
	"encoding/binary"

	"github.com/wowemulation-dev/warcraft-go/werr"
)

// slice returns the array's backing bytes from the model's body, per
// spec.md §4.7 step 3: array accessors read lazily at call time rather
// than during Parse.
func (m *Model) slice(a Array, elemSize int) ([]byte, error) {
	start := int(a.Offset)
	end := start + int(a.Count)*elemSize
	if start < 0 || end < start || end > len(m.body) {
		return nil, werr.New(werr.InvalidFormat, "m2: array out of bounds")
	}
	return m.body[start:end], nil
}

// Bone is one M2 skeleton bone record. The on-disk stride varies by
// expansion (m.BoneStride()); BoneNameCRC exists only in the wider TBC+
// layout and is zero-valued for Vanilla models.
type Bone struct {
	KeyBoneID     int32
	Flags         uint32
	ParentBone    int16
	SubmeshID     uint16
	BoneNameCRC   uint32 // TBC+ only
	Translation   Track
	Rotation      Track
	Scale         Track
	PivotPoint    [3]float32
}

// Track is an M2 animation track header: {interpolation, global_seq,
// timestamps (per-animation array of arrays), values (per-animation
// array of arrays)}. Resolving per-animation sub-arrays requires the
// model's Animations array and, for WotLK+, a Resolver to fetch external
// .anim data; ResolveTrack performs that step.
type Track struct {
	InterpolationType uint16
	GlobalSequence    int16
	Timestamps        Array // array of M2Array{count,offset}, one per animation
	Values            Array // array of M2Array{count,offset}, one per animation
}

// BoneList materializes the model's bone array.
func (m *Model) BoneList() ([]Bone, error) {
	stride := m.BoneStride()
	buf, err := m.slice(m.Bones, stride)
	if err != nil {
		return nil, err
	}
	out := make([]Bone, m.Bones.Count)
	for i := range out {
		r := &headerReader{buf: buf, pos: i * stride}
		b := Bone{}
		b.KeyBoneID = int32(r.u32())
		b.Flags = r.u32()
		b.ParentBone = int16(r.u16())
		b.SubmeshID = r.u16()
		if stride > 84 {
			// TBC+ widened the record by 4 bytes with a bone name CRC
			// not present in Vanilla's 84-byte layout.
			b.BoneNameCRC = r.u32()
		}
		b.Translation.InterpolationType = r.u16()
		b.Translation.GlobalSequence = int16(r.u16())
		b.Translation.Timestamps = r.array()
		b.Translation.Values = r.array()
		b.Rotation.InterpolationType = r.u16()
		b.Rotation.GlobalSequence = int16(r.u16())
		b.Rotation.Timestamps = r.array()
		b.Rotation.Values = r.array()
		b.Scale.InterpolationType = r.u16()
		b.Scale.GlobalSequence = int16(r.u16())
		b.Scale.Timestamps = r.array()
		b.Scale.Values = r.array()
		b.PivotPoint = r.vec3()
		if r.err != nil {
			return nil, werr.Wrap(werr.InvalidFormat, "m2: bone record", r.err)
		}
		out[i] = b
	}
	return out, nil
}

// Vertex is one M2 geometry vertex: position, bone weights/indices (for
// skinning), normal, and up to two UV sets.
type Vertex struct {
	Position    [3]float32
	BoneWeights [4]uint8
	BoneIndices [4]uint8
	Normal      [3]float32
	UV          [2]float32
	UV2         [2]float32
}

const vertexStride = 12 + 4 + 4 + 12 + 8 + 8

// VertexList materializes the model's vertex array.
func (m *Model) VertexList() ([]Vertex, error) {
	buf, err := m.slice(m.Vertices, vertexStride)
	if err != nil {
		return nil, err
	}
	out := make([]Vertex, m.Vertices.Count)
	for i := range out {
		off := i * vertexStride
		v := Vertex{}
		for j := 0; j < 3; j++ {
			v.Position[j] = bitsToFloat32(binary.LittleEndian.Uint32(buf[off+j*4:]))
		}
		copy(v.BoneWeights[:], buf[off+12:off+16])
		copy(v.BoneIndices[:], buf[off+16:off+20])
		for j := 0; j < 3; j++ {
			v.Normal[j] = bitsToFloat32(binary.LittleEndian.Uint32(buf[off+20+j*4:]))
		}
		v.UV[0] = bitsToFloat32(binary.LittleEndian.Uint32(buf[off+32:]))
		v.UV[1] = bitsToFloat32(binary.LittleEndian.Uint32(buf[off+36:]))
		v.UV2[0] = bitsToFloat32(binary.LittleEndian.Uint32(buf[off+40:]))
		v.UV2[1] = bitsToFloat32(binary.LittleEndian.Uint32(buf[off+44:]))
		out[i] = v
	}
	return out, nil
}

// TextureType classifies an M2 texture slot: hardcoded path, a
// body/hair/etc. replaceable slot, or (Legion+) a FileDataID resolved
// through Resolver.
type TextureType uint32

// Texture is one M2 texture reference.
type Texture struct {
	Type  TextureType
	Flags uint32
	Name  string // pre-Legion only; empty when HasFileDataIDTextures
}

const textureRecordSize = 4 + 4 + 8 // type, flags, name M2Array

// TextureList materializes the model's texture array. For Legion+
// models whose texture names were stripped in favor of TXID file-IDs,
// Name is empty and the caller should consult m.TextureFileIDs by index
// instead.
func (m *Model) TextureList() ([]Texture, error) {
	buf, err := m.slice(m.Textures, textureRecordSize)
	if err != nil {
		return nil, err
	}
	out := make([]Texture, m.Textures.Count)
	for i := range out {
		r := &headerReader{buf: buf, pos: i * textureRecordSize}
		t := Texture{}
		t.Type = TextureType(r.u32())
		t.Flags = r.u32()
		nameArr := r.array()
		if r.err != nil {
			return nil, werr.Wrap(werr.InvalidFormat, "m2: texture record", r.err)
		}
		if !m.HasFileDataIDTextures() && nameArr.Count > 0 {
			nameBytes, serr := m.slice(nameArr, 1)
			if serr == nil {
				t.Name = cStringTrim(nameBytes)
			}
		}
		out[i] = t
	}
	return out, nil
}

func cStringTrim(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Material describes one M2 render-state entry (blend mode, flags),
// indexed indirectly through TextureUnitLookup/TextureLookup when
// assembling a renderable submesh.
type Material struct {
	Flags     uint16
	BlendMode uint16
}

// MaterialList materializes the model's material array.
func (m *Model) MaterialList() ([]Material, error) {
	const stride = 4
	buf, err := m.slice(m.Materials, stride)
	if err != nil {
		return nil, err
	}
	out := make([]Material, m.Materials.Count)
	for i := range out {
		out[i] = Material{
			Flags:     binary.LittleEndian.Uint16(buf[i*stride:]),
			BlendMode: binary.LittleEndian.Uint16(buf[i*stride+2:]),
		}
	}
	return out, nil
}
