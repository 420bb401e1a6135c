package m2

import (
	"encoding/binary"

	"github.com/wowemulation-dev/warcraft-go/werr"
)

// parseLegacyHeader reads the fixed-layout MD20 header fields from body,
// per spec.md §4.7 step 2. The legacy header layout is stable across
// every version this package supports; only the bone record stride and
// the interpretation of a handful of arrays (textures, skins,
// animations) change per expansion, handled by the Bones/Textures/etc.
// accessors rather than here.
func (m *Model) parseLegacyHeader(body []byte) error {
	const minHeaderLen = 0x12C // through the trailing ParticleEmitters array
	if len(body) < minHeaderLen {
		return werr.New(werr.InvalidFormat, "m2: header shorter than minimum legacy layout")
	}

	r := &headerReader{buf: body, pos: 4} // skip "MD20" magic
	m.Version = r.u32()

	m.Name = r.array()
	m.GlobalSequences = r.array()
	m.Animations = r.array()
	m.AnimationLookup = r.array()
	m.Bones = r.array()
	m.KeyBoneLookup = r.array()
	m.Vertices = r.array()
	m.Views = r.u32() // legacy "num_skin_profiles" (embedded view count)
	m.Colors = r.array()
	m.Textures = r.array()
	m.TextureWeights = r.array()
	m.TextureTransforms = r.array()
	m.ReplaceableTextureLookup = r.array()
	m.Materials = r.array()
	m.BoneLookup = r.array()
	m.TextureLookup = r.array()
	m.TextureUnitLookup = r.array()
	m.TransparencyLookup = r.array()
	m.TextureTransformLookup = r.array()

	m.BoundingBox[0] = r.vec3()
	m.BoundingBox[1] = r.vec3()
	m.BoundingRadius = r.f32()
	m.CollisionBox[0] = r.vec3()
	m.CollisionBox[1] = r.vec3()
	m.CollisionRadius = r.f32()

	m.BoundingTriangles = r.array()
	m.BoundingVertices = r.array()
	m.BoundingNormals = r.array()
	m.Attachments = r.array()
	m.AttachmentLookup = r.array()
	m.Events = r.array()
	m.Lights = r.array()
	m.Cameras = r.array()
	m.CameraLookup = r.array()
	m.RibbonEmitters = r.array()
	m.ParticleEmitters = r.array()

	if r.err != nil {
		return werr.Wrap(werr.InvalidFormat, "m2: legacy header field", r.err)
	}
	return nil
}

// headerReader is a tiny little-endian cursor, mirroring the style of
// mpq.binReader but scoped to this package since the field set differs.
type headerReader struct {
	buf []byte
	pos int
	err error
}

func (r *headerReader) need(n int) bool {
	if r.err != nil || r.pos+n > len(r.buf) {
		if r.err == nil {
			r.err = werr.New(werr.InvalidFormat, "m2: header field out of bounds")
		}
		return false
	}
	return true
}

func (r *headerReader) u32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}

func (r *headerReader) u16() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v
}

func (r *headerReader) f32() float32 {
	return bitsToFloat32(r.u32())
}

func (r *headerReader) array() Array {
	count := r.u32()
	offset := r.u32()
	return Array{Count: count, Offset: offset}
}

func (r *headerReader) vec3() [3]float32 {
	return [3]float32{r.f32(), r.f32(), r.f32()}
}
