package m2

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildLegacyBody writes a minimal but structurally valid MD20 header
// for the given version, with all arrays empty (count 0, offset 0) and
// zeroed bounding volumes.
func buildLegacyBody(version uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("MD20")
	_ = binary.Write(&buf, binary.LittleEndian, version)

	// 29 M2Array fields (8 bytes each), 1 u32 "views" field and the
	// bounding volumes, per parseLegacyHeader's field order.
	for i := 0; i < 7; i++ {
		buf.Write(make([]byte, 8)) // name..vertices
	}
	buf.Write(make([]byte, 4)) // views
	for i := 0; i < 11; i++ {
		buf.Write(make([]byte, 8)) // colors..textureTransformLookup
	}
	buf.Write(make([]byte, 4*3*2)) // bounding box x2
	buf.Write(make([]byte, 4))     // bounding radius
	buf.Write(make([]byte, 4*3*2)) // collision box x2
	buf.Write(make([]byte, 4))     // collision radius
	for i := 0; i < 11; i++ {
		buf.Write(make([]byte, 8)) // boundingTriangles..particleEmitters
	}

	return buf.Bytes()
}

func TestParseVanillaBoneStride(t *testing.T) {
	body := buildLegacyBody(256)
	m, err := Parse(body)
	require.NoError(t, err)
	require.False(t, m.Chunked)
	require.Equal(t, 84, m.BoneStride())
	require.False(t, m.HasFileDataIDTextures())
	require.False(t, m.HasExternalSkins())
}

func TestParseWotLKUsesExternalSkins(t *testing.T) {
	body := buildLegacyBody(264)
	m, err := Parse(body)
	require.NoError(t, err)
	require.Equal(t, 88, m.BoneStride())
	require.True(t, m.HasExternalSkins())
	require.False(t, m.HasFileDataIDTextures())
}

func TestParseLegionFileDataIDTextures(t *testing.T) {
	body := buildLegacyBody(274)
	m, err := Parse(body)
	require.NoError(t, err)
	require.True(t, m.HasFileDataIDTextures())
}

func TestParseRejectsShortHeader(t *testing.T) {
	_, err := Parse([]byte("MD20"))
	require.Error(t, err)
}

func TestParseMD21ChunkedEnvelope(t *testing.T) {
	legacy := buildLegacyBody(272)

	var outer bytes.Buffer
	outer.WriteString("MD21")
	_ = binary.Write(&outer, binary.LittleEndian, uint32(len(legacy)))
	outer.Write(legacy)

	m, err := Parse(outer.Bytes())
	require.NoError(t, err)
	require.True(t, m.Chunked)
	require.Equal(t, uint32(272), m.Version)
}

func TestSkinOldFormatSniff(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(make([]byte, 8))  // indices array, empty
	buf.Write(make([]byte, 8))  // triangles array, empty
	buf.Write(make([]byte, 8))  // bone-indices array
	buf.Write(make([]byte, 8))  // submesh array
	buf.Write(make([]byte, 8))  // texture unit array

	s, err := ParseSkin(buf.Bytes())
	require.NoError(t, err)
	require.False(t, s.New)
}

// buildLegacyBodyWithParticle returns a minimal legacy body identical to
// buildLegacyBody(version) except its ParticleEmitters array points at one
// appended record of the given stride, with id/boneIndex set from the
// arguments and flags/textureIndex/position set to fixed values.
func buildLegacyBodyWithParticle(version uint32, stride int, id int32, boneIndex int16) []byte {
	body := buildLegacyBody(version)
	headerLen := len(body)

	binary.LittleEndian.PutUint32(body[headerLen-8:], 1)                 // ParticleEmitters.Count
	binary.LittleEndian.PutUint32(body[headerLen-4:], uint32(headerLen)) // ParticleEmitters.Offset

	rec := make([]byte, stride)
	binary.LittleEndian.PutUint32(rec[0:], uint32(id))
	binary.LittleEndian.PutUint32(rec[4:], 0x2) // flags
	binary.LittleEndian.PutUint16(rec[8:], uint16(boneIndex))
	binary.LittleEndian.PutUint16(rec[10:], 3) // texture index
	binary.LittleEndian.PutUint32(rec[12:], 0) // position.x = 0.0
	binary.LittleEndian.PutUint32(rec[16:], 0) // position.y = 0.0
	binary.LittleEndian.PutUint32(rec[20:], 0) // position.z = 0.0

	return append(body, rec...)
}

func TestParticleEmitterListDecodesHeadFields(t *testing.T) {
	body := buildLegacyBodyWithParticle(274, 0x150, 7, 12)
	m, err := Parse(body)
	require.NoError(t, err)
	require.Equal(t, uint32(1), m.ParticleEmitters.Count)

	emitters, err := m.ParticleEmitterList(0)
	require.NoError(t, err)
	require.Len(t, emitters, 1)
	require.Equal(t, int32(7), emitters[0].ID)
	require.Equal(t, int16(12), emitters[0].BoneIndex)
	require.Equal(t, uint16(3), emitters[0].TextureIndex)
	require.Len(t, emitters[0].Raw, 0x150)
}

func TestResolvePhysicsMissingFileID(t *testing.T) {
	body := buildLegacyBody(274)
	m, err := Parse(body)
	require.NoError(t, err)

	data, err := m.ResolvePhysics(func(kind ResolveKind, id uint32) ([]byte, error) {
		t.Fatalf("resolver should not be called when PhysicsFileID is zero")
		return nil, nil
	})
	require.NoError(t, err)
	require.Nil(t, data)
}

func TestSkinNewFormatSniff(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("SKIN")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(1))
	buf.Write(make([]byte, 8*5))

	s, err := ParseSkin(buf.Bytes())
	require.NoError(t, err)
	require.True(t, s.New)
	require.Equal(t, uint32(1), s.Version)
}
