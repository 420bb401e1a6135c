// Package m2 parses Blizzard's M2 skinned-model format: the legacy MD20
// monolithic envelope and the Cataclysm+ MD21 chunked envelope, exposing
// the header's indirect arrays for lazy, on-demand materialization
// (spec.md §4.7). It mirrors the chunk-walking and lazy-array idioms
// package adt uses for terrain tiles, since both formats are built from
// the same {tag,size,payload} primitive.
package m2

import (
	"bytes"
	"encoding/binary"

	"github.com/wowemulation-dev/warcraft-go/chunk"
	"github.com/wowemulation-dev/warcraft-go/werr"
	"github.com/wowemulation-dev/warcraft-go/wow"
)

// Array is an M2Array indirection: count elements starting at
// offsetFromBodyStart bytes into the model's body slice.
type Array struct {
	Count  uint32
	Offset uint32
}

// Model is a parsed M2 file. Arrays are materialized lazily from body on
// first access through the Bones/Vertices/etc. accessors, never eagerly
// during Parse, per spec.md §4.7 step 3.
type Model struct {
	Expansion wow.Expansion
	Version   uint32
	Chunked   bool // true if the source carried an MD21 outer envelope

	body []byte // the legacy MD20 body, sliced out of an MD21 envelope if present

	Name            Array
	GlobalSequences Array
	Animations      Array
	AnimationLookup Array
	Bones           Array
	KeyBoneLookup   Array
	Vertices        Array
	Views           uint32 // legacy embedded skin count (pre-WotLK only)
	Colors          Array
	Textures        Array
	TextureWeights  Array
	TextureTransforms Array
	ReplaceableTextureLookup Array
	Materials       Array
	BoneLookup      Array
	TextureLookup   Array
	TextureUnitLookup Array
	TransparencyLookup Array
	TextureTransformLookup Array

	BoundingBox    [2][3]float32
	BoundingRadius float32
	CollisionBox   [2][3]float32
	CollisionRadius float32

	// Arrays beyond the core geometry/material set, parsed the same
	// lazy-materialization way as Bones/Vertices/etc. BoundingTriangles/
	// Vertices/Normals are consumed only by physical collision, so this
	// package exposes their raw M2Array without a dedicated accessor.
	BoundingTriangles Array
	BoundingVertices  Array
	BoundingNormals   Array
	Attachments       Array
	AttachmentLookup  Array
	Events            Array
	Lights            Array
	Cameras           Array
	CameraLookup      Array
	RibbonEmitters    Array
	ParticleEmitters  Array

	// Outer-chunk auxiliary file identifiers, Legion+ only (spec.md §4.7
	// "Physics/skeleton/bone files: Legion+ only via their respective
	// file-ID chunks").
	SkinFileIDs    []uint32
	AnimFileIDs    []uint32
	PhysicsFileID  uint32
	SkeletonFileID uint32
	BoneFileIDs    []uint32
	TextureFileIDs []uint32
}

// ResolveKind identifies which class of auxiliary file a resolver call
// is requesting, per spec.md §4.7's resolver contract.
type ResolveKind int

const (
	ResolveSkin ResolveKind = iota
	ResolveAnimation
	ResolvePhysics
	ResolveSkeleton
	ResolveBone
	ResolveTexture
)

// Resolver fetches auxiliary model data (skins, animations, physics,
// skeleton, bone, texture files) by file ID or legacy index. Returning
// (nil, nil) signals "missing dependency", distinct from a parse error,
// so headless inspection of a model with absent siblings still succeeds
// (spec.md §4.7).
type Resolver func(kind ResolveKind, fileIDOrIndex uint32) ([]byte, error)

const (
	md20Magic = "MD20"
	md21Tag   = "MD21"
)

// Parse detects the envelope, parses the legacy header, and returns a
// Model whose array accessors read lazily from the captured body.
func Parse(data []byte) (*Model, error) {
	if len(data) < 4 {
		return nil, werr.New(werr.InvalidFormat, "m2: file too short")
	}

	m := &Model{}
	body := data

	if string(data[0:4]) != md20Magic {
		// Not a bare legacy body; walk the outer chunk envelope looking
		// for MD21, per spec.md §4.7 step 1.
		w := chunk.NewWalker(bytes.NewReader(data), int64(len(data)))
		var md21 *chunk.Record
		var skinIDs, animIDs, boneIDs, texIDs []uint32
		var physID, skelID uint32

		err := w.Walk(func(rec chunk.Record) error {
			switch rec.Tag.String() {
			case md21Tag:
				r := rec
				md21 = &r
			case "SFID":
				skinIDs = readU32Array(data, rec)
			case "AFID":
				animIDs = readU32Array(data, rec)
			case "BFID":
				boneIDs = readU32Array(data, rec)
			case "TXID":
				texIDs = readU32Array(data, rec)
			case "PFID":
				if rec.Size >= 4 {
					physID = binary.LittleEndian.Uint32(data[rec.DataStart:])
				}
			case "SKID":
				if rec.Size >= 4 {
					skelID = binary.LittleEndian.Uint32(data[rec.DataStart:])
				}
			}
			return nil
		})
		if err != nil {
			return nil, werr.Wrap(werr.InvalidFormat, "m2: walk outer chunks", err)
		}
		if md21 == nil {
			return nil, werr.New(werr.InvalidFormat, "m2: missing MD20/MD21 envelope")
		}

		body = data[md21.DataStart : md21.DataStart+int64(md21.Size)]
		if len(body) < 4 || string(body[0:4]) != md20Magic {
			return nil, werr.New(werr.InvalidFormat, "m2: MD21 payload missing MD20 magic")
		}

		m.Chunked = true
		m.SkinFileIDs = skinIDs
		m.AnimFileIDs = animIDs
		m.BoneFileIDs = boneIDs
		m.TextureFileIDs = texIDs
		m.PhysicsFileID = physID
		m.SkeletonFileID = skelID
	}

	if err := m.parseLegacyHeader(body); err != nil {
		return nil, err
	}
	m.body = body
	m.Expansion = wow.M2ExpansionFromHeaderVersion(m.Version)
	return m, nil
}

func readU32Array(data []byte, rec chunk.Record) []uint32 {
	n := int(rec.Size / 4)
	out := make([]uint32, n)
	for i := 0; i < n; i++ {
		out[i] = binary.LittleEndian.Uint32(data[int(rec.DataStart)+i*4:])
	}
	return out
}

// BoneStride returns this model's on-disk bone record size, switching on
// its detected expansion per spec.md §3.3: implementers must never reuse
// a single stride constant across versions.
func (m *Model) BoneStride() int {
	return wow.BoneStride(m.Expansion)
}

// HasFileDataIDTextures reports whether this model's texture references
// are resolved through FileDataIDs (Legion+) rather than embedded string
// paths.
func (m *Model) HasFileDataIDTextures() bool {
	return wow.HasCapability(m.Expansion, wow.CapFileDataIDTextures)
}

// HasExternalSkins reports whether skin geometry lives in external
// .skin sibling files rather than the embedded legacy views.
func (m *Model) HasExternalSkins() bool {
	return wow.HasCapability(m.Expansion, wow.CapExternalSkin)
}
