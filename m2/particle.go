package m2

import (
	"encoding/binary"

	"github.com/wowemulation-dev/warcraft-go/werr"
)

// ParticleEmitter decodes the stable front fields of an M2 particle
// emitter record: identity, the bone it's attached to, and its base
// texture and position. The real on-disk record continues with dozens
// of version-dependent animation tracks (emission speed, variation,
// spread, gravity, lifespan, …) describing particle *simulation*
// parameters, which this core does not model since simulating particles
// is explicitly out of scope (spec.md §1); callers that need those
// fields can slice Raw themselves.
type ParticleEmitter struct {
	ID           int32
	Flags        uint32
	BoneIndex    int16
	TextureIndex uint16
	Position     [3]float32

	// Raw is the emitter's full on-disk record, front fields included,
	// for callers that decode version-specific trailing fields.
	Raw []byte
}

// particleEmitterHeadSize is the fixed front-field prefix this package
// decodes; the real record is substantially larger and varies by
// version.
const particleEmitterHeadSize = 4 + 4 + 2 + 2 + 12

// ParticleEmitterList materializes the model's particle emitter array,
// one ParticleEmitter per entry, per spec.md's physics/particle payload
// note in §3.3 ("the particles package ... describe two further
// Legion+ payloads the distilled spec only gestures at").
//
// particleEmitterStride is the caller-supplied on-disk record size,
// since the real stride varies by model version far more than this
// package's parsed subset needs to track; callers that know their
// model's exact version should pass the matching wowdev-documented
// stride, defaulting to the common post-Cataclysm 0x150-byte record.
func (m *Model) ParticleEmitterList(stride int) ([]ParticleEmitter, error) {
	if stride <= 0 {
		stride = 0x150
	}
	buf, err := m.slice(m.ParticleEmitters, stride)
	if err != nil {
		return nil, err
	}
	out := make([]ParticleEmitter, m.ParticleEmitters.Count)
	for i := range out {
		off := i * stride
		rec := buf[off : off+stride]
		if len(rec) < particleEmitterHeadSize {
			return nil, werr.New(werr.InvalidFormat, "m2: particle emitter record shorter than head size")
		}
		out[i] = ParticleEmitter{
			ID:           int32(binary.LittleEndian.Uint32(rec[0:])),
			Flags:        binary.LittleEndian.Uint32(rec[4:]),
			BoneIndex:    int16(binary.LittleEndian.Uint16(rec[8:])),
			TextureIndex: binary.LittleEndian.Uint16(rec[10:]),
			Position: [3]float32{
				bitsToFloat32(binary.LittleEndian.Uint32(rec[12:])),
				bitsToFloat32(binary.LittleEndian.Uint32(rec[16:])),
				bitsToFloat32(binary.LittleEndian.Uint32(rec[20:])),
			},
			Raw: rec,
		}
	}
	return out, nil
}

// ResolvePhysics fetches this model's .phys sibling through resolver and
// returns it unparsed. Deep physics semantics (rigid bodies, shapes,
// joints) are out of this core's scope per spec.md §1; the blob is
// handed back as-is for a caller that wants to parse it independently.
// Returns (nil, nil) for a pre-Legion model or a resolver miss, matching
// the "missing dependency, not an error" contract of §4.7.
func (m *Model) ResolvePhysics(resolver Resolver) ([]byte, error) {
	if m.PhysicsFileID == 0 {
		return nil, nil
	}
	data, err := resolver(ResolvePhysics, m.PhysicsFileID)
	if err != nil {
		return nil, werr.Wrap(werr.IoError, "m2: resolve physics", err)
	}
	return data, nil
}
