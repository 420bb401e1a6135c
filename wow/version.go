// Package wow holds the engine version enum and feature capability matrix
// shared by the m2 and adt parsers (spec.md's "Version model & conversion"
// component). MPQ's own format_version (0-3) is a separate, narrower enum
// that lives in package mpq since nothing outside the archive engine needs
// it.
package wow

// Expansion is a WoW content release, ordered chronologically. The M2 and
// ADT parsers both discriminate behaviour against this enum, each reading
// it from a different signal (M2: header version field; ADT: chunk
// presence).
type Expansion int

const (
	Vanilla Expansion = iota
	TBC
	WotLK
	Cataclysm
	MoP
	WoD
	Legion
	BfA
	Shadowlands
	Dragonflight
)

func (e Expansion) String() string {
	switch e {
	case Vanilla:
		return "Vanilla"
	case TBC:
		return "The Burning Crusade"
	case WotLK:
		return "Wrath of the Lich King"
	case Cataclysm:
		return "Cataclysm"
	case MoP:
		return "Mists of Pandaria"
	case WoD:
		return "Warlords of Draenor"
	case Legion:
		return "Legion"
	case BfA:
		return "Battle for Azeroth"
	case Shadowlands:
		return "Shadowlands"
	case Dragonflight:
		return "Dragonflight"
	default:
		return "Unknown"
	}
}

// M2ExpansionFromHeaderVersion maps an M2 header version field to the
// expansion that introduced it, per spec.md §3.3:
//
//	256-257 Vanilla, 260-263 TBC, 264 WotLK, 272 Cataclysm, 273+ later.
//
// Every other version above 264, including all of 273+, maps to Legion.
// The answer comes from the version field alone; m2.Parse stores it as is
// and nothing refines it by chunk presence.
func M2ExpansionFromHeaderVersion(version uint32) Expansion {
	switch {
	case version <= 257:
		return Vanilla
	case version <= 263:
		return TBC
	case version == 264:
		return WotLK
	case version == 272:
		return Cataclysm
	default:
		return Legion
	}
}

// BoneStride returns the on-disk size in bytes of one M2 bone record for
// the given expansion. Vanilla uses 84-byte records; every later
// expansion (starting TBC) widened the record to 88 bytes. Implementers
// must not reuse a single stride constant across versions (spec.md §3.3).
func BoneStride(e Expansion) int {
	if e == Vanilla {
		return 84
	}
	return 88
}

// Capability is a named feature whose presence/absence depends on
// expansion.
type Capability int

const (
	// CapExternalSkin: skin data lives in external .skin sibling files
	// rather than embedded in the M2 body.
	CapExternalSkin Capability = iota
	// CapExternalAnimation: animation data lives in external .anim
	// sibling files (or the Legion+ MAOF chunked form) rather than
	// embedded.
	CapExternalAnimation
	// CapFileDataIDTextures: texture references are FileDataIDs resolved
	// through a callback, not string paths.
	CapFileDataIDTextures
	// CapPhysicsFile: a .phys sibling (or PFID chunk) may be present.
	CapPhysicsFile
	// CapSkeletonFile: a .skel sibling (or SKID chunk) may be present.
	CapSkeletonFile
	// CapChunkedEnvelope: the model is wrapped in an outer MD21 chunk
	// envelope rather than being a bare MD20 body.
	CapChunkedEnvelope
	// CapMH2O: ADT liquid data uses the MH2O chunk (WotLK+) rather than
	// the legacy MCLQ sub-chunk.
	CapMH2O
	// CapMFBO: ADT flight bounds chunk is present (TBC+).
	CapMFBO
	// CapSplitFiles: the ADT tile is split into root/tex0/obj0/lod
	// sibling files (Cataclysm+).
	CapSplitFiles
	// CapMLDD: ADT uses the Legion+ doodad/WMO definition chunks
	// (MLDD/MLDX/MLMD/MLMX) instead of the legacy MDDF/MODF chunks.
	CapMLDD
)

// HasCapability reports whether the given expansion carries the named
// capability. This is the "chunk/feature capability matrix" named in
// spec.md §2. This module has no downgrade/upgrade transforms between
// versions; the matrix only answers capability queries.
func HasCapability(e Expansion, c Capability) bool {
	switch c {
	case CapExternalSkin, CapExternalAnimation:
		return e >= WotLK
	case CapFileDataIDTextures, CapPhysicsFile, CapSkeletonFile:
		return e >= Legion
	case CapChunkedEnvelope:
		return e >= Cataclysm
	case CapMH2O:
		return e >= WotLK
	case CapMFBO:
		return e >= TBC
	case CapSplitFiles:
		return e >= Cataclysm
	case CapMLDD:
		return e >= Legion
	default:
		return false
	}
}
