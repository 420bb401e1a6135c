package wow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestM2ExpansionFromHeaderVersion(t *testing.T) {
	cases := []struct {
		version uint32
		want    Expansion
	}{
		{256, Vanilla},
		{257, Vanilla},
		{260, TBC},
		{263, TBC},
		{264, WotLK},
		{272, Cataclysm},
		{274, Legion},
	}
	for _, c := range cases {
		require.Equal(t, c.want, M2ExpansionFromHeaderVersion(c.version), "version %d", c.version)
	}
}

func TestBoneStride(t *testing.T) {
	require.Equal(t, 84, BoneStride(Vanilla))
	require.Equal(t, 88, BoneStride(TBC))
	require.Equal(t, 88, BoneStride(Dragonflight))
}

func TestHasCapabilityExternalSkinAndAnimation(t *testing.T) {
	require.False(t, HasCapability(Vanilla, CapExternalSkin))
	require.False(t, HasCapability(TBC, CapExternalSkin))
	require.True(t, HasCapability(WotLK, CapExternalSkin))
	require.True(t, HasCapability(Legion, CapExternalAnimation))
}

func TestHasCapabilityLegionOnly(t *testing.T) {
	for _, c := range []Capability{CapFileDataIDTextures, CapPhysicsFile, CapSkeletonFile, CapMLDD} {
		require.False(t, HasCapability(WoD, c))
		require.True(t, HasCapability(Legion, c))
	}
}

func TestHasCapabilityADTMatrix(t *testing.T) {
	require.False(t, HasCapability(Vanilla, CapMH2O))
	require.True(t, HasCapability(WotLK, CapMH2O))

	require.False(t, HasCapability(Vanilla, CapMFBO))
	require.True(t, HasCapability(TBC, CapMFBO))

	require.False(t, HasCapability(WotLK, CapSplitFiles))
	require.True(t, HasCapability(Cataclysm, CapSplitFiles))

	require.False(t, HasCapability(WotLK, CapChunkedEnvelope))
	require.True(t, HasCapability(Cataclysm, CapChunkedEnvelope))
}

func TestExpansionString(t *testing.T) {
	require.Equal(t, "Wrath of the Lich King", WotLK.String())
	require.Equal(t, "Unknown", Expansion(99).String())
}
