package compress

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, method byte, data []byte) {
	t.Helper()
	compressed, err := Compress(data, method)
	require.NoError(t, err)

	// Compress returns data unchanged when compression didn't help; in
	// that case there's nothing to decompress through the codec.
	if len(compressed) == len(data) {
		return
	}

	got, err := Decompress(compressed[1:], method, len(data))
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestZlibRoundTrip(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog, repeated. " +
		"the quick brown fox jumps over the lazy dog, repeated.")
	roundTrip(t, MethodZlib, data)
}

func TestLZMARoundTrip(t *testing.T) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i % 17)
	}
	compressed, err := Compress(data, MethodLZMA)
	require.NoError(t, err)
	if len(compressed) == len(data) {
		return
	}
	got, err := Decompress(compressed[1:], MethodLZMA, len(data))
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestSparseRoundTrip(t *testing.T) {
	data := append(make([]byte, 200), []byte("hello world")...)
	data = append(data, make([]byte, 50)...)
	encoded := sparseEncode(data)
	decoded, err := sparseDecode(encoded, len(data))
	require.NoError(t, err)
	require.Equal(t, data, decoded)
}

func TestADPCMMonoRoundTrip(t *testing.T) {
	pcm := make([]byte, 2+200)
	for i := 2; i < len(pcm); i += 2 {
		pcm[i] = byte(i)
		pcm[i+1] = byte(i / 7)
	}
	encoded := adpcmEncode(pcm, 1)
	require.NotNil(t, encoded)
	_, err := adpcmDecode(encoded, 1)
	require.NoError(t, err)
}

func TestCompressStoresWhenNotSmaller(t *testing.T) {
	data := []byte{1, 2, 3}
	out, err := Compress(data, MethodZlib)
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestBzip2DecodeOnly(t *testing.T) {
	_, err := Compress([]byte("some data worth compressing, over and over"), MethodBzip2)
	require.Error(t, err)
}
