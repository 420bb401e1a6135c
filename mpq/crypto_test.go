package mpq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileNameHashCaseAndSeparatorInsensitive(t *testing.T) {
	a1, a2, a3 := FileNameHash("A/B/C.TXT")
	b1, b2, b3 := FileNameHash(`a\b\c.txt`)
	assert.Equal(t, a1, b1)
	assert.Equal(t, a2, b2)
	assert.Equal(t, a3, b3)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	keys := []uint32{0, 1, 0xdeadbeef, 0xffffffff, hashTableKey}
	for _, k := range keys {
		data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
		orig := append([]byte(nil), data...)

		encryptWords(data, k)
		decryptWords(data, k)

		require.Equal(t, orig, data, "round trip failed for key %#x", k)
	}
}

func TestWellKnownTableKeys(t *testing.T) {
	assert.Equal(t, uint32(0xc3af3770), hashTableKey)
	assert.Equal(t, uint32(0xec83b3a3), blockTableKey)
}

func TestFileKeyFixKeyModulation(t *testing.T) {
	base := fileKeyHash("secret.txt")
	withoutFix := fileKey("secret.txt", 0x1000, 0x20, false)
	assert.Equal(t, base, withoutFix)

	withFix := fileKey("secret.txt", 0x1000, 0x20, true)
	assert.Equal(t, (base+0x1000)^0x20, withFix)
}

func TestHetHashBitWidth(t *testing.T) {
	full, short := hetHash("(listfile)", 64)
	clipped, short2 := hetHash("(listfile)", 40)

	assert.Equal(t, short, short2)
	assert.Equal(t, full>>24, clipped)
}
