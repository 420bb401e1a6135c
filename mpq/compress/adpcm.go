package compress

import (
	"encoding/binary"

	"github.com/wowemulation-dev/warcraft-go/werr"
)

// Blizzard's ADPCM mono/stereo codecs (method bits 0x40/0x80), used for
// WAV sound assets stored inside MPQ archives. This is a classic
// IMA-ADPCM-derived step/index predictor, always the innermost stage of
// a compression pipeline (spec.md §4.2): by the time decompression
// reaches this stage, any outer zlib/sparse/etc. layer has already been
// undone.

var adpcmStepTable = [89]int32{
	7, 8, 9, 10, 11, 12, 13, 14, 16, 17,
	19, 21, 23, 25, 28, 31, 34, 37, 41, 45,
	50, 55, 60, 66, 73, 80, 88, 97, 107, 118,
	130, 143, 157, 173, 190, 209, 230, 253, 279, 307,
	337, 371, 408, 449, 494, 544, 598, 658, 724, 796,
	876, 963, 1060, 1166, 1282, 1411, 1552, 1707, 1878, 2066,
	2272, 2499, 2749, 3024, 3327, 3660, 4026, 4428, 4871, 5358,
	5894, 6484, 7132, 7845, 8630, 9493, 10442, 11487, 12635, 13899,
	15289, 16818, 18500, 20350, 22385, 24623, 27086, 29794, 32767,
}

var adpcmIndexTable = [16]int32{
	-1, -1, -1, -1, 2, 4, 6, 8,
	-1, -1, -1, -1, 2, 4, 6, 8,
}

type adpcmChannelState struct {
	predicted int32
	index     int32
}

func clampIndex(i int32) int32 {
	if i < 0 {
		return 0
	}
	if i > int32(len(adpcmStepTable)-1) {
		return int32(len(adpcmStepTable) - 1)
	}
	return i
}

func clampSample(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// adpcmDecode decodes a Blizzard-ADPCM sector into 16-bit little-endian
// PCM, channels interleaved for stereo. The sector begins with one
// initial 16-bit sample (and its step index, implicit at the initial
// default) per channel, matching the storage layout this codec family
// uses across the corpus.
func adpcmDecode(data []byte, channels int) ([]byte, error) {
	if channels != 1 && channels != 2 {
		return nil, werr.New(werr.CompressionError, "adpcm: unsupported channel count")
	}
	headerSize := 2 * channels
	if len(data) < headerSize {
		return nil, werr.New(werr.CompressionError, "adpcm: sector too short for header")
	}

	states := make([]adpcmChannelState, channels)
	out := make([]byte, 0, len(data)*4)
	for c := 0; c < channels; c++ {
		sample := int16(binary.LittleEndian.Uint16(data[c*2:]))
		states[c].predicted = int32(sample)
		states[c].index = 0
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(sample))
		out = append(out, b[:]...)
	}

	pos := headerSize
	ch := 0
	for pos < len(data) {
		b := data[pos]
		pos++
		for _, nibble := range [2]byte{b & 0x0F, b >> 4} {
			s := &states[ch%channels]
			step := adpcmStepTable[s.index]

			diff := step >> 3
			if nibble&1 != 0 {
				diff += step >> 2
			}
			if nibble&2 != 0 {
				diff += step >> 1
			}
			if nibble&4 != 0 {
				diff += step
			}
			if nibble&8 != 0 {
				diff = -diff
			}

			s.predicted += diff
			sample := clampSample(s.predicted)
			s.predicted = int32(sample)
			s.index = clampIndex(s.index + adpcmIndexTable[nibble])

			var out16 [2]byte
			binary.LittleEndian.PutUint16(out16[:], uint16(sample))
			out = append(out, out16[:]...)
			ch++
		}
	}

	return out, nil
}

// adpcmEncode is the inverse of adpcmDecode, used only when the builder
// is asked to stage a file with explicit adpcm_mono/adpcm_stereo
// compression (spec.md §4.6).
func adpcmEncode(data []byte, channels int) []byte {
	headerSize := 2 * channels
	if len(data) < headerSize {
		return nil
	}

	states := make([]adpcmChannelState, channels)
	out := make([]byte, headerSize)
	for c := 0; c < channels; c++ {
		sample := int16(binary.LittleEndian.Uint16(data[c*2:]))
		states[c].predicted = int32(sample)
		binary.LittleEndian.PutUint16(out[c*2:], uint16(sample))
	}

	samples := (len(data) - headerSize) / 2
	var nibbles []byte
	for i := 0; i < samples; i++ {
		ch := i % channels
		s := &states[ch]
		pos := headerSize + i*2
		target := int32(int16(binary.LittleEndian.Uint16(data[pos:])))

		step := adpcmStepTable[s.index]
		diff := target - s.predicted
		nibble := int32(0)
		if diff < 0 {
			nibble = 8
			diff = -diff
		}

		d := diff
		newDiff := step >> 3
		if d >= step {
			nibble |= 4
			d -= step
			newDiff += step
		}
		half := step >> 1
		if d >= half {
			nibble |= 2
			d -= half
			newDiff += half
		}
		quarter := step >> 2
		if d >= quarter {
			nibble |= 1
			newDiff += quarter
		}

		if nibble&8 != 0 {
			s.predicted -= newDiff
		} else {
			s.predicted += newDiff
		}
		s.predicted = int32(clampSample(s.predicted))
		s.index = clampIndex(s.index + adpcmIndexTable[nibble])

		nibbles = append(nibbles, byte(nibble))
	}

	for i := 0; i < len(nibbles); i += 2 {
		lo := nibbles[i]
		var hi byte
		if i+1 < len(nibbles) {
			hi = nibbles[i+1]
		}
		out = append(out, lo|(hi<<4))
	}

	return out
}
