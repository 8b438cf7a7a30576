package audio

import (
	"encoding/binary"
	"math"
)

// PCM16ToFloat32 converts s16le bytes to float samples in [-1, 1).
// A trailing odd byte is ignored.
func PCM16ToFloat32(b []byte) []float32 {
	out := make([]float32, len(b)/2)
	for i := range out {
		s := int16(binary.LittleEndian.Uint16(b[i*2:]))
		out[i] = float32(s) / 32768
	}
	return out
}

// Float32ToPCM16 converts float samples to s16le bytes, clipping to [-1, 1].
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s*32767)))
	}
	return out
}

// RMS returns the root-mean-square of samples, 0 for an empty slice.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// RMSPCM16 is RMS over s16le bytes, clamped to [0, 1].
func RMSPCM16(b []byte) float64 {
	n := len(b) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(b[i*2:]))) / 32768
		sum += v * v
	}
	return math.Min(1, math.Sqrt(sum/float64(n)))
}
