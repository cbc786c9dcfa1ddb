// SPDX-License-Identifier: EPL-2.0

package utils

import (
	"encoding/binary"
	"math"
)

// Float32ToInt16 clamps x to [-1, 1] and scales it to 16 bits.
func Float32ToInt16(x float32) int16 {
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}

	// 32767 keeps +1.0 from overflowing
	return int16(x * 32767.0)
}

// Int16ToFloat32 scales a 16-bit sample to [-1, 1).
func Int16ToFloat32(s int16) float32 {
	return float32(s) / 32768.0
}

// PCM16ToFloat32 converts little endian 16-bit samples in src into dst and
// returns the number of samples written.
func PCM16ToFloat32(dst []float32, src []byte) int {
	n := min(len(dst), len(src)/2)
	for i := range n {
		dst[i] = Int16ToFloat32(int16(binary.LittleEndian.Uint16(src[2*i:])))
	}
	return n
}

// AppendPCM16 appends samples as little endian 16-bit PCM to dst.
func AppendPCM16(dst []byte, samples []int16) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(s))
	}
	return dst
}

// AppendFloat32AsPCM16 appends float samples as little endian 16-bit PCM.
func AppendFloat32AsPCM16(dst []byte, samples []float32) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(Float32ToInt16(s)))
	}
	return dst
}

// IntToPCM16 rescales an integer sample of the given bit depth to 16 bits.
func IntToPCM16(v int, bitDepth int) int16 {
	switch {
	case bitDepth == 8:
		// 8-bit PCM is unsigned in WAV, signed elsewhere; callers pass signed values
		return int16(v << 8)
	case bitDepth <= 16:
		return int16(v)
	default:
		return int16(v >> (bitDepth - 16))
	}
}

// ScalePCM16 multiplies 16-bit little endian samples in p by gain in place,
// saturating at the int16 range.
func ScalePCM16(p []byte, gain float32) {
	if gain == 1 {
		return
	}
	for i := 0; i+1 < len(p); i += 2 {
		v := float32(int16(binary.LittleEndian.Uint16(p[i:]))) * gain
		v = float32(math.Max(math.MinInt16, math.Min(math.MaxInt16, float64(v))))
		binary.LittleEndian.PutUint16(p[i:], uint16(int16(v)))
	}
}
