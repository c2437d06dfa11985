package audio

import (
	"encoding/binary"
	"math"
)

// MonoToStereo duplicates each int16 mono sample into a stereo L+R pair.
func MonoToStereo(pcm []byte) []byte {
	out := make([]byte, (len(pcm)/2)*4)
	for i := 0; i+1 < len(pcm); i += 2 {
		j := i * 2
		out[j], out[j+1] = pcm[i], pcm[i+1]
		out[j+2], out[j+3] = pcm[i], pcm[i+1]
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using linear
// interpolation. If the rates match, or either is invalid, pcm is returned as is.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	resampled := ResampleFloat32(samples, srcRate, dstRate)
	out := make([]byte, len(resampled)*2)
	for i, s := range resampled {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(clamp16(s)))
	}
	return out
}

// ToMonoFloat32 converts interleaved int16 PCM to mono float32 samples in
// [-1, 1]. Multi-channel input is downmixed by averaging the channels of each
// sample frame; a trailing partial frame is ignored.
func ToMonoFloat32(pcm []byte, channels int) []float32 {
	if channels < 1 {
		channels = 1
	}
	frameBytes := channels * 2
	frames := len(pcm) / frameBytes
	out := make([]float32, frames)
	for i := range frames {
		var sum int32
		base := i * frameBytes
		for c := range channels {
			sum += int32(int16(binary.LittleEndian.Uint16(pcm[base+c*2:])))
		}
		out[i] = float32(sum) / float32(channels) / 32768.0
	}
	return out
}

// ResampleFloat32 resamples mono float samples from srcRate to dstRate using
// linear interpolation. The output length is floor(len * dst / src).
func ResampleFloat32(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(samples) == 0 {
		return samples
	}
	n := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	out := make([]float32, n)
	ratio := float64(srcRate) / float64(dstRate)
	last := len(samples) - 1
	for i := range n {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))
		s0 := samples[idx]
		s1 := s0
		if idx < last {
			s1 = samples[idx+1]
		}
		out[i] = s0*(1-frac) + s1*frac
	}
	return out
}

// Float32ToPCM16 converts float samples in [-1, 1] to little-endian int16 PCM.
// Out-of-range samples are clipped.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(clamp16(s*32767)))
	}
	return out
}

// RMS16 returns the root-mean-square energy of int16 PCM, in sample units
// (0 to 32767). It returns 0 for buffers shorter than one sample.
func RMS16(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

func clamp16(v float32) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}
