package audio

import "math"

// Levels computes the RMS energy and peak amplitude of a block of
// 16-bit signed little-endian PCM in one pass, both normalized to
// 0.0..1.0. The capture pipeline reports these per block for the mic
// activity meter.
func Levels(pcm []byte) (rms, peak float64) {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0, 0
	}

	var sum float64
	for i := 0; i < len(pcm)-1; i += 2 {
		// float64 before the division: negating -32768 overflows int16.
		sample := float64(int16(pcm[i]) | int16(pcm[i+1])<<8)
		normalized := sample / 32768.0
		sum += normalized * normalized
		if abs := math.Abs(normalized); abs > peak {
			peak = abs
		}
	}

	return math.Sqrt(sum / float64(samples)), peak
}
