package audio

import "encoding/binary"

// PCMToFloat32 converts little-endian signed 16-bit PCM bytes to float32
// samples normalised to the range [-1.0, 1.0) by dividing each sample by
// 32768. A trailing odd byte is not a whole sample and is silently
// dropped, matching the behaviour Konele clients have always seen.
//
// No resampling or channel handling happens here: the input is assumed to
// be mono at the deployment sample rate.
func PCMToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[2*i : 2*i+2]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}
