package checkpoint

import (
	"encoding/binary"
	"fmt"
	"math"
)

const bytesPerSample = 4

// EncodeSamples serializes samples as little-endian float32
func EncodeSamples(samples []float32) []byte {
	buf := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*bytesPerSample:], math.Float32bits(s))
	}
	return buf
}

// DecodeSamples parses little-endian float32 audio. A length that is not a
// whole number of samples, or a NaN or infinite value, is rejected.
func DecodeSamples(data []byte) ([]float32, error) {
	if len(data)%bytesPerSample != 0 {
		return nil, fmt.Errorf("truncated sample data: %d bytes", len(data))
	}

	samples := make([]float32, len(data)/bytesPerSample)
	for i := range samples {
		v := math.Float32frombits(binary.LittleEndian.Uint32(data[i*bytesPerSample:]))
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, fmt.Errorf("invalid sample at %d", i)
		}
		samples[i] = v
	}
	return samples, nil
}
