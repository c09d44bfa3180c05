package audio

import (
	"encoding/binary"
	"math"
)

// MeanAmplitude computes the mean absolute amplitude of a mono PCM frame,
// normalized to [0, 1]. Frames in unsupported encodings report zero rather
// than erroring; level metering is a visualization aid, not a data path.
func MeanAmplitude(frame []byte, encoding EncodingInfo) float64 {
	if len(frame) == 0 {
		return 0
	}

	switch encoding.Format {
	case EncodingLinear16:
		sampleCount := len(frame) / 2
		if sampleCount == 0 {
			return 0
		}

		var total float64
		for i := 0; i < sampleCount*2; i += 2 {
			sample := int16(binary.LittleEndian.Uint16(frame[i : i+2]))
			total += math.Abs(float64(sample))
		}
		return total / float64(sampleCount) / math.MaxInt16

	case EncodingMulaw, EncodingALaw:
		// Companded formats center silence on their silence byte; distance
		// from it is a usable magnitude without a full decode.
		silence := encoding.SilenceValue()
		var total float64
		for _, b := range frame {
			total += math.Abs(float64(b) - float64(silence))
		}
		return total / float64(len(frame)) / float64(math.MaxUint8)
	}

	return 0
}
