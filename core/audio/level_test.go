package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestMeanAmplitudeSilenceIsZero(t *testing.T) {
	encoding := GetDefaultEncodingInfo()

	frame := make([]byte, 320)
	if level := MeanAmplitude(frame, encoding); level != 0 {
		t.Fatalf("expected silence to measure zero, got %f", level)
	}
}

func TestMeanAmplitudeFullScaleLinear16(t *testing.T) {
	encoding := GetDefaultEncodingInfo()

	frame := make([]byte, 320)
	for i := 0; i < len(frame); i += 2 {
		binary.LittleEndian.PutUint16(frame[i:i+2], uint16(int16(math.MaxInt16)))
	}

	level := MeanAmplitude(frame, encoding)
	if math.Abs(level-1.0) > 1e-9 {
		t.Fatalf("expected full-scale frame to measure 1.0, got %f", level)
	}
}

func TestMeanAmplitudeEmptyFrame(t *testing.T) {
	if level := MeanAmplitude(nil, GetDefaultEncodingInfo()); level != 0 {
		t.Fatalf("expected empty frame to measure zero, got %f", level)
	}
}

func TestMeanAmplitudeMulawSilence(t *testing.T) {
	encoding := EncodingInfo{SampleRate: 8000, Format: EncodingMulaw}

	frame := make([]byte, 160)
	for i := range frame {
		frame[i] = encoding.SilenceValue()
	}

	if level := MeanAmplitude(frame, encoding); level != 0 {
		t.Fatalf("expected mulaw silence to measure zero, got %f", level)
	}
}
