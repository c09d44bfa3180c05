package dialogue

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/speakpair/dialogue-core/core/audio"
	"github.com/speakpair/dialogue-core/core/synthesis"
	"github.com/stretchr/testify/assert"
)

type statusHolder struct {
	mu     sync.Mutex
	status Status
}

func (h *statusHolder) get() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

func (h *statusHolder) set(status Status) {
	h.mu.Lock()
	h.status = status
	h.mu.Unlock()
}

func fullScaleFrame(samples int) []byte {
	frame := make([]byte, 2*samples)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(frame[2*i:], uint16(math.MaxInt16))
	}
	return frame
}

func TestVisualizerForwardsCaptureLevels(t *testing.T) {
	status := &statusHolder{status: StatusListening}
	pipeline := newAudioPipeline(status.get)

	var mu sync.Mutex
	var levels []float64
	pipeline.configure(func(level float64) {
		mu.Lock()
		levels = append(levels, level)
		mu.Unlock()
	}, time.Millisecond)

	encoding := audio.GetDefaultEncodingInfo()
	pipeline.startVisualizer(context.Background(), encoding)
	defer pipeline.stopVisualizer()

	pipeline.tapCapture(fullScaleFrame(160), encoding)

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, level := range levels {
			if level > 0.9 {
				return true
			}
		}
		return false
	}, "a near-full-scale level sample")
}

func TestVisualizerStopsOnDisconnect(t *testing.T) {
	status := &statusHolder{status: StatusListening}
	pipeline := newAudioPipeline(status.get)

	var mu sync.Mutex
	samples := 0
	pipeline.configure(func(float64) {
		mu.Lock()
		samples++
		mu.Unlock()
	}, time.Millisecond)

	pipeline.startVisualizer(context.Background(), audio.GetDefaultEncodingInfo())
	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return samples > 0
	}, "visualizer to tick")

	status.set(StatusDisconnected)
	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	after := samples
	mu.Unlock()
	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	final := samples
	mu.Unlock()

	assert.LessOrEqual(t, final, after+1, "sampling loop must self-terminate on disconnect")
}

func TestStopVisualizerDropsMeter(t *testing.T) {
	pipeline := newAudioPipeline(func() Status { return StatusListening })

	first := pipeline.sharedMeter(audio.EncodingInfo{SampleRate: 8000, Format: audio.EncodingMulaw})
	pipeline.stopVisualizer()

	// A fresh session may bring a different capture device; the meter must
	// pick up that device's encoding instead of the old one.
	second := pipeline.sharedMeter(audio.GetDefaultEncodingInfo())
	assert.NotSame(t, first, second)
	assert.Equal(t, audio.GetDefaultEncodingInfo(), second.encoding)
}

func TestPlayClipSendsOnlySynthesizedAudio(t *testing.T) {
	pipeline := newAudioPipeline(func() Status { return StatusSpeaking })
	output := newStubOutput(false)
	pipeline.setOutput(output)

	encoding := audio.GetDefaultEncodingInfo()

	// Capture taps must never reach the output.
	pipeline.tapCapture(fullScaleFrame(160), encoding)
	assert.Zero(t, output.sent)

	clip := &synthesis.Speech{Audio: make([]byte, 640), EncodingInfo: encoding}
	pipeline.playClip(context.Background(), clip)
	assert.Equal(t, 640, output.sent)
}

func TestPlayClipWithoutOutputApproximatesDuration(t *testing.T) {
	pipeline := newAudioPipeline(func() Status { return StatusSpeaking })

	encoding := audio.GetDefaultEncodingInfo()
	bytesPerSecond := encoding.BytesPerSecond()
	clip := &synthesis.Speech{
		// 50ms worth of audio.
		Audio:        make([]byte, bytesPerSecond/20),
		EncodingInfo: encoding,
	}

	start := time.Now()
	pipeline.playClip(context.Background(), clip)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestPlayClipCancellation(t *testing.T) {
	pipeline := newAudioPipeline(func() Status { return StatusSpeaking })
	output := newStubOutput(true)
	pipeline.setOutput(output)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		pipeline.playClip(ctx, &synthesis.Speech{
			Audio:        make([]byte, 640),
			EncodingInfo: audio.GetDefaultEncodingInfo(),
		})
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("playClip did not unblock on cancellation")
	}
	assert.Positive(t, output.cleared)
}
