package dialogue

import (
	"context"
	"sync"
	"time"

	"github.com/speakpair/dialogue-core/core/audio"
	"github.com/speakpair/dialogue-core/core/synthesis"
)

// levelMeter is the single shared analysis point for audio energy. Both the
// capture tap and playback feed it, but never at the same time: capture is
// live only while Listening and playback only while Speaking.
type levelMeter struct {
	mu       sync.Mutex
	level    float64
	encoding audio.EncodingInfo
}

func newLevelMeter(encoding audio.EncodingInfo) *levelMeter {
	if encoding.IsZero() {
		encoding = audio.GetDefaultEncodingInfo()
	}
	return &levelMeter{encoding: encoding}
}

func (m *levelMeter) feed(frame []byte) {
	level := audio.MeanAmplitude(frame, m.encoding)

	m.mu.Lock()
	m.level = level
	m.mu.Unlock()
}

func (m *levelMeter) sample() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

func (m *levelMeter) reset() {
	m.mu.Lock()
	m.level = 0
	m.mu.Unlock()
}

// audioPipeline hosts the two mutually exclusive audio sources of a session.
// The capture source is wired into the level meter only; synthesized speech
// is wired into both the meter and the real output. Capture never reaches
// the output: that is the feedback-prevention invariant, not a tunable.
type audioPipeline struct {
	mu     sync.Mutex
	meter  *levelMeter
	output AudioOutput

	loopCancel context.CancelFunc

	statusFn func() Status
	onLevel  func(float64)

	sampleInterval time.Duration
}

func newAudioPipeline(statusFn func() Status) *audioPipeline {
	return &audioPipeline{
		statusFn: statusFn,
		onLevel:  func(float64) {},
	}
}

func (p *audioPipeline) setOutput(output AudioOutput) {
	p.mu.Lock()
	p.output = output
	p.mu.Unlock()
}

func (p *audioPipeline) currentOutput() AudioOutput {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.output
}

func (p *audioPipeline) configure(onLevel func(float64), sampleInterval time.Duration) {
	p.mu.Lock()
	if onLevel != nil {
		p.onLevel = onLevel
	}
	p.sampleInterval = sampleInterval
	p.mu.Unlock()
}

// sharedMeter lazily creates the meter; it is reused for the whole session.
func (p *audioPipeline) sharedMeter(encoding audio.EncodingInfo) *levelMeter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.meter == nil {
		p.meter = newLevelMeter(encoding)
	}
	return p.meter
}

// tapCapture feeds a live microphone frame into the shared meter. This is
// the only thing capture audio is allowed to drive besides the recognizer.
func (p *audioPipeline) tapCapture(frame []byte, encoding audio.EncodingInfo) {
	p.sharedMeter(encoding).feed(frame)
}

// startVisualizer runs the sampling loop that forwards one mean-magnitude
// reading per tick. The loop self-terminates once the session disconnects.
func (p *audioPipeline) startVisualizer(ctx context.Context, encoding audio.EncodingInfo) {
	meter := p.sharedMeter(encoding)

	p.mu.Lock()
	if p.loopCancel != nil {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.loopCancel = cancel
	interval := p.sampleInterval
	onLevel := p.onLevel
	p.mu.Unlock()

	if interval <= 0 {
		interval = defaultPacing().LevelSampleInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if p.statusFn() == StatusDisconnected {
					return
				}
				onLevel(meter.sample())
			}
		}
	}()
}

// stopVisualizer cancels the sampling loop and drops the meter, so the
// next session rebuilds it from its own device's encoding.
func (p *audioPipeline) stopVisualizer() {
	p.mu.Lock()
	cancel := p.loopCancel
	p.loopCancel = nil
	meter := p.meter
	p.meter = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if meter != nil {
		meter.reset()
	}
}

// playClip plays a synthesized clip through the real output while feeding
// the shared meter, so the visualization stays continuous during playback.
// It blocks until the clip has drained or ctx is cancelled. Playback errors
// are deliberately not propagated: they advance state exactly like a normal
// end of playback so a broken output cannot deadlock the turn cycle.
func (p *audioPipeline) playClip(ctx context.Context, clip *synthesis.Speech) {
	if clip == nil || len(clip.Audio) == 0 {
		return
	}

	meter := p.sharedMeter(clip.EncodingInfo)

	p.mu.Lock()
	output := p.output
	p.mu.Unlock()

	meterCtx, meterCancel := context.WithCancel(ctx)
	defer meterCancel()
	go feedMeterPaced(meterCtx, meter, clip)

	if output == nil {
		// No speaker configured: approximate the clip duration so the
		// turn rhythm survives.
		waitOrCancel(ctx, clipDuration(clip))
		return
	}

	if err := output.SendAudio(clip.Audio); err != nil {
		logger.Warn("playback failed, advancing as if ended", "error", err)
		return
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		if err := output.AwaitDrain(); err != nil {
			logger.Warn("playback drain failed, advancing as if ended", "error", err)
		}
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		output.ClearBuffer()
	}
}

// feedMeterPaced walks the clip at real-time rate so the meter reflects
// what is currently audible rather than the whole clip at once.
func feedMeterPaced(ctx context.Context, meter *levelMeter, clip *synthesis.Speech) {
	bytesPerSecond := clip.EncodingInfo.BytesPerSecond()
	if bytesPerSecond <= 0 {
		return
	}

	const step = 50 * time.Millisecond
	chunkSize := bytesPerSecond * int(step.Milliseconds()) / 1000
	if chunkSize <= 0 {
		return
	}

	ticker := time.NewTicker(step)
	defer ticker.Stop()

	for offset := 0; offset < len(clip.Audio); offset += chunkSize {
		end := min(offset+chunkSize, len(clip.Audio))
		meter.feed(clip.Audio[offset:end])

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
	meter.reset()
}

func clipDuration(clip *synthesis.Speech) time.Duration {
	bytesPerSecond := clip.EncodingInfo.BytesPerSecond()
	if bytesPerSecond <= 0 {
		return 0
	}
	return time.Duration(len(clip.Audio)) * time.Second / time.Duration(bytesPerSecond)
}

func waitOrCancel(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
