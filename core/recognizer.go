package dialogue

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/speakpair/dialogue-core/core/audio"
	"github.com/speakpair/dialogue-core/core/recognition"
)

// recognizerManager arms the recognizer for one utterance at a time and
// re-arms it after each end-of-utterance. It owns two of the coordinator's
// guarantees:
//
//   - anti-echo: transcripts are only forwarded while the session is
//     Listening, so the recognizer picking up the session's own speech
//     can never loop a reply back in as user input;
//   - debounced restarts: re-arming is delayed so a recognizer that ends
//     immediately cannot thrash in a tight start/stop loop.
type recognizerManager struct {
	mu     sync.Mutex
	client Recognizer

	// epoch invalidates callbacks of superseded Listen calls. Suspending
	// or stopping bumps it; an end callback carrying a stale epoch is
	// ignored instead of re-arming.
	epoch int

	listenCtx    context.Context
	restartTimer *time.Timer
	suspended    bool
	active       bool
	warnedOnce   bool

	encoding audio.EncodingInfo
	language string
	debounce time.Duration

	statusFn    func() Status
	onUtterance func(transcript string)
}

func newRecognizerManager(statusFn func() Status) *recognizerManager {
	return &recognizerManager{statusFn: statusFn}
}

func (m *recognizerManager) set(client Recognizer) {
	m.mu.Lock()
	m.client = client
	m.mu.Unlock()
}

func (m *recognizerManager) configure(encoding audio.EncodingInfo, language string, debounce time.Duration, onUtterance func(string)) {
	m.mu.Lock()
	m.encoding = encoding
	m.language = language
	m.debounce = debounce
	m.onUtterance = onUtterance
	m.mu.Unlock()
}

// start arms the first Listen of the session. A session without a
// recognizer is not an error: it degrades to text-only input.
func (m *recognizerManager) start(ctx context.Context) {
	m.mu.Lock()
	if m.client == nil {
		if !m.warnedOnce {
			m.warnedOnce = true
			log.Println("WARN: no recognizer configured, session is text-only")
		}
		m.mu.Unlock()
		return
	}
	m.listenCtx = ctx
	m.active = true
	m.mu.Unlock()

	if err := m.listen(); err != nil {
		logger.Warn("failed to arm recognizer", "error", err)
	}
}

func (m *recognizerManager) listen() error {
	m.mu.Lock()
	client := m.client
	ctx := m.listenCtx
	epoch := m.epoch
	encoding := m.encoding
	language := m.language
	m.mu.Unlock()

	if client == nil || ctx == nil {
		return nil
	}

	err := client.Listen(ctx,
		recognition.WithEncodingInfo(encoding),
		recognition.WithLanguage(language),
		recognition.WithUtteranceCallback(func(transcript string) {
			m.deliver(epoch, transcript)
		}),
		recognition.WithEndCallback(func() {
			m.scheduleRestart(epoch)
		}),
		recognition.WithErrorCallback(func(err error) {
			logger.Warn("recognition error", "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to start listening: %w", err)
	}
	return nil
}

// deliver forwards a final transcript, unless the Listen call it came from
// was superseded or the session is not accepting user speech right now.
func (m *recognizerManager) deliver(epoch int, transcript string) {
	m.mu.Lock()
	stale := epoch != m.epoch || m.suspended || !m.active
	onUtterance := m.onUtterance
	m.mu.Unlock()

	if stale || transcript == "" {
		return
	}
	if m.statusFn() != StatusListening {
		return
	}
	if onUtterance != nil {
		onUtterance(transcript)
	}
}

// scheduleRestart re-arms listening after the debounce window. Repeated end
// signals within the window collapse into a single restart.
func (m *recognizerManager) scheduleRestart(epoch int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if epoch != m.epoch || m.suspended || !m.active {
		return
	}
	if m.restartTimer != nil {
		m.restartTimer.Stop()
	}
	m.restartTimer = time.AfterFunc(m.debounce, func() {
		m.restartIfCurrent(epoch)
	})
}

// restartIfCurrent re-arms listening only when the epoch the restart was
// scheduled under is still the live one. A suspend that raced the timer
// fire has bumped the epoch, and re-arming then would open a stream that
// the suspension's stop already missed.
func (m *recognizerManager) restartIfCurrent(epoch int) {
	m.mu.Lock()
	ok := epoch == m.epoch && !m.suspended && m.active
	m.mu.Unlock()

	if !ok {
		return
	}
	if err := m.listen(); err != nil {
		logger.Warn("failed to re-arm recognizer", "error", err)
	}
}

// suspend halts recognition for the duration of the session's own speech.
// The in-flight Listen call is detached so its late callbacks are inert.
func (m *recognizerManager) suspend() {
	m.mu.Lock()
	client := m.client
	m.epoch++
	m.suspended = true
	if m.restartTimer != nil {
		m.restartTimer.Stop()
		m.restartTimer = nil
	}
	m.mu.Unlock()

	if client == nil {
		return
	}
	if err := client.Stop(); err != nil {
		logger.Warn("failed to stop recognizer", "error", err)
	}
}

// resume re-arms listening after the session finished speaking.
func (m *recognizerManager) resume() {
	m.mu.Lock()
	if m.client == nil || !m.active {
		m.mu.Unlock()
		return
	}
	m.suspended = false
	m.mu.Unlock()

	if err := m.listen(); err != nil {
		logger.Warn("failed to resume recognizer", "error", err)
	}
}

// stop is the terminal teardown. Unlike suspend it also marks the manager
// inactive so nothing can re-arm it afterwards.
func (m *recognizerManager) stop() {
	m.mu.Lock()
	client := m.client
	m.epoch++
	m.active = false
	m.suspended = false
	if m.restartTimer != nil {
		m.restartTimer.Stop()
		m.restartTimer = nil
	}
	m.mu.Unlock()

	if client == nil {
		return
	}
	if err := client.Stop(); err != nil {
		logger.Warn("failed to stop recognizer", "error", err)
	}
}

func (m *recognizerManager) sendAudio(frame []byte) {
	m.mu.Lock()
	client := m.client
	ok := m.active && !m.suspended
	m.mu.Unlock()

	if client == nil || !ok {
		return
	}
	if err := client.SendAudio(frame); err != nil {
		logger.Warn("failed to forward audio to recognizer", "error", err)
	}
}
