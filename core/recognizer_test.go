package dialogue

import (
	"context"
	"testing"
	"time"

	"github.com/speakpair/dialogue-core/core/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(recognizer *stubRecognizer, status *Status) (*recognizerManager, chan string) {
	utterances := make(chan string, 8)
	manager := newRecognizerManager(func() Status { return *status })
	manager.set(recognizer)
	manager.configure(audio.GetDefaultEncodingInfo(), "en-US", time.Millisecond, func(transcript string) {
		utterances <- transcript
	})
	return manager, utterances
}

func TestManagerRestartsAfterDebounce(t *testing.T) {
	recognizer := &stubRecognizer{}
	status := StatusListening
	manager, _ := newTestManager(recognizer, &status)
	defer manager.stop()

	manager.start(context.Background())
	require.Equal(t, 1, recognizer.listenCount())

	recognizer.end()

	waitFor(t, time.Second, func() bool { return recognizer.listenCount() == 2 }, "debounced restart")
}

func TestManagerCollapsesRapidEnds(t *testing.T) {
	recognizer := &stubRecognizer{}
	status := StatusListening
	manager, _ := newTestManager(recognizer, &status)
	manager.configure(audio.GetDefaultEncodingInfo(), "en-US", 50*time.Millisecond, nil)
	defer manager.stop()

	manager.start(context.Background())

	// Several end signals inside one debounce window must yield a single
	// restart.
	recognizer.end()
	recognizer.end()
	recognizer.end()

	waitFor(t, time.Second, func() bool { return recognizer.listenCount() == 2 }, "single debounced restart")
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 2, recognizer.listenCount())
}

func TestManagerSuspendDetachesEndHandler(t *testing.T) {
	recognizer := &stubRecognizer{}
	status := StatusListening
	manager, _ := newTestManager(recognizer, &status)
	defer manager.stop()

	manager.start(context.Background())
	manager.suspend()

	// The end signal raised by the suspend-triggered stop must not re-arm.
	recognizer.end()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, recognizer.listenCount())

	manager.resume()
	assert.Equal(t, 2, recognizer.listenCount())
}

func TestManagerStaleRestartDoesNotRearm(t *testing.T) {
	recognizer := &stubRecognizer{}
	status := StatusListening
	manager, _ := newTestManager(recognizer, &status)
	defer manager.stop()

	manager.start(context.Background())
	require.Equal(t, 1, recognizer.listenCount())

	// A restart scheduled before a suspend carries the old epoch; even if
	// its timer fires after resume, it must not arm a second stream.
	manager.suspend()
	manager.resume()
	require.Equal(t, 2, recognizer.listenCount())

	manager.restartIfCurrent(0)
	assert.Equal(t, 2, recognizer.listenCount())

	manager.restartIfCurrent(1)
	assert.Equal(t, 3, recognizer.listenCount())
}

func TestManagerDropsTranscriptsOutsideListening(t *testing.T) {
	recognizer := &stubRecognizer{}
	status := StatusListening
	manager, utterances := newTestManager(recognizer, &status)
	defer manager.stop()

	manager.start(context.Background())

	status = StatusSpeaking
	recognizer.emit("echo of my own voice")
	select {
	case transcript := <-utterances:
		t.Fatalf("transcript %q accepted while speaking", transcript)
	case <-time.After(20 * time.Millisecond):
	}

	status = StatusListening
	recognizer.emit("a real utterance")
	select {
	case transcript := <-utterances:
		assert.Equal(t, "a real utterance", transcript)
	case <-time.After(time.Second):
		t.Fatal("transcript dropped while listening")
	}
}

func TestManagerStopIsFinal(t *testing.T) {
	recognizer := &stubRecognizer{}
	status := StatusListening
	manager, utterances := newTestManager(recognizer, &status)

	manager.start(context.Background())
	manager.stop()

	recognizer.end()
	recognizer.emit("too late")
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 1, recognizer.listenCount())
	assert.Empty(t, utterances)

	manager.resume()
	assert.Equal(t, 1, recognizer.listenCount())
}

func TestManagerWithoutClientIsInert(t *testing.T) {
	manager := newRecognizerManager(func() Status { return StatusListening })

	manager.start(context.Background())
	manager.suspend()
	manager.resume()
	manager.sendAudio([]byte{0, 0})
	manager.stop()
}
