package portaudio

import (
	"bytes"
	"testing"
)

func TestTakeFramePadsFinalPartialFrame(t *testing.T) {
	c := &Client{bufferSize: 4}
	if err := c.SendAudio([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}); err != nil {
		t.Fatalf("failed to queue audio: %v", err)
	}

	frame, ok := c.takeFrame(8)
	if !ok {
		t.Fatal("expected a full frame")
	}
	if !bytes.Equal(frame, []byte{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Fatalf("unexpected first frame %v", frame)
	}

	frame, ok = c.takeFrame(8)
	if !ok {
		t.Fatal("expected a padded final frame")
	}
	if !bytes.Equal(frame, []byte{9, 10, 0, 0, 0, 0, 0, 0}) {
		t.Fatalf("expected silence padding, got %v", frame)
	}

	if _, ok := c.takeFrame(8); ok {
		t.Fatal("expected the buffer to be empty")
	}
}

func TestClearBufferCutsDrainShort(t *testing.T) {
	c := &Client{bufferSize: 4}
	if err := c.SendAudio(make([]byte, 64)); err != nil {
		t.Fatalf("failed to queue audio: %v", err)
	}

	c.ClearBuffer()

	// With the buffer cleared the drain must finish without ever touching
	// the device stream.
	if err := c.AwaitDrain(); err != nil {
		t.Fatalf("drain after clear failed: %v", err)
	}
}
