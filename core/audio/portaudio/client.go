// Package portaudio provides an alternative capture and playback client
// backed by PortAudio, for hosts where miniaudio backends are unavailable.
package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/speakpair/dialogue-core/core/audio"
)

type Client struct {
	bufferSize    int
	stream        *portaudio.Stream
	leftoverAudio []byte
	audioMu       sync.Mutex

	capturing bool
	captureMu sync.Mutex

	in  []int16
	out []int16
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	in := make([]int16, bufferSize)
	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 1, audio.DefaultSampleRate, bufferSize, in, out)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio stream: %w", err)
	}

	return &Client{
		bufferSize: bufferSize,
		stream:     stream,
		in:         in,
		out:        out,
	}, nil
}

func (c *Client) StartCapture(ctx context.Context, onAudio func(audio []byte)) error {
	c.captureMu.Lock()
	if c.capturing {
		c.captureMu.Unlock()
		return nil
	}
	c.capturing = true
	c.captureMu.Unlock()

	if err := c.stream.Start(); err != nil {
		c.captureMu.Lock()
		c.capturing = false
		c.captureMu.Unlock()
		return fmt.Errorf("failed to start portaudio stream: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				c.captureMu.Lock()
				capturing := c.capturing
				c.captureMu.Unlock()
				if !capturing {
					return
				}

				if err := c.stream.Read(); err != nil {
					log.Printf("Failed to read from portaudio stream: %v", err)
					continue
				}

				audioBuffer := bytes.Buffer{}
				binary.Write(&audioBuffer, binary.LittleEndian, c.in)
				onAudio(audioBuffer.Bytes())
			}
		}
	}()

	return nil
}

func (c *Client) StopCapture() error {
	c.captureMu.Lock()
	defer c.captureMu.Unlock()
	c.capturing = false
	return nil
}

func (c *Client) Close() {
	_ = c.StopCapture()
	c.stream.Close()
	portaudio.Terminate()
}

// SendAudio only queues the clip; the blocking device writes happen in
// AwaitDrain, so a caller racing a teardown is never stuck inside a write.
func (c *Client) SendAudio(audio []byte) error {
	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	c.leftoverAudio = append(c.leftoverAudio, audio...)
	return nil
}

// AwaitDrain plays the queued audio one frame at a time, padding the final
// partial frame with silence. The buffer is re-read between frames, so
// ClearBuffer cuts playback short at the next frame boundary.
func (c *Client) AwaitDrain() error {
	frameBytes := c.bufferSize * 2

	for {
		frame, ok := c.takeFrame(frameBytes)
		if !ok {
			return nil
		}

		binary.Read(bytes.NewBuffer(frame), binary.LittleEndian, c.out)
		if err := c.stream.Write(); err != nil {
			return fmt.Errorf("failed to write to portaudio stream: %w", err)
		}
	}
}

// takeFrame pops one device frame off the buffer, zero-padded to a full
// frame when less than frameBytes remain.
func (c *Client) takeFrame(frameBytes int) ([]byte, bool) {
	c.audioMu.Lock()
	defer c.audioMu.Unlock()

	if len(c.leftoverAudio) == 0 {
		return nil, false
	}

	n := min(frameBytes, len(c.leftoverAudio))
	frame := make([]byte, frameBytes)
	copy(frame, c.leftoverAudio[:n])
	c.leftoverAudio = c.leftoverAudio[n:]
	return frame, true
}

func (c *Client) ClearBuffer() {
	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	c.leftoverAudio = nil
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}
