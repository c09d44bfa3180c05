package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/speakpair/dialogue-core/core/audio"
	"github.com/speakpair/dialogue-core/core/recognition"
)

const defaultLanguage = "en-US"

// Client is a single-utterance transcriber backed by Deepgram's live
// websocket API. Each Listen call opens a fresh connection that is closed
// once the utterance ends, so at most one stream is live at a time.
type Client struct {
	conn   *websocket.Conn
	connMu sync.Mutex

	lastMsgTs time.Time

	accumulatedTranscript string
	delivered             bool
}

func NewClient() *Client {
	return &Client{}
}

func (s *Client) Listen(ctx context.Context, opts ...recognition.ListenOption) error {
	options := &recognition.ListenOptions{EncodingInfo: audio.GetDefaultEncodingInfo()}
	for _, opt := range opts {
		opt(options)
	}

	encoding, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		return fmt.Errorf("invalid encoding: %w", err)
	}

	language := options.Language
	if language == "" {
		language = defaultLanguage
	}

	conn, err := connectWebsocket(connectionOptions{
		sampleRate: encoding.SampleRate,
		encoding:   encoding.Format.Name(),
		language:   language,
	})
	if err != nil {
		return fmt.Errorf("failed to open websocket: %w", err)
	}

	s.connMu.Lock()
	if s.conn != nil {
		// A superseded stream that has not finished tearing down yet.
		// Close it so at most one stream is live; its read loop cleans
		// up after itself without touching the new connection.
		s.conn.Close()
	}
	s.conn = conn
	s.accumulatedTranscript = ""
	s.delivered = false
	s.lastMsgTs = time.Now()
	s.connMu.Unlock()

	go s.readAndProcessMessages(ctx, conn, *options)

	return nil
}

type connectionOptions struct {
	sampleRate int
	encoding   string
	language   string
}

func connectWebsocket(options connectionOptions) (*websocket.Conn, error) {
	apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
	if !ok {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	listenUrl, _ := url.Parse("wss://api.deepgram.com/v1/listen")
	queryParams := listenUrl.Query()
	queryParams.Set("encoding", options.encoding)
	queryParams.Set("sample_rate", strconv.Itoa(options.sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", "nova-3")
	queryParams.Set("language", options.language)
	queryParams.Set("smart_format", "true")
	queryParams.Set("interim_results", "true")
	queryParams.Set("utterance_end_ms", "1000")
	queryParams.Set("endpointing", "300")
	queryParams.Set("vad_events", "true")

	listenUrl.RawQuery = queryParams.Encode()
	conn, _, err := websocket.DefaultDialer.Dial(listenUrl.String(),
		http.Header{"Authorization": {"Token " + apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, err
}

func (s *Client) SendAudio(audio []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return nil
	}

	s.lastMsgTs = time.Now()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

// Stop tears down the live stream without waiting for an utterance. The read
// loop observes the closed connection and fires the end callback.
func (s *Client) Stop() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return nil
	}

	if err := closeStream(s.conn); err != nil {
		return fmt.Errorf("failed to close deepgram stream through websocket: %w", err)
	}
	return nil
}

func closeStream(conn *websocket.Conn) error {
	return conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)})
}

func (s *Client) sendKeepAlive() {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return
	}

	if err := s.conn.WriteJSON(
		struct {
			Type string `json:"type"`
		}{
			Type: "KeepAlive",
		}); err != nil {
		log.Println("Failed to write to deepgram client", "error", err)
	}
}

func (s *Client) readAndProcessMessages(ctx context.Context, conn *websocket.Conn, options recognition.ListenOptions) {
	keepAliveCtx, keepAliveCancel := context.WithCancel(ctx)
	defer keepAliveCancel()

	go s.keepAliveLoop(keepAliveCtx)

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if err.Error() != "websocket: close 1000 (normal)" {
				log.Println("Failed to read deepgram websocket message", "error", err)
				if options.ErrorCallback != nil {
					options.ErrorCallback(err)
				}
			}

			// Only release the connection this loop owns; a newer
			// Listen call may have replaced it already.
			s.connMu.Lock()
			if s.conn == conn {
				s.conn = nil
			}
			s.connMu.Unlock()
			conn.Close()

			if options.EndCallback != nil {
				options.EndCallback()
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			s.processMessage(conn, msg, options)
		}
	}
}

func (s *Client) processMessage(conn *websocket.Conn, msg []byte, options recognition.ListenOptions) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	err := json.Unmarshal(msg, &parsedMsg)
	if err != nil {
		log.Println("Failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			log.Println("Failed to unmarshal deepgram message", err)
			return
		}
		if !msgResp.IsFinal {
			return
		}
		if len(msgResp.Channel.Alternatives) > 0 {
			transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
			if len(transcript) > 0 {
				s.accumulatedTranscript += " " + transcript
			}
		}
		if msgResp.SpeechFinal {
			s.deliverUtterance(conn, options)
		}

	case api.TypeUtteranceEndResponse:
		var msgResp api.UtteranceEndResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			log.Println("Failed to unmarshal deepgram message", err)
			return
		}

		s.deliverUtterance(conn, options)
	}
}

// deliverUtterance emits the collected transcript once and closes the
// stream that produced it; the read loop then fires the end callback.
func (s *Client) deliverUtterance(conn *websocket.Conn, options recognition.ListenOptions) {
	s.connMu.Lock()
	if s.delivered {
		s.connMu.Unlock()
		return
	}
	fullTranscript := strings.TrimSpace(s.accumulatedTranscript)
	s.accumulatedTranscript = ""
	if len(fullTranscript) == 0 {
		s.connMu.Unlock()
		return
	}
	s.delivered = true
	s.connMu.Unlock()

	if options.UtteranceCallback != nil {
		options.UtteranceCallback(fullTranscript)
	}

	s.connMu.Lock()
	err := closeStream(conn)
	s.connMu.Unlock()
	if err != nil {
		log.Println("Failed to close deepgram stream after utterance", err)
	}
}

func (s *Client) keepAliveLoop(ctx context.Context) {
	const keepAliveInterval = 5 * time.Second

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.connMu.Lock()
			idle := time.Since(s.lastMsgTs) >= keepAliveInterval
			s.connMu.Unlock()

			if idle {
				s.sendKeepAlive()
			}
		}
	}
}
