package deepgram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/speakpair/dialogue-core/core/recognition"
)

// newClosingSocketServer upgrades every request and immediately closes the
// socket, so a read loop attached to it terminates right away.
func newClosingSocketServer(t *testing.T) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
}

func dialTestSocket(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial test socket: %v", err)
	}
	return conn
}

func TestReadLoopTeardownKeepsNewerConnection(t *testing.T) {
	server := newClosingSocketServer(t)
	defer server.Close()

	oldConn := dialTestSocket(t, server)
	newConn := dialTestSocket(t, server)
	defer newConn.Close()

	client := NewClient()
	client.connMu.Lock()
	client.conn = newConn
	client.connMu.Unlock()

	ended := atomic.Bool{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		client.readAndProcessMessages(context.Background(), oldConn, recognition.ListenOptions{
			EndCallback: func() { ended.Store(true) },
		})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("read loop did not terminate on server close")
	}

	if !ended.Load() {
		t.Fatal("expected end callback on teardown")
	}

	client.connMu.Lock()
	current := client.conn
	client.connMu.Unlock()
	if current != newConn {
		t.Fatal("superseded read loop cleared the connection of a newer listen")
	}
}

func TestReadLoopTeardownReleasesOwnConnection(t *testing.T) {
	server := newClosingSocketServer(t)
	defer server.Close()

	conn := dialTestSocket(t, server)

	client := NewClient()
	client.connMu.Lock()
	client.conn = conn
	client.connMu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		client.readAndProcessMessages(context.Background(), conn, recognition.ListenOptions{})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("read loop did not terminate on server close")
	}

	client.connMu.Lock()
	current := client.conn
	client.connMu.Unlock()
	if current != nil {
		t.Fatal("read loop left its own closed connection registered")
	}
}
