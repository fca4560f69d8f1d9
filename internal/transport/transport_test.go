// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tuner/internal/session"
	"tuner/pkg/utils"

	"github.com/gorilla/websocket"
)

func dialTestServer(t *testing.T, wst *WebSocketTransport) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(wst.Handler())
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for wst.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if wst.ClientCount() != 1 {
		t.Fatalf("ClientCount = %d, want 1", wst.ClientCount())
	}
	return conn
}

func TestWebSocketBroadcastsFrames(t *testing.T) {
	wst := NewWebSocketTransport("")
	defer wst.Close()
	conn := dialTestServer(t, wst)

	if err := wst.Send(session.Frame{Type: session.FrameType, Seq: 7, Voiced: true, Frequency: 440}); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got map[string]any
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON error: %v", err)
	}
	if got["type"] != "frame" || got["seq"] != float64(7) || got["frequency"] != float64(440) {
		t.Errorf("received %v", got)
	}
}

func TestWebSocketClientDisconnect(t *testing.T) {
	wst := NewWebSocketTransport("")
	defer wst.Close()
	conn := dialTestServer(t, wst)

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for wst.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if wst.ClientCount() != 0 {
		t.Errorf("ClientCount = %d after disconnect, want 0", wst.ClientCount())
	}
}

func TestWebSocketSendAfterClose(t *testing.T) {
	wst := NewWebSocketTransport("")
	if err := wst.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := wst.Close(); err != nil {
		t.Errorf("second Close error: %v", err)
	}
	if err := wst.Send("x"); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
}

func TestWebSocketSendNeverBlocks(t *testing.T) {
	wst := NewWebSocketTransport("")
	defer wst.Close()

	done := make(chan struct{})
	go func() {
		for i := range broadcastQueueSize * 4 {
			wst.Send(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Send blocked with no clients draining")
	}
}

func TestMulti(t *testing.T) {
	a, b := &utils.MockTransport{}, &utils.MockTransport{}
	m := Multi{a, b, NewLoggingTransport()}

	if err := m.Send("hello"); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if len(a.Sent()) != 1 || len(b.Sent()) != 1 {
		t.Errorf("fan-out counts = %d, %d", len(a.Sent()), len(b.Sent()))
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if !a.Closed() || !b.Closed() {
		t.Error("Multi.Close did not close every transport")
	}
}

func TestLoggingTransportFrames(t *testing.T) {
	lt := NewLoggingTransport()
	for _, data := range []any{session.Frame{Voiced: true}, session.Frame{}, "event"} {
		if err := lt.Send(data); err != nil {
			t.Errorf("Send(%T) error: %v", data, err)
		}
	}
}
