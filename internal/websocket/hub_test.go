package websocket_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"deskhealth/internal/logger"
	"deskhealth/internal/websocket"
)

func startServer(t *testing.T, hub *websocket.Hub) *httptest.Server {
	upgrader := gws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		websocket.NewClient(hub, conn).Serve()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *gws.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubBroadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := websocket.NewHub()
	go hub.Run(ctx)

	conn := dial(t, startServer(t, hub))

	// registration is asynchronous; keep broadcasting until a frame arrives
	deadline := time.Now().Add(2 * time.Second)
	conn.SetReadDeadline(deadline)

	got := make(chan websocket.Event, 1)
	go func() {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var ev websocket.Event
		if json.Unmarshal(data, &ev) == nil {
			got <- ev
		}
	}()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case ev := <-got:
			if ev.Type != websocket.EventAlert {
				t.Errorf("expected alert event, got %q", ev.Type)
			}
			return
		case <-ticker.C:
			if time.Now().After(deadline) {
				t.Fatal("no event received")
			}
			hub.Broadcast(websocket.EventAlert, map[string]string{"message": "You're too close to the screen!"})
		}
	}
}

func TestBroadcastAfterStopDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := websocket.NewHub()

	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Broadcast(websocket.EventReading, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked after hub stopped")
	}
}

func TestBroadcastLogsUnencodableEvent(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	logger.InitWithWriter("info", &buf)
	defer func() { logger.Logger = zerolog.Nop() }()

	hub := websocket.NewHub()
	hub.Broadcast(websocket.EventReading, make(chan int))

	out := buf.String()
	if !strings.Contains(out, `"component":"websocket_hub"`) || !strings.Contains(out, "failed to marshal event") {
		t.Errorf("expected marshal failure to be logged, got %q", out)
	}
}
