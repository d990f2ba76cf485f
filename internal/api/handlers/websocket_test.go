package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/onnwee/nstore/internal/store"
)

func srvHandler(hub *Hub) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/v1/events", hub.HandleEvents).Methods("GET")
	return r
}

func TestHub_DeliversEvents(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(srvHandler(hub))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	ev := store.Event{Namespace: "settings", Type: store.EventFlush, Time: time.Now().UTC()}

	// Registration runs through the hub loop; keep broadcasting until
	// the subscriber sees the event.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			hub.Broadcast(ev)
			time.Sleep(20 * time.Millisecond)
		}
	}()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	cancel()
	<-done
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}

	var got store.Event
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("Failed to decode event %q: %v", msg, err)
	}
	if got.Namespace != "settings" || got.Type != store.EventFlush {
		t.Errorf("Unexpected event %+v", got)
	}
}

func TestHub_StopIsIdempotent(t *testing.T) {
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		hub.Run(context.Background())
		close(done)
	}()

	hub.Stop()
	hub.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	hub := NewHub() // not running; the queue fills up

	for i := 0; i < 1000; i++ {
		hub.Broadcast(store.Event{Namespace: "settings", Type: store.EventPrune})
	}
}
