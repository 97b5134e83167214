package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dperrin/gather/internal/model"
)

// mockClient creates a Client with an outbox but no real connection.
func mockClient(hub *Hub) *Client {
	return &Client{
		hub:    hub,
		conn:   nil,
		outbox: make(chan []byte, outboxSize),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub)
	c2 := mockClient(hub)

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub)
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcast(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub)
	c2 := mockClient(hub)
	hub.Register(c1)
	hub.Register(c2)

	hub.Broadcast(Message{Type: model.TypeCreateEvent, UserID: 3, EventID: 42, Link: "/events/42"})

	// Check both clients received the message
	for _, c := range []*Client{c1, c2} {
		select {
		case data := <-c.outbox:
			var got Message
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Type != model.TypeCreateEvent {
				t.Errorf("type = %s", got.Type)
			}
			if got.EventID != 42 || got.UserID != 3 {
				t.Errorf("got %+v", got)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for message")
		}
	}

	hub.Unregister(c1)
	hub.Unregister(c2)
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic
	hub.Broadcast(Message{Type: model.TypeEditEvent, EventID: 1})
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub)
	hub.Register(c)

	// Fill the send buffer
	for i := 0; i < outboxSize; i++ {
		hub.Broadcast(Message{Type: model.TypeCreateEvent, EventID: int64(i)})
	}

	// This should drop the message, not panic or block
	hub.Broadcast(Message{Type: model.TypeCreateEvent, EventID: 999})

	// Drain to verify buffer was full
	count := 0
	for {
		select {
		case <-c.outbox:
			count++
		default:
			goto done
		}
	}
done:
	if count != outboxSize {
		t.Errorf("expected %d messages, got %d", outboxSize, count)
	}

	hub.Unregister(c)
}

func TestActivityRecordedSkipsHidden(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub)
	hub.Register(c)

	hub.ActivityRecorded(model.Activity{
		Component:       model.ComponentGroups,
		Type:            model.TypeCreateEvent,
		ItemID:          5,
		SecondaryItemID: 42,
		HideSitewide:    true,
	})
	select {
	case <-c.outbox:
		t.Fatal("hidden record was broadcast")
	default:
	}

	hub.ActivityRecorded(model.Activity{
		Component:       model.ComponentEvents,
		Type:            model.TypeCreateEvent,
		SecondaryItemID: 42,
		PrimaryLink:     "/events/42",
	})
	select {
	case data := <-c.outbox:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.EventID != 42 || got.Link != "/events/42" {
			t.Errorf("got %+v", got)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}

	hub.Unregister(c)
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	// Spawn goroutines that register, broadcast, and unregister concurrently
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub)
			hub.Register(c)
			hub.Broadcast(Message{Type: model.TypeCreateEvent})
			// Drain any messages
			for {
				select {
				case <-c.outbox:
				default:
					hub.Unregister(c)
					return
				}
			}
		}()
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}
