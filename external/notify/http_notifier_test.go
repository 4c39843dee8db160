package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/foxseedlab/roomcall/internal/notify"
)

func TestNotify_EmptyWebhookURL(t *testing.T) {
	n := NewHTTPNotifier("")
	if err := n.Notify(context.Background(), notify.Event{Type: notify.EventRoomJoined}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestNotify_Success(t *testing.T) {
	var got notify.Event

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %s", ct)
		}
		if et := r.Header.Get("X-Roomcall-Event"); et != string(notify.EventUnicastStarted) {
			t.Errorf("unexpected event header: %s", et)
		}
		if sid := r.Header.Get("X-Roomcall-Session"); sid != "session-1" {
			t.Errorf("unexpected session header: %s", sid)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewHTTPNotifier(server.URL)
	err := n.Notify(context.Background(), notify.Event{
		Type:       notify.EventUnicastStarted,
		SessionID:  "session-1",
		Port:       40000,
		OccurredAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got.Type != notify.EventUnicastStarted || got.Port != 40000 || got.SessionID != "session-1" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if got.RoomID != nil {
		t.Fatalf("expected no room id, got %d", *got.RoomID)
	}
}

func TestNotify_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	n := NewHTTPNotifier(server.URL)
	if err := n.Notify(context.Background(), notify.Event{Type: notify.EventRoomLeft}); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestNotify_RejectionCarriesEventContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown room", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	n := NewHTTPNotifier(server.URL)
	err := n.Notify(context.Background(), notify.Event{Type: notify.EventRoomJoined, SessionID: "s-9"})
	if !errors.Is(err, ErrEventRejected) {
		t.Fatalf("expected ErrEventRejected, got %v", err)
	}
	for _, want := range []string{"room_joined", "s-9", "422", "unknown room"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %q", err, want)
		}
	}
}

func TestNotify_RequiresEventType(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	if err := NewHTTPNotifier(server.URL).Notify(context.Background(), notify.Event{}); err == nil {
		t.Fatal("expected error for an untyped event")
	}
	if called {
		t.Fatal("untyped event must not be posted")
	}
}

func TestNotify_FillsOccurredAt(t *testing.T) {
	var got notify.Event
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer server.Close()

	if err := NewHTTPNotifier(server.URL).Notify(context.Background(), notify.Event{Type: notify.EventRoomLeft}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.OccurredAt.IsZero() {
		t.Fatal("expected occurred_at to be set")
	}
}
