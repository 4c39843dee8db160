package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/foxseedlab/roomcall/internal/notify"
)

const (
	notifyTimeout = 5 * time.Second
	// maxErrorBody caps how much of a rejecting response is kept for the error.
	maxErrorBody = 512

	eventTypeHeader = "X-Roomcall-Event"
	sessionHeader   = "X-Roomcall-Session"
)

var ErrEventRejected = errors.New("notify: webhook rejected event")

// HTTPNotifier POSTs each pipeline event as JSON. The event type and
// session id are repeated in headers so receivers can route without
// decoding the body.
type HTTPNotifier struct {
	webhookURL string
	client     *http.Client
}

func NewHTTPNotifier(webhookURL string) notify.Notifier {
	return &HTTPNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: notifyTimeout},
	}
}

func (n *HTTPNotifier) Notify(ctx context.Context, event notify.Event) error {
	if n.webhookURL == "" {
		return nil
	}
	if event.Type == "" {
		return errors.New("notify: event has no type")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", event.Type, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(eventTypeHeader, string(event.Type))
	req.Header.Set(sessionHeader, event.SessionID)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver %s event for session %s: %w", event.Type, event.SessionID, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode/100 != 2 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %s for session %s: status %d: %s",
			ErrEventRejected, event.Type, event.SessionID, resp.StatusCode, bytes.TrimSpace(detail))
	}
	return nil
}
