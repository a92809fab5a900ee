package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/use-agent/scrapedesk/models"
)

// Event types, one per terminal operation status.
const (
	EventSucceeded = "operation.succeeded"
	EventFailed    = "operation.failed"
	EventCancelled = "operation.cancelled"
)

// SignatureHeader carries "sha256=<hex>" of the body when a secret is set.
const SignatureHeader = "X-Scrapedesk-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type         string           `json:"type"`
	OperationKey string           `json:"operation_key"`
	Timestamp    int64            `json:"timestamp"`
	Data         models.Operation `json:"data"`
}

// EventType maps a terminal status to its event type. It returns "" for
// idle and running.
func EventType(s models.Status) string {
	switch s {
	case models.StatusSucceeded:
		return EventSucceeded
	case models.StatusFailed:
		return EventFailed
	case models.StatusCancelled:
		return EventCancelled
	}
	return ""
}

// Notifier posts operation events to one endpoint. A Notifier with an
// empty URL is disabled.
type Notifier struct {
	url    string
	secret string
	rc     *resty.Client
	delays []time.Duration
}

// New creates a Notifier for url. Failed deliveries are retried after
// 1s, 5s and 30s.
func New(url, secret string) *Notifier {
	return &Notifier{
		url:    url,
		secret: secret,
		rc: resty.New().
			SetTimeout(10*time.Second).
			SetHeader("User-Agent", "Scrapedesk-Webhook/1.0"),
		delays: []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second},
	}
}

// Enabled reports whether events are delivered.
func (n *Notifier) Enabled() bool { return n != nil && n.url != "" }

// Deliver sends an event synchronously, signed with HMAC-SHA256 when a
// secret is configured.
func (n *Notifier) Deliver(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req := n.rc.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	if n.secret != "" {
		req.SetHeader(SignatureHeader, "sha256="+Sign(n.secret, body))
	}

	resp, err := req.Post(n.url)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	if resp.StatusCode() >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode())
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Notify delivers the event for a terminal operation in the background.
// Non-terminal snapshots and disabled notifiers are ignored.
func (n *Notifier) Notify(op models.Operation) {
	if !n.Enabled() {
		return
	}
	typ := EventType(op.Status)
	if typ == "" {
		return
	}
	n.DeliverAsync(&Event{
		Type:         typ,
		OperationKey: op.Key,
		Timestamp:    time.Now().Unix(),
		Data:         op,
	})
}

// DeliverAsync sends an event on a goroutine, retrying on failure.
func (n *Notifier) DeliverAsync(event *Event) {
	go func() {
		for attempt, delay := range n.delays {
			if delay > 0 {
				time.Sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := n.Deliver(ctx, event)
			cancel()
			if err == nil {
				slog.Info("webhook delivered",
					"url", n.url,
					"event", event.Type,
					"operation_key", event.OperationKey,
					"attempt", attempt+1,
				)
				return
			}
			slog.Warn("webhook delivery failed",
				"url", n.url,
				"event", event.Type,
				"operation_key", event.OperationKey,
				"attempt", attempt+1,
				"error", err,
			)
		}
		slog.Error("webhook delivery exhausted all retries",
			"url", n.url,
			"event", event.Type,
			"operation_key", event.OperationKey,
		)
	}()
}
