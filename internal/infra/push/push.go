// Package push delivers push messages to registered endpoints.
//
// The webhook transport posts a JSON envelope either directly to the
// subscription endpoint or to a relay gateway that performs the Web Push
// encryption. A 404 or 410 answer means the endpoint is gone and maps to
// ErrSubscriptionGone so callers can prune it.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/unfloned/chronik/internal/domain"
)

// ErrSubscriptionGone reports an endpoint that no longer exists.
var ErrSubscriptionGone = errors.New("push subscription gone")

// Transport delivers one message to one subscription.
type Transport interface {
	Send(ctx context.Context, sub domain.PushSubscription, msg domain.PushMessage) error
}

// ─── Webhook ────────────────────────────────────────────────────────────────

// RequestSigner produces the timestamp and signature headers for a body.
type RequestSigner interface {
	Sign(body []byte) (timestamp, signature string)
}

// Header names for signed deliveries.
const (
	TimestampHeader = "X-Chronik-Timestamp"
	SignatureHeader = "X-Chronik-Signature"
)

// WebhookTransport posts messages over HTTP.
type WebhookTransport struct {
	gateway string
	client  *http.Client
	signer  RequestSigner
}

// NewWebhookTransport creates a webhook transport. An empty gateway posts
// straight to each subscription's endpoint.
func NewWebhookTransport(gateway string, timeout time.Duration) *WebhookTransport {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookTransport{
		gateway: gateway,
		client:  &http.Client{Timeout: timeout},
	}
}

// SetSigner signs every request body with s.
func (t *WebhookTransport) SetSigner(s RequestSigner) { t.signer = s }

// envelope is the JSON body sent per delivery.
type envelope struct {
	Endpoint string            `json:"endpoint"`
	P256dh   string            `json:"p256dh,omitempty"`
	Auth     string            `json:"auth,omitempty"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Tag      string            `json:"tag,omitempty"`
	Data     map[string]string `json:"data,omitempty"`
}

// Send posts msg for sub. Single attempt, no retries.
func (t *WebhookTransport) Send(ctx context.Context, sub domain.PushSubscription, msg domain.PushMessage) error {
	target := t.gateway
	if target == "" {
		target = sub.Endpoint
	}
	if target == "" {
		return fmt.Errorf("push: no endpoint for subscription %s", sub.ID)
	}

	body, err := json.Marshal(envelope{
		Endpoint: sub.Endpoint,
		P256dh:   sub.P256dh,
		Auth:     sub.Auth,
		Title:    msg.Title,
		Body:     msg.Body,
		Tag:      msg.Tag,
		Data:     msg.Data,
	})
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if msg.Tag != "" {
		req.Header.Set("Topic", msg.Tag)
	}
	if t.signer != nil {
		ts, sig := t.signer.Sign(body)
		req.Header.Set(TimestampHeader, ts)
		req.Header.Set(SignatureHeader, sig)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%w: status %d", ErrSubscriptionGone, resp.StatusCode)
	default:
		return fmt.Errorf("push endpoint returned status %d", resp.StatusCode)
	}
}

// ─── Recorder ───────────────────────────────────────────────────────────────

// Delivery is one message captured by a Recorder.
type Delivery struct {
	Subscription domain.PushSubscription
	Message      domain.PushMessage
}

// Recorder is an in-memory transport that keeps every delivery. Endpoints
// listed in Gone fail with ErrSubscriptionGone.
type Recorder struct {
	mu         sync.Mutex
	deliveries []Delivery
	Gone       map[string]bool
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{Gone: make(map[string]bool)}
}

// Send records the delivery.
func (r *Recorder) Send(_ context.Context, sub domain.PushSubscription, msg domain.PushMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Gone[sub.Endpoint] {
		return ErrSubscriptionGone
	}
	r.deliveries = append(r.deliveries, Delivery{Subscription: sub, Message: msg})
	return nil
}

// Deliveries returns a copy of the recorded deliveries.
func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Delivery, len(r.deliveries))
	copy(out, r.deliveries)
	return out
}
