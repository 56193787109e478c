package push

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/unfloned/chronik/internal/domain"
	"github.com/unfloned/chronik/internal/security"
)

func TestWebhook_PostsEnvelope(t *testing.T) {
	var got envelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	tr := NewWebhookTransport("", time.Second)
	sub := domain.PushSubscription{ID: "p1", Endpoint: srv.URL, Auth: "a"}
	msg := domain.PushMessage{Title: "Hi", Body: "there", Tag: "t1", Data: map[string]string{"url": "/x"}}
	if err := tr.Send(context.Background(), sub, msg); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if got.Title != "Hi" || got.Tag != "t1" || got.Data["url"] != "/x" || got.Endpoint != srv.URL {
		t.Errorf("unexpected envelope %+v", got)
	}
}

func TestWebhook_SignsBody(t *testing.T) {
	signer, err := security.NewSigner()
	if err != nil {
		t.Fatal(err)
	}
	verified := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		verified <- security.Verify(signer.PublicKey(), body,
			r.Header.Get(TimestampHeader), r.Header.Get(SignatureHeader), time.Minute, time.Now())
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := NewWebhookTransport(srv.URL, time.Second)
	tr.SetSigner(signer)
	if err := tr.Send(context.Background(), domain.PushSubscription{ID: "p1"}, domain.PushMessage{Title: "x"}); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if err := <-verified; err != nil {
		t.Errorf("signature did not verify: %v", err)
	}
}

func TestWebhook_GatewayOverridesEndpoint(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := NewWebhookTransport(srv.URL, time.Second)
	sub := domain.PushSubscription{ID: "p1", Endpoint: "https://unreachable.invalid/push"}
	if err := tr.Send(context.Background(), sub, domain.PushMessage{Title: "x"}); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if hits != 1 {
		t.Errorf("expected gateway hit, got %d", hits)
	}
}

func TestWebhook_GoneStatuses(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusGone} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		tr := NewWebhookTransport("", time.Second)
		err := tr.Send(context.Background(), domain.PushSubscription{Endpoint: srv.URL}, domain.PushMessage{})
		if !errors.Is(err, ErrSubscriptionGone) {
			t.Errorf("status %d: expected ErrSubscriptionGone, got %v", status, err)
		}
		srv.Close()
	}
}

func TestWebhook_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := NewWebhookTransport("", time.Second)
	err := tr.Send(context.Background(), domain.PushSubscription{Endpoint: srv.URL}, domain.PushMessage{})
	if err == nil || errors.Is(err, ErrSubscriptionGone) {
		t.Errorf("expected plain error, got %v", err)
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	r.Gone["dead"] = true
	ctx := context.Background()

	if err := r.Send(ctx, domain.PushSubscription{Endpoint: "live"}, domain.PushMessage{Title: "a"}); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if err := r.Send(ctx, domain.PushSubscription{Endpoint: "dead"}, domain.PushMessage{}); !errors.Is(err, ErrSubscriptionGone) {
		t.Errorf("expected ErrSubscriptionGone, got %v", err)
	}
	if n := len(r.Deliveries()); n != 1 {
		t.Errorf("expected 1 delivery, got %d", n)
	}
}
