package popup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/kazz187/keeperd/internal/eventbus"
	"github.com/kazz187/keeperd/internal/pushsubscription"
)

// VAPID holds the application server keys used to sign push messages.
type VAPID struct {
	PublicKey  string
	PrivateKey string
	Contact    string
}

func (v VAPID) configured() bool {
	return v.PublicKey != "" && v.PrivateKey != ""
}

type NotificationPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

const (
	notificationTag = "keeper-approval"
	notificationTTL = 300
)

// WebPush notifies every registered approval UI that a decision is pending.
// Close publishes popup.closed so that open UIs dismiss themselves.
type WebPush struct {
	vapid    VAPID
	uiURL    string
	repo     pushsubscription.Repository
	eventBus *eventbus.Bus
	client   webpush.HTTPClient
}

type WebPushOption func(*WebPush)

func WithHTTPClient(c webpush.HTTPClient) WebPushOption {
	return func(w *WebPush) { w.client = c }
}

func WithEventBus(bus *eventbus.Bus) WebPushOption {
	return func(w *WebPush) { w.eventBus = bus }
}

func NewWebPush(vapid VAPID, uiURL string, repo pushsubscription.Repository, opts ...WebPushOption) *WebPush {
	w := &WebPush{vapid: vapid, uiURL: uiURL, repo: repo}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *WebPush) Open(ctx context.Context) error {
	w.publish(eventbus.EventPopupOpened)
	return w.SendToAll(ctx, &NotificationPayload{
		Title: "Approval required",
		Body:  "A site is waiting for your decision.",
		URL:   w.uiURL,
		Tag:   notificationTag,
	})
}

func (w *WebPush) Close(context.Context) error {
	w.publish(eventbus.EventPopupClosed)
	return nil
}

func (w *WebPush) publish(t eventbus.EventType) {
	if w.eventBus != nil {
		w.eventBus.PublishNew(t, "", nil)
	}
}

// SendToAll pushes payload to every subscription. Subscriptions the push
// service reports as gone are deleted.
func (w *WebPush) SendToAll(ctx context.Context, payload *NotificationPayload) error {
	if !w.vapid.configured() {
		slog.DebugContext(ctx, "push notification: VAPID keys not configured, skipping")
		return nil
	}

	subs, err := w.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list push subscriptions: %w", err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	var errs []error
	for _, sub := range subs {
		errs = append(errs, w.sendToSubscription(ctx, sub, data))
	}
	return errors.Join(errs...)
}

func (w *WebPush) sendToSubscription(ctx context.Context, sub *pushsubscription.Subscription, data []byte) error {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, wpSub, &webpush.Options{
		HTTPClient:      w.client,
		VAPIDPublicKey:  w.vapid.PublicKey,
		VAPIDPrivateKey: w.vapid.PrivateKey,
		Subscriber:      w.vapid.Contact,
		TTL:             notificationTTL,
		Urgency:         webpush.UrgencyHigh,
	})
	if err != nil {
		return fmt.Errorf("push to %s: %w", sub.Endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		slog.InfoContext(ctx, "push notification: subscription expired, removing", "endpoint", sub.Endpoint)
		if err := w.repo.Delete(ctx, sub.ID); err != nil {
			return fmt.Errorf("delete expired subscription %s: %w", sub.ID, err)
		}
	case resp.StatusCode >= 400:
		return fmt.Errorf("push to %s: unexpected status %d", sub.Endpoint, resp.StatusCode)
	}
	return nil
}
