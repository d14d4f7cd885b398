package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/jorikfon/JollyKite-sub000/internal/apperr"
	"github.com/jorikfon/JollyKite-sub000/internal/filestore"
)

// webPushMessage is the JSON body delivered to the browser's service worker.
type webPushMessage struct {
	Title     string  `json:"title"`
	Body      string  `json:"body"`
	SpeedKnots float64 `json:"speed_knots"`
	Avg20Knots float64 `json:"avg_20_knots"`
	ClickURL  string  `json:"click_url"`
	Icon      string  `json:"icon,omitempty"`
	Badge     string  `json:"badge,omitempty"`
	Timestamp string  `json:"timestamp"`
}

// VAPIDWebPushSender delivers notifications over the standard
// VAPID-authenticated Web Push protocol.
type VAPIDWebPushSender struct {
	publicKey  string
	privateKey string
	subject    string
	ttlSeconds int
}

// NewVAPIDWebPushSender builds a sender from the operator-managed VAPID
// key pair. subject is the mailto:/https: contact URI the protocol requires.
func NewVAPIDWebPushSender(publicKey, privateKey, subject string) *VAPIDWebPushSender {
	return &VAPIDWebPushSender{publicKey: publicKey, privateKey: privateKey, subject: subject, ttlSeconds: 3600}
}

// Send pushes one payload to a browser subscription. A 404/410 response
// means the subscription is gone for good and is classified as
// apperr.KindUpstreamPermanent so the engine removes it from persistence.
func (s *VAPIDWebPushSender) Send(ctx context.Context, sub filestore.PushSubscription, payload Payload) error {
	ls := payload.Localized(sub.Locale)
	body, err := json.Marshal(webPushMessage{
		Title:      ls.Title,
		Body:       ls.Body,
		SpeedKnots: payload.SpeedKnots,
		Avg20Knots: payload.Avg20Knots,
		ClickURL:   payload.ClickURL,
		Icon:       payload.Icon,
		Badge:      payload.Badge,
		Timestamp:  payload.TimestampISO8601,
	})
	if err != nil {
		return fmt.Errorf("encoding web push message: %w", err)
	}

	resp, err := webpush.SendNotification(body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256DH,
			Auth:   sub.Keys.Auth,
		},
	}, &webpush.Options{
		Subscriber:      s.subject,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             s.ttlSeconds,
	})
	if err != nil {
		return apperr.Wrap(apperr.KindUpstreamTransient, "sending web push", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return apperr.New(apperr.KindUpstreamPermanent, fmt.Sprintf("web push subscription gone (http %d)", resp.StatusCode), nil)
	case resp.StatusCode >= 300:
		return apperr.New(apperr.KindUpstreamTransient, fmt.Sprintf("web push http %d", resp.StatusCode), nil)
	}
	return nil
}
