// Package notify is the Notification Engine (spec.md §4.9): it evaluates
// the stability predicate over the primary station's recent measurements,
// and on a hold delivers a web push and/or mobile push to every registered
// recipient that isn't already rate-capped for today, removing any
// recipient whose upstream reports it gone for good. The channel interfaces
// WebPushSender and MobilePushSender, with one implementation each, are
// adapted from the teacher's notifiers.go Notifier interface; the
// per-recipient rate-cap ledger follows alert_engine.go's cooldowns map.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jorikfon/JollyKite-sub000/internal/apperr"
	"github.com/jorikfon/JollyKite-sub000/internal/filestore"
	"github.com/jorikfon/JollyKite-sub000/internal/geo"
	"github.com/jorikfon/JollyKite-sub000/internal/wind"
)

// LocaleStrings is one localised title/body pair.
type LocaleStrings struct {
	Title string
	Body  string
}

// Payload is the fully-formed notification content, locale-agnostic until
// Localized picks the recipient's string.
type Payload struct {
	Locales          map[string]LocaleStrings // keyed by BCP-47 locale; "default" is the fallback
	SpeedKnots       float64
	Avg20Knots       float64
	ClickURL         string
	Icon             string
	Badge            string
	TimestampISO8601 string
}

// Localized returns the recipient-locale strings, falling back to "default".
func (p Payload) Localized(locale string) LocaleStrings {
	if ls, ok := p.Locales[locale]; ok {
		return ls
	}
	return p.Locales["default"]
}

// WebPushSender delivers one payload to a browser subscription.
type WebPushSender interface {
	Send(ctx context.Context, sub filestore.PushSubscription, payload Payload) error
}

// MobilePushSender delivers one payload to a mobile device token.
type MobilePushSender interface {
	Send(ctx context.Context, tok filestore.DeviceToken, payload Payload) error
}

// Engine owns the rate-cap ledger and drives both delivery channels.
type Engine struct {
	subs    *filestore.SubscriptionStore
	tokens  *filestore.DeviceTokenStore
	web     WebPushSender
	mobile  MobilePushSender
	loc     *geo.Location
	cfg     wind.StabilityConfig
	log     zerolog.Logger

	mu           sync.Mutex
	lastNotified map[string]time.Time // recipient key -> last delivery instant
}

// New builds an Engine. web or mobile may be nil to disable that channel
// (e.g. credentials not configured yet).
func New(subs *filestore.SubscriptionStore, tokens *filestore.DeviceTokenStore, web WebPushSender, mobile MobilePushSender, loc *geo.Location, cfg wind.StabilityConfig, log zerolog.Logger) *Engine {
	return &Engine{
		subs:         subs,
		tokens:       tokens,
		web:          web,
		mobile:       mobile,
		loc:          loc,
		cfg:          cfg,
		log:          log,
		lastNotified: make(map[string]time.Time),
	}
}

// Evaluate applies the stability predicate to the primary station's most
// recent samples (newest-first). It never mutates rate-cap state — that
// only happens on an actual delivery attempt in Dispatch.
func (e *Engine) Evaluate(speedsKnots, directionsDeg, gustsKnots []float64) wind.StabilityResult {
	return wind.EvaluateStability(speedsKnots, directionsDeg, gustsKnots, e.cfg)
}

// rateCapped reports whether recipientKey already received a notification
// today in the configured location's local zone.
func (e *Engine) rateCapped(recipientKey string, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	last, ok := e.lastNotified[recipientKey]
	if !ok {
		return false
	}
	return e.loc.SameLocalDate(last, now)
}

func (e *Engine) markNotified(recipientKey string, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastNotified[recipientKey] = now
}

// DispatchResult summarises one Dispatch pass for observability/tests.
type DispatchResult struct {
	WebSent       int
	WebCapped     int
	WebRemoved    int
	MobileSent    int
	MobileCapped  int
	MobileRemoved int
}

// Dispatch sends payload to every registered recipient not already
// rate-capped today, removing any recipient the upstream reports gone.
// Called only when Evaluate reports the stability predicate holds.
func (e *Engine) Dispatch(ctx context.Context, payload Payload, now time.Time) DispatchResult {
	var result DispatchResult

	if e.web != nil {
		for _, sub := range e.subs.All() {
			if e.rateCapped(sub.Endpoint, now) {
				result.WebCapped++
				continue
			}
			err := e.web.Send(ctx, sub, payload)
			if err == nil {
				e.markNotified(sub.Endpoint, now)
				result.WebSent++
				continue
			}
			if apperr.KindOf(err) == apperr.KindUpstreamPermanent {
				if rmErr := e.subs.RemoveByEndpoint(sub.Endpoint); rmErr == nil {
					result.WebRemoved++
				}
				e.log.Info().Str("endpoint", sub.Endpoint).Msg("removed gone web push subscription")
				continue
			}
			e.log.Warn().Err(err).Str("endpoint", sub.Endpoint).Msg("web push delivery failed")
		}
	}

	if e.mobile != nil {
		for _, tok := range e.tokens.All() {
			if e.rateCapped(tok.Token, now) {
				result.MobileCapped++
				continue
			}
			err := e.mobile.Send(ctx, tok, payload)
			if err == nil {
				e.markNotified(tok.Token, now)
				result.MobileSent++
				continue
			}
			if apperr.KindOf(err) == apperr.KindUpstreamPermanent {
				if rmErr := e.tokens.RemoveByToken(tok.Token); rmErr == nil {
					result.MobileRemoved++
				}
				e.log.Info().Str("token_id", tok.ID).Msg("removed unregistered mobile device token")
				continue
			}
			e.log.Warn().Err(err).Str("token_id", tok.ID).Msg("mobile push delivery failed")
		}
	}

	return result
}
