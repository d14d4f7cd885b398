package notify

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jorikfon/JollyKite-sub000/internal/apperr"
	"github.com/jorikfon/JollyKite-sub000/internal/filestore"
	"github.com/jorikfon/JollyKite-sub000/internal/geo"
	"github.com/jorikfon/JollyKite-sub000/internal/wind"
)

type fakeWebSender struct {
	sent    []filestore.PushSubscription
	failWith map[string]error
}

func (f *fakeWebSender) Send(ctx context.Context, sub filestore.PushSubscription, payload Payload) error {
	if err, ok := f.failWith[sub.Endpoint]; ok {
		return err
	}
	f.sent = append(f.sent, sub)
	return nil
}

type fakeMobileSender struct {
	sent []filestore.DeviceToken
}

func (f *fakeMobileSender) Send(ctx context.Context, tok filestore.DeviceToken, payload Payload) error {
	f.sent = append(f.sent, tok)
	return nil
}

func testEngine(t *testing.T, web WebPushSender, mobile MobilePushSender) (*Engine, *filestore.SubscriptionStore, *filestore.DeviceTokenStore) {
	t.Helper()
	dir := t.TempDir()
	subs, err := filestore.OpenSubscriptionStore(filepath.Join(dir, "subs.json"))
	require.NoError(t, err)
	tokens, err := filestore.OpenDeviceTokenStore(filepath.Join(dir, "tokens.json"))
	require.NoError(t, err)

	loc := &geo.Location{Name: "test", Timezone: "UTC"}
	require.NoError(t, loc.Resolve())

	return New(subs, tokens, web, mobile, loc, wind.DefaultStabilityConfig, zerolog.Nop()), subs, tokens
}

func TestEvaluate_DelegatesToStabilityPredicate(t *testing.T) {
	e, _, _ := testEngine(t, nil, nil)
	speeds := []float64{10, 10, 10, 10}
	directions := []float64{90, 91, 89, 90}
	gusts := []float64{12, 12, 12, 12}
	result := e.Evaluate(speeds, directions, gusts)
	assert.True(t, result.Holds)
}

func TestDispatch_SendsToEveryUnrateCappedRecipient(t *testing.T) {
	web := &fakeWebSender{failWith: map[string]error{}}
	mobile := &fakeMobileSender{}
	e, subs, tokens := testEngine(t, web, mobile)

	require.NoError(t, subs.Add(filestore.PushSubscription{Endpoint: "https://push.example/a"}))
	require.NoError(t, tokens.Add(filestore.DeviceToken{Token: "device-1"}))

	payload := Payload{Locales: map[string]LocaleStrings{"default": {Title: "t", Body: "b"}}}
	result := e.Dispatch(context.Background(), payload, time.Now())

	assert.Equal(t, 1, result.WebSent)
	assert.Equal(t, 1, result.MobileSent)
	assert.Len(t, web.sent, 1)
	assert.Len(t, mobile.sent, 1)
}

func TestDispatch_RateCapsRecipientForRestOfLocalDay(t *testing.T) {
	web := &fakeWebSender{failWith: map[string]error{}}
	e, subs, _ := testEngine(t, web, nil)
	require.NoError(t, subs.Add(filestore.PushSubscription{Endpoint: "https://push.example/a"}))

	payload := Payload{Locales: map[string]LocaleStrings{"default": {Title: "t", Body: "b"}}}
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)

	first := e.Dispatch(context.Background(), payload, now)
	assert.Equal(t, 1, first.WebSent)

	later := now.Add(2 * time.Hour)
	second := e.Dispatch(context.Background(), payload, later)
	assert.Equal(t, 0, second.WebSent)
	assert.Equal(t, 1, second.WebCapped)
}

func TestDispatch_NextDayClearsRateCap(t *testing.T) {
	web := &fakeWebSender{failWith: map[string]error{}}
	e, subs, _ := testEngine(t, web, nil)
	require.NoError(t, subs.Add(filestore.PushSubscription{Endpoint: "https://push.example/a"}))

	payload := Payload{Locales: map[string]LocaleStrings{"default": {Title: "t", Body: "b"}}}
	day1 := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)

	e.Dispatch(context.Background(), payload, day1)
	result := e.Dispatch(context.Background(), payload, day2)
	assert.Equal(t, 1, result.WebSent)
}

func TestDispatch_PermanentFailureRemovesSubscription(t *testing.T) {
	web := &fakeWebSender{failWith: map[string]error{
		"https://push.example/gone": apperr.New(apperr.KindUpstreamPermanent, "gone", nil),
	}}
	e, subs, _ := testEngine(t, web, nil)
	require.NoError(t, subs.Add(filestore.PushSubscription{Endpoint: "https://push.example/gone"}))

	payload := Payload{Locales: map[string]LocaleStrings{"default": {Title: "t", Body: "b"}}}
	result := e.Dispatch(context.Background(), payload, time.Now())

	assert.Equal(t, 1, result.WebRemoved)
	assert.Empty(t, subs.All())
}

func TestDispatch_TransientFailureDoesNotRemoveSubscription(t *testing.T) {
	web := &fakeWebSender{failWith: map[string]error{
		"https://push.example/flaky": apperr.New(apperr.KindUpstreamTransient, "timeout", nil),
	}}
	e, subs, _ := testEngine(t, web, nil)
	require.NoError(t, subs.Add(filestore.PushSubscription{Endpoint: "https://push.example/flaky"}))

	payload := Payload{Locales: map[string]LocaleStrings{"default": {Title: "t", Body: "b"}}}
	e.Dispatch(context.Background(), payload, time.Now())

	assert.Len(t, subs.All(), 1)
}

func TestPayload_LocalizedFallsBackToDefault(t *testing.T) {
	p := Payload{Locales: map[string]LocaleStrings{
		"default": {Title: "default title", Body: "default body"},
		"fr":      {Title: "titre", Body: "corps"},
	}}
	assert.Equal(t, "titre", p.Localized("fr").Title)
	assert.Equal(t, "default title", p.Localized("de").Title)
}
