package notify

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jorikfon/JollyKite-sub000/internal/apperr"
	"github.com/jorikfon/JollyKite-sub000/internal/filestore"
)

// tokenReuseWindow matches spec.md §4.9's "reused ≤ 50 minutes" provider
// token lifetime; the engine refreshes a minute before that ceiling.
const tokenReuseWindow = 49 * time.Minute

// mobilePushMessage is the JSON payload sent to the vendor's push service.
type mobilePushMessage struct {
	Aps struct {
		Alert struct {
			Title string `json:"title"`
			Body  string `json:"body"`
		} `json:"alert"`
		Sound string `json:"sound,omitempty"`
	} `json:"aps"`
	SpeedKnots float64 `json:"speed_knots"`
	Avg20Knots float64 `json:"avg_20_knots"`
	ClickURL   string  `json:"click_url"`
	Timestamp  string  `json:"timestamp"`
}

// VendorMobilePushSender delivers notifications over the vendor's HTTP/2 +
// JWT protocol, ES256-signing a provider token it reuses across sends
// within tokenReuseWindow rather than minting one per request.
type VendorMobilePushSender struct {
	endpoint  string
	bundleID  string
	keyID     string
	teamID    string
	signKey   *ecdsa.PrivateKey
	client    *http.Client

	mu         sync.Mutex
	cachedTok  string
	cachedAt   time.Time
}

// NewVendorMobilePushSender builds a sender from the provider's PEM-encoded
// EC private key. endpoint is the vendor's push gateway base URL.
func NewVendorMobilePushSender(endpoint, bundleID, keyID, teamID, privateKeyPEM string) (*VendorMobilePushSender, error) {
	key, err := parseECPrivateKey(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing mobile push signing key: %w", err)
	}
	return &VendorMobilePushSender{
		endpoint: endpoint,
		bundleID: bundleID,
		keyID:    keyID,
		teamID:   teamID,
		signKey:  key,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: &http.Transport{ForceAttemptHTTP2: true},
		},
	}, nil
}

func parseECPrivateKey(pemData string) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	return key, nil
}

// providerToken returns a cached ES256 JWT, minting a fresh one once the
// cached token crosses tokenReuseWindow.
func (s *VendorMobilePushSender) providerToken() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cachedTok != "" && time.Since(s.cachedAt) < tokenReuseWindow {
		return s.cachedTok, nil
	}

	claims := jwt.MapClaims{
		"iss": s.teamID,
		"iat": time.Now().Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	tok.Header["kid"] = s.keyID

	signed, err := tok.SignedString(s.signKey)
	if err != nil {
		return "", fmt.Errorf("signing provider token: %w", err)
	}
	s.cachedTok = signed
	s.cachedAt = time.Now()
	return signed, nil
}

// Send pushes one payload to a mobile device token. A "bad device token" or
// "unregistered" vendor response is classified as
// apperr.KindUpstreamPermanent so the engine removes the token.
func (s *VendorMobilePushSender) Send(ctx context.Context, tok filestore.DeviceToken, payload Payload) error {
	providerTok, err := s.providerToken()
	if err != nil {
		return apperr.Wrap(apperr.KindUpstreamTransient, "minting provider token", err)
	}

	ls := payload.Localized(tok.Locale)
	var msg mobilePushMessage
	msg.Aps.Alert.Title = ls.Title
	msg.Aps.Alert.Body = ls.Body
	msg.Aps.Sound = "default"
	msg.SpeedKnots = payload.SpeedKnots
	msg.Avg20Knots = payload.Avg20Knots
	msg.ClickURL = payload.ClickURL
	msg.Timestamp = payload.TimestampISO8601

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding mobile push message: %w", err)
	}

	url := fmt.Sprintf("%s/3/device/%s", s.endpoint, tok.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building mobile push request: %w", err)
	}
	req.Header.Set("authorization", "bearer "+providerTok)
	req.Header.Set("apns-topic", s.bundleID)
	req.Header.Set("content-type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindUpstreamTransient, "sending mobile push", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	var vendorErr struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&vendorErr)

	switch vendorErr.Reason {
	case "BadDeviceToken", "Unregistered", "DeviceTokenNotForTopic":
		return apperr.New(apperr.KindUpstreamPermanent, "mobile device token "+vendorErr.Reason, nil)
	}
	return apperr.New(apperr.KindUpstreamTransient, fmt.Sprintf("mobile push http %d: %s", resp.StatusCode, vendorErr.Reason), nil)
}
