package filestore

import (
	"time"

	"github.com/google/uuid"
)

// WebPushKeys carries the VAPID subscription's p256dh/auth key pair.
type WebPushKeys struct {
	P256DH string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// PushSubscription is one browser's Web Push registration.
type PushSubscription struct {
	ID        string      `json:"id"`
	Endpoint  string      `json:"endpoint"`
	Keys      WebPushKeys `json:"keys"`
	Locale    string      `json:"locale,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// DeviceToken is one mobile device's registration with the push provider.
type DeviceToken struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	Locale    string    `json:"locale,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SubscriptionStore is the file-backed array of web push subscriptions,
// unique on Endpoint.
type SubscriptionStore struct {
	doc *Document[[]PushSubscription]
}

// OpenSubscriptionStore loads (or creates) the subscriptions file.
func OpenSubscriptionStore(path string) (*SubscriptionStore, error) {
	doc, err := Open[[]PushSubscription](path)
	if err != nil {
		return nil, err
	}
	return &SubscriptionStore{doc: doc}, nil
}

// All returns every registered subscription.
func (s *SubscriptionStore) All() []PushSubscription { return s.doc.Get() }

// Add registers a new subscription, replacing any existing one with the same
// endpoint (a client re-subscribing updates its keys rather than
// double-registering).
func (s *SubscriptionStore) Add(sub PushSubscription) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	return s.doc.Mutate(func(cur []PushSubscription) ([]PushSubscription, error) {
		out := make([]PushSubscription, 0, len(cur)+1)
		for _, existing := range cur {
			if existing.Endpoint != sub.Endpoint {
				out = append(out, existing)
			}
		}
		out = append(out, sub)
		return out, nil
	})
}

// RemoveByEndpoint removes a subscription by its endpoint URL. No error if
// it was already absent.
func (s *SubscriptionStore) RemoveByEndpoint(endpoint string) error {
	return s.doc.Mutate(func(cur []PushSubscription) ([]PushSubscription, error) {
		out := make([]PushSubscription, 0, len(cur))
		for _, existing := range cur {
			if existing.Endpoint != endpoint {
				out = append(out, existing)
			}
		}
		return out, nil
	})
}

// DeviceTokenStore is the file-backed array of mobile device tokens, unique
// on Token.
type DeviceTokenStore struct {
	doc *Document[[]DeviceToken]
}

// OpenDeviceTokenStore loads (or creates) the device tokens file.
func OpenDeviceTokenStore(path string) (*DeviceTokenStore, error) {
	doc, err := Open[[]DeviceToken](path)
	if err != nil {
		return nil, err
	}
	return &DeviceTokenStore{doc: doc}, nil
}

// All returns every registered device token.
func (s *DeviceTokenStore) All() []DeviceToken { return s.doc.Get() }

// Add registers a device token, replacing any existing entry for the same
// token value.
func (s *DeviceTokenStore) Add(tok DeviceToken) error {
	if tok.ID == "" {
		tok.ID = uuid.NewString()
	}
	if tok.CreatedAt.IsZero() {
		tok.CreatedAt = time.Now()
	}
	return s.doc.Mutate(func(cur []DeviceToken) ([]DeviceToken, error) {
		out := make([]DeviceToken, 0, len(cur)+1)
		for _, existing := range cur {
			if existing.Token != tok.Token {
				out = append(out, existing)
			}
		}
		out = append(out, tok)
		return out, nil
	})
}

// RemoveByToken removes a device token. No error if it was already absent.
func (s *DeviceTokenStore) RemoveByToken(token string) error {
	return s.doc.Mutate(func(cur []DeviceToken) ([]DeviceToken, error) {
		out := make([]DeviceToken, 0, len(cur))
		for _, existing := range cur {
			if existing.Token != token {
				out = append(out, existing)
			}
		}
		return out, nil
	})
}

// PushCredentials holds the secret material the Notification Engine's two
// channels need: the VAPID key pair for Web Push and the provider's signing
// key for mobile push.
type PushCredentials struct {
	VAPIDPublicKey  string `json:"vapid_public_key"`
	VAPIDPrivateKey string `json:"vapid_private_key,omitempty"`
	VAPIDSubject    string `json:"vapid_subject"`

	MobileEndpoint   string `json:"mobile_endpoint,omitempty"`
	MobileKeyID      string `json:"mobile_key_id,omitempty"`
	MobileTeamID     string `json:"mobile_team_id,omitempty"`
	MobileBundleID   string `json:"mobile_bundle_id,omitempty"`
	MobilePrivateKeyPEMHash string `json:"mobile_private_key_pem_hash,omitempty"`

	// MobilePrivateKeyPEM is never rewritten by Mutate — it is loaded once at
	// startup from an operator-managed file and only its hash is persisted
	// here for integrity checking at rest.
	MobilePrivateKeyPEM string `json:"-"`
}

// CredentialsStore is the file-backed push-credentials document.
type CredentialsStore struct {
	doc *Document[PushCredentials]
}

// OpenCredentialsStore loads (or creates, empty) the credentials file.
func OpenCredentialsStore(path string) (*CredentialsStore, error) {
	doc, err := Open[PushCredentials](path)
	if err != nil {
		return nil, err
	}
	return &CredentialsStore{doc: doc}, nil
}

// Get returns the current credentials.
func (s *CredentialsStore) Get() PushCredentials { return s.doc.Get() }

// Set overwrites the credentials document.
func (s *CredentialsStore) Set(c PushCredentials) error {
	return s.doc.Mutate(func(PushCredentials) (PushCredentials, error) { return c, nil })
}
