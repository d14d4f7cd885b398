// Package apperr classifies failures into the taxonomy the rest of the
// system reasons about: which ones are absorbed per-attempt, which ones
// bubble up as a 5xx, and which ones should abort the process at startup.
package apperr

import "errors"

// Kind is one of the failure classes from the error handling design.
type Kind int

const (
	// KindUpstreamTransient covers timeouts, 5xx and network errors talking
	// to a station, forecast model or push provider. Absorbed per request.
	KindUpstreamTransient Kind = iota
	// KindUpstreamPermanent covers 4xx responses that mean a push target
	// is gone for good (bad token, unregistered, 404/410).
	KindUpstreamPermanent
	// KindStorageTransient covers a hiccup talking to Postgres.
	KindStorageTransient
	// KindStorageFatal covers schema/migration failures; fail fast at boot.
	KindStorageFatal
	// KindInvalidInput covers bad calibration values, malformed
	// subscriptions, and other caller mistakes.
	KindInvalidInput
	// KindConfigMissing covers an optional subsystem whose config/credentials
	// are absent; the subsystem is disabled, nothing else is affected.
	KindConfigMissing
)

func (k Kind) String() string {
	switch k {
	case KindUpstreamTransient:
		return "upstream_transient"
	case KindUpstreamPermanent:
		return "upstream_permanent"
	case KindStorageTransient:
		return "storage_transient"
	case KindStorageFatal:
		return "storage_fatal"
	case KindInvalidInput:
		return "invalid_input"
	case KindConfigMissing:
		return "config_missing"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind and an operator-facing reason.
type Error struct {
	Kind   Kind
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Reason + ": " + e.Cause.Error()
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind.
func New(kind Kind, reason string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Cause: cause}
}

// Wrap classifies an existing error into kind, preserving it as the cause.
func Wrap(kind Kind, reason string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Reason: reason, Cause: err}
}

// KindOf extracts the Kind from err, defaulting to KindStorageTransient for
// unclassified errors (the conservative choice: surface as a 5xx rather
// than silently succeed).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorageTransient
}

// ErrNoData is the sentinel returned by read paths that found nothing —
// never fabricate a zero-value row in its place.
var ErrNoData = errors.New("no data")
