// Package geo anchors the system to the one deployment location: a fixed
// latitude/longitude, an offshore/onshore bearing window, and the daily
// activity window in that location's local zone.
package geo

import "time"

// Location describes the single coastal spot this deployment watches.
type Location struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	// Timezone is an IANA zone name, e.g. "Australia/Sydney".
	Timezone string `json:"timezone"`
	// ActivityStartHour/ActivityEndHour bound the daily window (local,
	// inclusive start, exclusive end) during which ingestion, streaming
	// and notifications are active. Defaults 6 and 19.
	ActivityStartHour int `json:"activity_start_hour"`
	ActivityEndHour   int `json:"activity_end_hour"`

	loc *time.Location
}

// DefaultActivityStartHour and DefaultActivityEndHour match spec.md's
// 06:00-19:00 default activity window.
const (
	DefaultActivityStartHour = 6
	DefaultActivityEndHour   = 19
)

// Resolve loads and caches the IANA timezone. Call once after loading config.
func (l *Location) Resolve() error {
	if l.ActivityStartHour == 0 && l.ActivityEndHour == 0 {
		l.ActivityStartHour = DefaultActivityStartHour
		l.ActivityEndHour = DefaultActivityEndHour
	}
	tz := l.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return err
	}
	l.loc = loc
	return nil
}

// Zone returns the resolved *time.Location, defaulting to UTC if Resolve
// was never called (keeps zero-value Location usable in tests).
func (l *Location) Zone() *time.Location {
	if l.loc == nil {
		return time.UTC
	}
	return l.loc
}

// Now returns the current instant expressed in the location's local zone.
func (l *Location) Now() time.Time {
	return time.Now().In(l.Zone())
}

// InActivityWindow reports whether t's local hour falls in
// [ActivityStartHour, ActivityEndHour).
func (l *Location) InActivityWindow(t time.Time) bool {
	local := t.In(l.Zone())
	h := local.Hour()
	return h >= l.ActivityStartHour && h < l.ActivityEndHour
}

// LocalDate returns the local calendar date string (YYYY-MM-DD) for t,
// used for calendar-day rate-limiting and archive bucketing.
func (l *Location) LocalDate(t time.Time) string {
	return t.In(l.Zone()).Format("2006-01-02")
}

// LocalHour returns the local-zone hour-of-day integer for t.
func (l *Location) LocalHour(t time.Time) int {
	return t.In(l.Zone()).Hour()
}

// FloorHour truncates t down to the start of its (UTC) hour, matching the
// HourlyAggregate.hour_ts definition: floor(ts, 1h).
func FloorHour(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), 0, 0, 0, time.UTC)
}

// SameLocalDate reports whether a and b fall on the same calendar date in
// the location's zone — used by the notification ledger instead of
// comparing formatted date strings (Design Notes §9).
func (l *Location) SameLocalDate(a, b time.Time) bool {
	ay, am, ad := a.In(l.Zone()).Date()
	by, bm, bd := b.In(l.Zone()).Date()
	return ay == by && am == bm && ad == bd
}
