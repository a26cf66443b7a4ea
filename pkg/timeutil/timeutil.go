// Package timeutil formats timestamps for admin notifications in the
// community's timezone. The zone is configured once at startup.
package timeutil

import (
	"fmt"
	"sync"
	"time"
)

// DefaultZone is used until SetLocation is called (Moscow, UTC+3, no DST).
var DefaultZone = time.FixedZone("Europe/Moscow", 3*60*60)

const (
	// FormatDateTime is the layout used in admin notifications.
	FormatDateTime = "02.01.2006 15:04:05"
	// FormatRussianDate is DD.MM.YYYY.
	FormatRussianDate = "02.01.2006"
)

var (
	locMu sync.RWMutex
	loc   = DefaultZone
)

// SetLocation switches the zone used for formatting.
func SetLocation(l *time.Location) {
	if l == nil {
		return
	}
	locMu.Lock()
	loc = l
	locMu.Unlock()
}

// LoadLocation resolves an IANA name, falling back to DefaultZone.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return DefaultZone, nil
	}
	l, err := time.LoadLocation(name)
	if err != nil {
		return DefaultZone, fmt.Errorf("load location %q: %w", name, err)
	}
	return l, nil
}

// Location returns the configured zone.
func Location() *time.Location {
	locMu.RLock()
	defer locMu.RUnlock()
	return loc
}

// Now returns the current time in the configured zone.
func Now() time.Time {
	return time.Now().In(Location())
}

// FormatDateTimeStr formats t as "DD.MM.YYYY HH:MM:SS" in the configured zone.
func FormatDateTimeStr(t time.Time) string {
	return t.In(Location()).Format(FormatDateTime)
}

// FormatRussian formats t as DD.MM.YYYY in the configured zone.
func FormatRussian(t time.Time) string {
	return t.In(Location()).Format(FormatRussianDate)
}

// FromUnix converts a Telegram message date into time.Time.
func FromUnix(sec int64) time.Time {
	if sec <= 0 {
		return Now()
	}
	return time.Unix(sec, 0).In(Location())
}
