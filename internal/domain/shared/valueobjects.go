package shared

import (
	"regexp"
	"strconv"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// TelegramID represents a unique Telegram user identifier.
type TelegramID int64

// IsValid checks if the Telegram ID is valid (positive number).
func (t TelegramID) IsValid() bool {
	return t > 0
}

// Int64 returns the underlying int64 value.
func (t TelegramID) Int64() int64 {
	return int64(t)
}

// String returns the string representation.
func (t TelegramID) String() string {
	return strconv.FormatInt(int64(t), 10)
}

// NewTelegramID creates a new TelegramID with validation.
func NewTelegramID(id int64) (TelegramID, error) {
	if id <= 0 {
		return 0, NewDomainError("shared", "NewTelegramID", ErrInvalidFormat, "telegram id must be positive")
	}
	return TelegramID(id), nil
}

// PlatformID is the 8-9 digit identifier this bot assigns to a community member.
type PlatformID string

// Exactly 8 or 9 ASCII digits, nothing else.
var platformIDRegex = regexp.MustCompile(`^[0-9]{8,9}$`)

// IsValid reports whether the id matches the digit pattern.
func (p PlatformID) IsValid() bool {
	return platformIDRegex.MatchString(string(p))
}

// String returns the string representation.
func (p PlatformID) String() string {
	return string(p)
}

// NormalizePlatformID trims raw and returns it if valid, "" otherwise.
// Readers use it so an invalid id is never carried forward.
func NormalizePlatformID(raw string) PlatformID {
	id := PlatformID(strings.TrimSpace(raw))
	if !id.IsValid() {
		return ""
	}
	return id
}
