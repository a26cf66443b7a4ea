package validation

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	classRegex = regexp.MustCompile(`^(\d{1,2})\s*([A-Za-zА-Яа-яЁё])$`)
	emailRegex = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
)

const minDeletionIDLength = 8

// ParseClass parses "7Б" / "10 a" into a number (1-11) and an upper-cased letter.
func ParseClass(input string) (number, letter string, err error) {
	m := classRegex.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return "", "", reject(ReasonClassFormat)
	}
	n, convErr := strconv.Atoi(m[1])
	if convErr != nil || n < 1 || n > 11 {
		return "", "", reject(ReasonClassFormat)
	}
	return strconv.Itoa(n), strings.ToUpper(m[2]), nil
}

// CheckEmail accepts conservative addresses only.
func CheckEmail(input string) (string, error) {
	email := strings.TrimSpace(input)
	if utf8.RuneCountInString(email) > 254 || !emailRegex.MatchString(email) {
		return "", reject(ReasonEmailFormat)
	}
	return strings.ToLower(email), nil
}

// CheckDeletionID validates the platform id a user types to request deletion:
// digits only, at least 8 of them.
func CheckDeletionID(input string) (string, error) {
	id := strings.TrimSpace(input)
	if id == "" {
		return "", reject(ReasonPlatformIDDigits)
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return "", reject(ReasonPlatformIDDigits)
		}
	}
	if len(id) < minDeletionIDLength {
		return "", reject(ReasonPlatformIDShort)
	}
	return id, nil
}
