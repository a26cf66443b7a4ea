package validation

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/profile"
)

const (
	minPasswordLength = 6
	birthYearFrom     = 1980
	birthYearTo       = 2024
)

// Digit runs a password may not contain any 3-window of.
var digitSequences = []string{"0123456789", "9876543210", "1234567890", "0987654321"}

// CheckPassword runs the strength checks in fixed order; the first failing
// check decides the reason. nickname may be profile.Unset.
func CheckPassword(password, nickname string) error {
	runes := []rune(password)

	if len(runes) < minPasswordLength {
		return reject(ReasonPasswordTooShort)
	}
	if allSame(runes) {
		return reject(ReasonPasswordRepetition)
	}
	if profile.IsSet(nickname) && sharesTriple(runes, []rune(strings.ToLower(nickname))) {
		return reject(ReasonPasswordIdentity)
	}
	if containsBirthYear(password) {
		return reject(ReasonPasswordBirthYear)
	}
	if isPeriodic(runes) {
		return reject(ReasonPasswordPeriodic)
	}
	if containsSequence(password) {
		return reject(ReasonPasswordSequential)
	}
	if !hasLetterAndDigit(runes) {
		return reject(ReasonPasswordCharClasses)
	}
	return nil
}

func allSame(runes []rune) bool {
	for _, r := range runes[1:] {
		if r != runes[0] {
			return false
		}
	}
	return true
}

func sharesTriple(password, nickname []rune) bool {
	if len(nickname) < 3 {
		return false
	}
	triples := make(map[string]struct{}, len(nickname)-2)
	for i := 0; i+3 <= len(nickname); i++ {
		triples[string(nickname[i:i+3])] = struct{}{}
	}
	for i := 0; i+3 <= len(password); i++ {
		if _, ok := triples[string(password[i:i+3])]; ok {
			return true
		}
	}
	return false
}

func containsBirthYear(password string) bool {
	for y := birthYearFrom; y <= birthYearTo; y++ {
		if strings.Contains(password, strconv.Itoa(y)) {
			return true
		}
	}
	return false
}

// isPeriodic reports whether the password is its first k runes repeated, k <= len/2.
func isPeriodic(runes []rune) bool {
	n := len(runes)
	for k := 1; k <= n/2; k++ {
		if n%k != 0 {
			continue
		}
		period := string(runes[:k])
		if strings.Repeat(period, n/k) == string(runes) {
			return true
		}
	}
	return false
}

func containsSequence(password string) bool {
	for _, seq := range digitSequences {
		for i := 0; i+3 <= len(seq); i++ {
			if strings.Contains(password, seq[i:i+3]) {
				return true
			}
		}
	}
	return false
}

func hasLetterAndDigit(runes []rune) bool {
	var letter, digit bool
	for _, r := range runes {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}
