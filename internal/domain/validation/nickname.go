package validation

import (
	"strings"
	"unicode/utf8"
)

// confusables maps a lower-case letter to its look-alike in the other alphabet.
// The table is symmetric.
var confusables = func() map[rune]rune {
	pairs := [][2]rune{
		{'a', 'а'}, {'e', 'е'}, {'o', 'о'}, {'p', 'р'},
		{'c', 'с'}, {'y', 'у'}, {'x', 'х'}, {'k', 'к'},
		{'h', 'н'}, {'b', 'в'}, {'m', 'м'}, {'t', 'т'},
	}
	m := make(map[rune]rune, len(pairs)*2)
	for _, p := range pairs {
		m[p[0]] = p[1]
		m[p[1]] = p[0]
	}
	return m
}()

func isLatin(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isCyrillic(r rune) bool {
	return (r >= 'а' && r <= 'я') || (r >= 'А' && r <= 'Я') || r == 'ё' || r == 'Ё'
}

func isLetter(r rune) bool {
	return isLatin(r) || isCyrillic(r)
}

func isSeparator(r rune) bool {
	return r == ' ' || r == '-' || r == '_'
}

// Screen holds the banned-word prefixes used by the profanity check.
type Screen struct {
	prefixes []string
}

// NewScreen builds a screen from banned words of both language lists.
// Only the first three lower-cased letters of each word are kept.
func NewScreen(banned ...[]string) *Screen {
	s := &Screen{}
	seen := make(map[string]struct{})

	for _, list := range banned {
		for _, w := range list {
			p := prefix3(strings.ToLower(strings.TrimSpace(w)))
			if p == "" {
				continue
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			s.prefixes = append(s.prefixes, p)
		}
	}
	return s
}

func prefix3(w string) string {
	if utf8.RuneCountInString(w) <= 3 {
		return w
	}
	runes := []rune(w)
	return string(runes[:3])
}

// CheckNickname validates a nickname. Checks run in order: charset, trailing
// separator, letter count, profanity.
func (s *Screen) CheckNickname(nickname string) error {
	if nickname == "" {
		return reject(ReasonNicknameTooShort)
	}

	letters := 0
	var last rune
	for _, r := range nickname {
		switch {
		case isLetter(r):
			letters++
		case isSeparator(r):
		default:
			return reject(ReasonNicknameCharset)
		}
		last = r
	}

	if isSeparator(last) {
		return reject(ReasonNicknameTrailing)
	}
	if letters < 3 {
		return reject(ReasonNicknameTooShort)
	}
	if s.Matches(nickname) {
		return reject(ReasonNicknameProfanity)
	}
	return nil
}

// Matches reports whether any variant of the nickname's base form contains a
// banned prefix. The match is coarse on purpose and flags some legitimate words.
func (s *Screen) Matches(nickname string) bool {
	if s == nil || len(s.prefixes) == 0 {
		return false
	}
	for _, v := range variants(baseForm(nickname)) {
		for _, p := range s.prefixes {
			if strings.Contains(v, p) {
				return true
			}
		}
	}
	return false
}

// baseForm keeps letters only, lower-cased.
func baseForm(s string) string {
	var b strings.Builder
	for _, r := range s {
		if isLetter(r) {
			b.WriteString(strings.ToLower(string(r)))
		}
	}
	return b.String()
}

// variants returns base plus every single-position confusable substitution.
func variants(base string) []string {
	runes := []rune(base)
	out := []string{base}

	for i, r := range runes {
		sub, ok := confusables[r]
		if !ok {
			continue
		}
		v := make([]rune, len(runes))
		copy(v, runes)
		v[i] = sub
		out = append(out, string(v))
	}
	return out
}
