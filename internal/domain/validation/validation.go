// Package validation is the Validation Engine: pure checks for nicknames,
// passwords, free-form inputs and profile completeness. No state, no I/O.
package validation

import (
	"github.com/thevuntgram/vuntgram-bot/internal/domain/shared"
)

// Reason identifies why an input was rejected.
type Reason string

// Nickname reasons.
const (
	ReasonNicknameCharset   Reason = "nickname_charset"
	ReasonNicknameTrailing  Reason = "nickname_trailing"
	ReasonNicknameTooShort  Reason = "nickname_too_short"
	ReasonNicknameProfanity Reason = "nickname_profanity"
)

// Password reasons, in evaluation order.
const (
	ReasonPasswordTooShort    Reason = "password_too_short"
	ReasonPasswordRepetition  Reason = "password_repetition"
	ReasonPasswordIdentity    Reason = "password_identity"
	ReasonPasswordBirthYear   Reason = "password_birth_year"
	ReasonPasswordPeriodic    Reason = "password_periodic"
	ReasonPasswordSequential  Reason = "password_sequential"
	ReasonPasswordCharClasses Reason = "password_char_classes"
)

// Free-form input reasons.
const (
	ReasonClassFormat      Reason = "class_format"
	ReasonEmailFormat      Reason = "email_format"
	ReasonPlatformIDDigits Reason = "platform_id_digits"
	ReasonPlatformIDShort  Reason = "platform_id_short"
)

var messages = map[Reason]string{
	ReasonNicknameCharset:   "Никнейм может содержать только буквы (латиница или кириллица), пробел, дефис и подчёркивание.",
	ReasonNicknameTrailing:  "Никнейм не может заканчиваться пробелом, дефисом или подчёркиванием.",
	ReasonNicknameTooShort:  "В никнейме должно быть не меньше 3 букв.",
	ReasonNicknameProfanity: "Этот никнейм недопустим. Попробуйте другой.",

	ReasonPasswordTooShort:    "Пароль должен быть не короче 6 символов.",
	ReasonPasswordRepetition:  "Пароль не может состоять из одного повторяющегося символа.",
	ReasonPasswordIdentity:    "Пароль не должен содержать части вашего никнейма.",
	ReasonPasswordBirthYear:   "Пароль не должен содержать год рождения.",
	ReasonPasswordPeriodic:    "Пароль слишком простой: он состоит из повторяющегося фрагмента.",
	ReasonPasswordSequential:  "Пароль не должен содержать последовательности цифр вроде 123 или 987.",
	ReasonPasswordCharClasses: "Пароль должен содержать хотя бы одну букву и одну цифру.",

	ReasonClassFormat:      "Укажите класс цифрой от 1 до 11 и буквой, например 7Б.",
	ReasonEmailFormat:      "Похоже, это не адрес почты. Проверьте и отправьте ещё раз.",
	ReasonPlatformIDDigits: "❌ Неверный ввод ID. ID должен содержать только цифры.",
	ReasonPlatformIDShort:  "❌ ID не может быть меньше 8 цифр.",
}

// Message returns the user-facing explanation of r.
func (r Reason) Message() string {
	if m, ok := messages[r]; ok {
		return m
	}
	return string(r)
}

// Rejection is returned by every failing check. It unwraps to shared.ErrInputRejected.
type Rejection struct {
	Reason Reason
}

// Error implements error.
func (r *Rejection) Error() string {
	return "input rejected: " + string(r.Reason)
}

// Unwrap lets errors.Is match shared.ErrInputRejected.
func (r *Rejection) Unwrap() error {
	return shared.ErrInputRejected
}

func reject(r Reason) error {
	return &Rejection{Reason: r}
}
