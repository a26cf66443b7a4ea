package profilestore

import (
	"strings"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/profile"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAPPER - profile <-> wire DTO
// ══════════════════════════════════════════════════════════════════════════════

// ToDTO converts a profile into the store's field set.
func ToDTO(p profile.Profile) UserDTO {
	return UserDTO{
		PlatformUserID:       WireID(wire(p.PlatformID.String())),
		TelegramUserID:       p.TelegramID,
		Nickname:             wire(p.Nickname),
		Password:             wire(p.Password),
		Email:                wire(p.Email),
		Identity:             wire(p.Role),
		MainSchoolCode:       wire(p.MainSchoolCode),
		MainSchoolName:       wire(p.MainSchoolName),
		ClassNumber:          wire(p.ClassNumber),
		ClassLetter:          wire(p.ClassLetter),
		Specialization:       wire(p.Specialization),
		Course:               wire(p.Course),
		AdditionalSchoolCode: wire(p.AdditionalSchoolCode),
		AdditionalSchoolName: wire(p.AdditionalSchoolName),
	}
}

// FromDTO converts the store's field set back into a profile. Platform ids
// failing the digit pattern are dropped.
func FromDTO(dto UserDTO) profile.Profile {
	return profile.Profile{
		PlatformID:           shared.NormalizePlatformID(string(dto.PlatformUserID)),
		TelegramID:           dto.TelegramUserID,
		Nickname:             unsetOr(dto.Nickname),
		Password:             unsetOr(dto.Password),
		Email:                unsetOr(dto.Email),
		Role:                 unsetOr(dto.Identity),
		MainSchoolCode:       absentOr(dto.MainSchoolCode),
		MainSchoolName:       absentOr(dto.MainSchoolName),
		ClassNumber:          unsetOr(dto.ClassNumber),
		ClassLetter:          unsetOr(dto.ClassLetter),
		Specialization:       absentOr(dto.Specialization),
		Course:               absentOr(dto.Course),
		AdditionalSchoolCode: absentOr(dto.AdditionalSchoolCode),
		AdditionalSchoolName: absentOr(dto.AdditionalSchoolName),
	}
}

func wire(v string) string {
	if !profile.IsSet(v) {
		return profile.WireUnset
	}
	return strings.TrimSpace(v)
}

func unsetOr(v string) string {
	if !profile.IsSet(v) {
		return profile.Unset
	}
	return strings.TrimSpace(v)
}

func absentOr(v string) string {
	if !profile.IsSet(v) {
		return ""
	}
	return strings.TrimSpace(v)
}
