// Package profile contains the UserProfile accumulated by the dialogue and
// persisted by the remote profile store.
package profile

import (
	"strings"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/school"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/shared"
)

const (
	// Unset marks a string field the user has not filled yet.
	Unset = "unset"

	// WireUnset is how the profile store encodes an absent value.
	WireUnset = "не указано"
)

// Roles.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleMentor  = "mentor"
)

// RoleLabels maps selectable roles to their button labels.
var RoleLabels = map[string]string{
	RoleStudent: "Ученик",
	RoleTeacher: "Учитель",
}

// RoleLabel returns the display name of any role, "—" when unknown.
func RoleLabel(role string) string {
	if role == RoleMentor {
		return "Наставник"
	}
	if l, ok := RoleLabels[role]; ok {
		return l
	}
	return "—"
}

// Profile is the record collected by the dialogue. Optional fields use ""
// (absent) or Unset, mirroring how the store distinguishes them.
type Profile struct {
	PlatformID shared.PlatformID `json:"platform_id,omitempty"`
	TelegramID int64             `json:"telegram_id"`

	Nickname string `json:"nickname"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Role     string `json:"role"`

	MainSchoolCode string `json:"main_school_code,omitempty"`
	MainSchoolName string `json:"main_school_name,omitempty"`

	ClassNumber string `json:"class_number"`
	ClassLetter string `json:"class_letter"`

	Specialization string `json:"specialization,omitempty"`
	Course         string `json:"course,omitempty"`

	AdditionalSchoolCode string `json:"additional_school_code,omitempty"`
	AdditionalSchoolName string `json:"additional_school_name,omitempty"`
}

// New returns an empty profile for a Telegram user.
func New(telegramID int64) Profile {
	return Profile{
		TelegramID:  telegramID,
		Nickname:    Unset,
		Password:    Unset,
		Email:       Unset,
		Role:        Unset,
		ClassNumber: Unset,
		ClassLetter: Unset,
	}
}

// IsSet reports whether v carries a real value.
func IsSet(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != Unset && v != WireUnset
}

// HasMainSchool reports whether a main school is recorded.
func (p Profile) HasMainSchool() bool {
	return IsSet(p.MainSchoolCode)
}

// HasAdditionalSchool reports whether an additional school is recorded.
func (p Profile) HasAdditionalSchool() bool {
	return IsSet(p.AdditionalSchoolCode)
}

// ClassLabel renders "7Б" style labels, or "" while unset.
func (p Profile) ClassLabel() string {
	if !IsSet(p.ClassNumber) || !IsSet(p.ClassLetter) {
		return ""
	}
	return p.ClassNumber + p.ClassLetter
}

// SetMainSchool records rec as the main school. Specialized schools are refused
// and the profile is left unchanged. Fields that the new school type does not
// use are reset; the mentor role is fixed for mentor programs.
func (p *Profile) SetMainSchool(rec school.Record) error {
	if !rec.Type.CanBeMain() {
		return shared.NewDomainError("profile", "SetMainSchool", shared.ErrInputRejected,
			"specialized school cannot be main")
	}

	if p.HasMainSchool() && p.MainSchoolCode == rec.Code {
		return nil
	}
	if p.AdditionalSchoolCode == rec.Code {
		p.AdditionalSchoolCode = ""
		p.AdditionalSchoolName = ""
	}

	p.MainSchoolCode = rec.Code
	p.MainSchoolName = rec.Name

	switch rec.Type {
	case school.TypeMentor:
		p.Role = RoleMentor
		p.ClassNumber = Unset
		p.ClassLetter = Unset
		if !p.HasAdditionalSchool() {
			p.Course = ""
		}
	case school.TypeStandard:
		if p.Role == RoleMentor {
			p.Role = Unset
		}
		if !p.HasAdditionalSchool() {
			p.Specialization = ""
			p.Course = ""
		}
	}
	return nil
}

// SetAdditionalSchool records rec as the additional school. A code equal to
// the main school is not recorded and reported as rejected input.
func (p *Profile) SetAdditionalSchool(rec school.Record) error {
	if rec.Code == p.MainSchoolCode {
		return shared.NewDomainError("profile", "SetAdditionalSchool", shared.ErrInputRejected,
			"additional school equals main school")
	}
	p.AdditionalSchoolCode = rec.Code
	p.AdditionalSchoolName = rec.Name
	return nil
}
