package validation

import (
	"github.com/thevuntgram/vuntgram-bot/internal/domain/profile"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/school"
)

// Field names a profile field required for completeness.
type Field string

const (
	FieldMainSchool     Field = "main_school"
	FieldPlatformID     Field = "platform_id"
	FieldNickname       Field = "nickname"
	FieldEmail          Field = "email"
	FieldRole           Field = "role"
	FieldClass          Field = "class"
	FieldSpecialization Field = "specialization"
	FieldCourse         Field = "course"
)

// Missing lists the required fields that are not set, in dialogue order.
// Requiredness follows the main school type plus a specialized additional school.
func Missing(p profile.Profile, dir school.Lookup) []Field {
	var out []Field
	add := func(f Field) {
		for _, have := range out {
			if have == f {
				return
			}
		}
		out = append(out, f)
	}

	main, ok := dir.Lookup(p.MainSchoolCode)
	if !profile.IsSet(p.MainSchoolCode) || !ok {
		add(FieldMainSchool)
	}
	if !p.PlatformID.IsValid() {
		add(FieldPlatformID)
	}
	if !profile.IsSet(p.Nickname) {
		add(FieldNickname)
	}

	if ok {
		switch main.Type {
		case school.TypeStandard:
			if !profile.IsSet(p.Role) {
				add(FieldRole)
			}
			if !profile.IsSet(p.ClassNumber) || !profile.IsSet(p.ClassLetter) {
				add(FieldClass)
			}
		case school.TypeSpecialized:
			if !profile.IsSet(p.Role) {
				add(FieldRole)
			}
			if !profile.IsSet(p.Specialization) {
				add(FieldSpecialization)
			}
			if !profile.IsSet(p.Course) {
				add(FieldCourse)
			}
		case school.TypeMentor:
			if !profile.IsSet(p.Role) {
				add(FieldRole)
			}
			if !profile.IsSet(p.Specialization) {
				add(FieldSpecialization)
			}
		}
	} else if !profile.IsSet(p.Role) {
		add(FieldRole)
	}

	if profile.IsSet(p.AdditionalSchoolCode) {
		if extra, found := dir.Lookup(p.AdditionalSchoolCode); found && extra.Type == school.TypeSpecialized {
			if !profile.IsSet(p.Specialization) {
				add(FieldSpecialization)
			}
			if !profile.IsSet(p.Course) {
				add(FieldCourse)
			}
		}
	}

	if !profile.IsSet(p.Email) {
		add(FieldEmail)
	}
	return out
}

// IsComplete reports whether every field required by the school types is set
// and the platform id matches the digit pattern.
func IsComplete(p profile.Profile, dir school.Lookup) bool {
	return len(Missing(p, dir)) == 0
}
