// Package school contains the School Directory: the static reference of school
// codes loaded at startup. The directory is read-only for the process lifetime.
package school

import (
	"fmt"
	"strings"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/shared"
)

// Type determines which profile fields a school requires.
type Type string

const (
	// TypeStandard - a regular school: role plus class number and letter.
	TypeStandard Type = "standard"
	// TypeSpecialized - specialization plus course; can only be an additional school.
	TypeSpecialized Type = "specialized"
	// TypeMentor - mentor program: fixed role, specialization only.
	TypeMentor Type = "mentor"
)

// IsValid checks if the type is one of the known values.
func (t Type) IsValid() bool {
	switch t {
	case TypeStandard, TypeSpecialized, TypeMentor:
		return true
	}
	return false
}

// CanBeMain reports whether a school of this type may be a user's main school.
func (t Type) CanBeMain() bool {
	return t == TypeStandard || t == TypeMentor
}

// Specialization is one selectable track of a school.
type Specialization struct {
	Code string `yaml:"code" json:"code"`
	Name string `yaml:"name" json:"name"`
}

// Record is one entry of the directory.
type Record struct {
	Code            string
	Name            string
	Type            Type
	Specializations []Specialization
	Courses         []string
}

// DefaultCourses is used for specialized schools that do not list their own.
var DefaultCourses = []string{"1", "2", "3", "4"}

// Specialization returns the track with the given code.
func (r Record) Specialization(code string) (Specialization, bool) {
	for _, s := range r.Specializations {
		if s.Code == code {
			return s, true
		}
	}
	return Specialization{}, false
}

// SpecializationByName resolves a track by its display name, as stored in a profile.
func (r Record) SpecializationByName(name string) (Specialization, bool) {
	for _, s := range r.Specializations {
		if s.Name == name {
			return s, true
		}
	}
	return Specialization{}, false
}

// CourseList returns the selectable courses of the school.
func (r Record) CourseList() []string {
	if len(r.Courses) == 0 {
		return DefaultCourses
	}
	return r.Courses
}

// HasCourse checks that course is one of CourseList.
func (r Record) HasCourse(course string) bool {
	for _, c := range r.CourseList() {
		if c == course {
			return true
		}
	}
	return false
}

// Lookup is the read-only contract every consumer of the directory depends on.
type Lookup interface {
	Lookup(code string) (Record, bool)
}

// Directory is an immutable code -> Record index.
type Directory struct {
	records map[string]Record
	order   []string
}

// NewDirectory validates records and builds the index.
func NewDirectory(records []Record) (*Directory, error) {
	d := &Directory{records: make(map[string]Record, len(records))}

	for i, r := range records {
		r.Code = strings.TrimSpace(r.Code)
		if r.Code == "" {
			return nil, shared.NewDomainError("school", "NewDirectory", shared.ErrInvalidFormat,
				fmt.Sprintf("record %d: empty code", i))
		}
		if _, dup := d.records[r.Code]; dup {
			return nil, shared.NewDomainError("school", "NewDirectory", shared.ErrInvalidFormat,
				fmt.Sprintf("duplicate school code %q", r.Code))
		}
		if !r.Type.IsValid() {
			return nil, shared.NewDomainError("school", "NewDirectory", shared.ErrInvalidFormat,
				fmt.Sprintf("school %q: unknown type %q", r.Code, r.Type))
		}
		if r.Type != TypeStandard && len(r.Specializations) == 0 {
			return nil, shared.NewDomainError("school", "NewDirectory", shared.ErrInvalidFormat,
				fmt.Sprintf("school %q: %s school needs specializations", r.Code, r.Type))
		}

		r.Specializations = append([]Specialization(nil), r.Specializations...)
		r.Courses = append([]string(nil), r.Courses...)
		d.records[r.Code] = r
		d.order = append(d.order, r.Code)
	}

	return d, nil
}

// Lookup returns the record for code. Surrounding whitespace is ignored.
func (d *Directory) Lookup(code string) (Record, bool) {
	if d == nil {
		return Record{}, false
	}
	r, ok := d.records[strings.TrimSpace(code)]
	return r, ok
}

// Len returns the number of schools.
func (d *Directory) Len() int {
	return len(d.order)
}

// Codes returns all codes in load order.
func (d *Directory) Codes() []string {
	return append([]string(nil), d.order...)
}
