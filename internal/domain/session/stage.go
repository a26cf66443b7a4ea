package session

// Stage is the dialogue position of one user.
type Stage string

const (
	StageNone Stage = "none"

	// Registration
	StageAwaitingAcknowledgement Stage = "awaiting_acknowledgement"
	StageAwaitingSchoolCode      Stage = "awaiting_school_code"
	StageAwaitingNickname        Stage = "awaiting_nickname"
	StageAwaitingRole            Stage = "awaiting_role"
	StageAwaitingClass           Stage = "awaiting_class"
	StageAwaitingSpecialization  Stage = "awaiting_specialization"
	StageAwaitingCourse          Stage = "awaiting_course"
	StageAwaitingPassword        Stage = "awaiting_password"
	StageAwaitingEmailChoice     Stage = "awaiting_email_choice"

	StageComplete Stage = "complete"

	// Edit sub-graph
	StageEditMenu              Stage = "edit_menu"
	StageEditingNickname       Stage = "editing_nickname"
	StageEditingPassword       Stage = "editing_password"
	StageEditingRole           Stage = "editing_role"
	StageEditingClass          Stage = "editing_class"
	StageEditingSpecialization Stage = "editing_specialization"
	StageEditingCourse         Stage = "editing_course"
	StageEditingMainSchool     Stage = "editing_main_school"

	// Additional school and support sub-flows
	StageAwaitingAdditionalSchoolCode Stage = "awaiting_additional_school_code"
	StageAwaitingDeletionID           Stage = "awaiting_deletion_id"
)

// IsIdle reports whether the user is outside any dialogue.
func (s Stage) IsIdle() bool {
	return s == StageNone || s == StageComplete || s == ""
}

// IsRegistration reports whether s belongs to the initial registration path.
func (s Stage) IsRegistration() bool {
	switch s {
	case StageAwaitingAcknowledgement, StageAwaitingSchoolCode, StageAwaitingNickname,
		StageAwaitingRole, StageAwaitingClass, StageAwaitingSpecialization,
		StageAwaitingCourse, StageAwaitingPassword, StageAwaitingEmailChoice:
		return true
	}
	return false
}

// IsEditing reports whether s is one of the Editing<Field> stages.
func (s Stage) IsEditing() bool {
	switch s {
	case StageEditingNickname, StageEditingPassword, StageEditingRole, StageEditingClass,
		StageEditingSpecialization, StageEditingCourse, StageEditingMainSchool:
		return true
	}
	return false
}

// Flow tells which sub-flow queued the current stage.
type Flow string

const (
	FlowNone         Flow = ""
	FlowRegistration Flow = "registration"
	FlowAdditional   Flow = "additional"
	FlowEdit         Flow = "edit"
	FlowDeletion     Flow = "deletion"
)
