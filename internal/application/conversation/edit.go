package conversation

import (
	"github.com/thevuntgram/vuntgram-bot/internal/domain/profile"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/school"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/session"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/shared"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/validation"
)

// editField is one button of the edit menu.
type editField struct {
	value string
	label string
	stage session.Stage
}

var (
	editNickname       = editField{"nickname", "Никнейм", session.StageEditingNickname}
	editPassword       = editField{"password", "Пароль", session.StageEditingPassword}
	editRole           = editField{"role", "Роль", session.StageEditingRole}
	editClass          = editField{"class", "Класс", session.StageEditingClass}
	editSpecialization = editField{"specialization", "Специализация", session.StageEditingSpecialization}
	editCourse         = editField{"course", "Курс", session.StageEditingCourse}
	editMainSchool     = editField{"main_school", "Основная школа", session.StageEditingMainSchool}
)

// editableFields lists the fields that apply to the user's schools.
func (e *Engine) editableFields(p profile.Profile) []editField {
	fields := []editField{editNickname, editPassword}

	main, _ := e.lookup(p.MainSchoolCode)
	if main.Type == school.TypeStandard {
		fields = append(fields, editRole, editClass)
	}
	if _, ok := e.specSchool(p); ok {
		fields = append(fields, editSpecialization)
	}
	if _, ok := e.courseSchool(p); ok {
		fields = append(fields, editCourse)
	}
	return append(fields, editMainSchool)
}

func (e *Engine) openEditMenu(t *turn) {
	if t.st.Stage != session.StageComplete {
		t.keepPrompt = true
		t.say(msgNeedStart)
		return
	}
	t.st.Stage = session.StageEditMenu
	e.prompt(t)
}

func (e *Engine) promptEditMenu(t *turn) {
	t.say("Что вы хотите изменить?")
	for _, f := range e.editableFields(t.st.Profile) {
		t.option(f.label, ActionEdit, f.value)
	}
	t.option("⬅️ Назад", ActionBack, "")
}

func (e *Engine) chooseEditField(t *turn, action, value string) bool {
	switch action {
	case ActionBack:
		t.st.EndFlow()
		t.st.Stage = session.StageComplete
		t.say(msgBackToMain)
		t.out.Menu = completeMenu
		return true

	case ActionEdit:
		for _, f := range e.editableFields(t.st.Profile) {
			if f.value != value {
				continue
			}
			t.st.BeginFlow(session.FlowEdit, session.StageEditMenu)
			t.st.Stage = f.stage
			e.prompt(t)
			return true
		}
	}
	return false
}

// textEditMainSchool replaces the main school and queues the fields the new
// school type requires.
func (e *Engine) textEditMainSchool(t *turn, text string) {
	rec, ok := e.checkSchool(t, text, true)
	if !ok {
		return
	}

	p := &t.st.Profile
	if err := p.SetMainSchool(rec); err != nil {
		e.reprompt(t, err, msgSchoolNotMain)
		return
	}

	switch rec.Type {
	case school.TypeStandard:
		p.ClassNumber = profile.Unset
		p.ClassLetter = profile.Unset
	case school.TypeMentor:
		// The shared specialization field belongs to a non-standard additional school if there is one.
		if extra, ok := e.lookup(p.AdditionalSchoolCode); !ok || extra.Type == school.TypeStandard {
			p.Specialization = ""
		}
	}

	var queue []session.Stage
	for _, f := range validation.Missing(*p, e.dir) {
		switch f {
		case validation.FieldRole:
			queue = append(queue, session.StageEditingRole)
		case validation.FieldClass:
			queue = append(queue, session.StageEditingClass)
		case validation.FieldSpecialization:
			queue = append(queue, session.StageEditingSpecialization)
		case validation.FieldCourse:
			queue = append(queue, session.StageEditingCourse)
		}
	}
	t.st.Enqueue(queue...)
	e.next(t)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADDITIONAL SCHOOL
// ══════════════════════════════════════════════════════════════════════════════

func (e *Engine) beginAdditional(t *turn) {
	switch {
	case t.st.Stage != session.StageComplete:
		t.keepPrompt = true
		t.say(msgNeedStart)
		return
	case !e.features.Enabled(FeatureAdditionalSchool, t.st.TelegramID):
		t.keepPrompt = true
		t.say(msgFeatureOff)
		return
	case t.st.Profile.HasAdditionalSchool():
		t.keepPrompt = true
		t.say(msgAdditionalExists)
		return
	}

	t.st.BeginFlow(session.FlowAdditional, session.StageComplete)
	t.st.Stage = session.StageAwaitingAdditionalSchoolCode
	e.prompt(t)
}

// textAdditionalSchool records a second school. Nickname and password are
// not asked again; a specialized school needs specialization and course.
func (e *Engine) textAdditionalSchool(t *turn, text string) {
	rec, ok := e.checkSchool(t, text, false)
	if !ok {
		return
	}
	if err := t.st.Profile.SetAdditionalSchool(rec); err != nil {
		e.reprompt(t, err, msgSchoolDuplicate)
		return
	}

	switch rec.Type {
	case school.TypeSpecialized:
		t.st.Enqueue(session.StageAwaitingSpecialization, session.StageAwaitingCourse)
	case school.TypeMentor:
		t.st.Enqueue(session.StageAwaitingSpecialization)
	}
	e.next(t)
}

// ══════════════════════════════════════════════════════════════════════════════
// CANCEL
// ══════════════════════════════════════════════════════════════════════════════

// cancel is accepted inside the edit, additional-school and deletion
// sub-flows. It restores the confirmed fields.
func (e *Engine) cancel(t *turn) {
	stage := t.st.Stage

	switch {
	case stage.IsEditing():
		t.st.Cancel()
		t.say(msgEditCancelled)
		e.prompt(t)

	case t.st.Flow == session.FlowAdditional:
		t.st.Cancel()
		t.say(msgAddCancelled)
		t.out.Menu = completeMenu

	case stage == session.StageAwaitingDeletionID:
		t.st.Cancel()
		e.returnWith(t, msgDeletionCancel)

	case stage == session.StageEditMenu:
		t.st.EndFlow()
		t.st.Stage = session.StageComplete
		t.say(msgBackToMain)
		t.out.Menu = completeMenu

	case stage.IsRegistration():
		e.reprompt(t, shared.ErrInputRejected, msgNoCancelHere)

	default:
		// Nothing to cancel.
	}
}

// returnWith lands on the current (idle or edit-menu) stage, restoring its
// reply keyboard and, for the edit menu, its inline options.
func (e *Engine) returnWith(t *turn, message string) {
	if t.st.Stage == session.StageEditMenu {
		t.out.Notice = message
		t.out.Menu = completeMenu
		e.prompt(t)
		return
	}
	t.say(message)
	t.out.Menu = menuFor(t.st.Stage)
}
