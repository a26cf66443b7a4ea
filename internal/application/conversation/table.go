package conversation

import (
	"fmt"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/profile"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/school"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/session"
)

// transitionTable maps every stage to its prompt and input handlers.
// Registration and Editing<Field> stages share the same field handlers.
func transitionTable() map[session.Stage]stageHandler {
	nickname := stageHandler{prompt: (*Engine).promptNickname, text: (*Engine).textNickname}
	role := stageHandler{prompt: (*Engine).promptRole, choice: (*Engine).chooseRole}
	class := stageHandler{prompt: (*Engine).promptClass, text: (*Engine).textClass}
	spec := stageHandler{prompt: (*Engine).promptSpecialization, choice: (*Engine).chooseSpecialization}
	course := stageHandler{prompt: (*Engine).promptCourse, choice: (*Engine).chooseCourse}
	password := stageHandler{prompt: (*Engine).promptPassword, text: (*Engine).textPassword}

	return map[session.Stage]stageHandler{
		session.StageNone:     {text: (*Engine).textSupport},
		session.StageComplete: {text: (*Engine).textSupport},

		session.StageAwaitingAcknowledgement: {prompt: (*Engine).promptWelcome, choice: (*Engine).chooseAck},
		session.StageAwaitingSchoolCode:      {prompt: (*Engine).promptSchoolCode, text: (*Engine).textMainSchool},
		session.StageAwaitingNickname:        nickname,
		session.StageAwaitingRole:            role,
		session.StageAwaitingClass:           class,
		session.StageAwaitingSpecialization:  spec,
		session.StageAwaitingCourse:          course,
		session.StageAwaitingPassword:        password,
		session.StageAwaitingEmailChoice:     {prompt: (*Engine).promptEmail, text: (*Engine).textEmail, choice: (*Engine).chooseNoEmail},

		session.StageEditMenu:              {prompt: (*Engine).promptEditMenu, choice: (*Engine).chooseEditField},
		session.StageEditingNickname:       nickname,
		session.StageEditingPassword:       password,
		session.StageEditingRole:           role,
		session.StageEditingClass:          class,
		session.StageEditingSpecialization: spec,
		session.StageEditingCourse:         course,
		session.StageEditingMainSchool:     {prompt: (*Engine).promptNewMainSchool, text: (*Engine).textEditMainSchool},

		session.StageAwaitingAdditionalSchoolCode: {prompt: (*Engine).promptAdditionalSchool, text: (*Engine).textAdditionalSchool},
		session.StageAwaitingDeletionID:           {prompt: (*Engine).promptDeletionID, text: (*Engine).textDeletionID},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PROMPTS
// ══════════════════════════════════════════════════════════════════════════════

func (e *Engine) promptWelcome(t *turn) {
	if t.out.StickerID == "" {
		t.out.StickerID = e.stickers.Welcome
	}
	name := t.ev.UserName
	if name == "" {
		name = "друг"
	}
	t.say(fmt.Sprintf("Привет, %s! Это бот платформы TheVuntgram. Давайте заполним профиль участника, это займёт пару минут.\n\n"+
		"После регистрации сюда можно писать вопросы в поддержку.", name))
	t.option("✅ Понятно", ActionAck, "")
}

func (e *Engine) promptSchoolCode(t *turn) {
	t.say("🏫 Отправьте код вашей основной школы.")
}

func (e *Engine) promptNickname(t *turn) {
	t.say("✏️ Придумайте никнейм: не меньше 3 букв, латиница или кириллица. Пробел, дефис и подчёркивание можно, но не в конце.")
}

var roleOrder = []string{profile.RoleStudent, profile.RoleTeacher}

func (e *Engine) promptRole(t *turn) {
	t.say(fmt.Sprintf("Кто вы в школе «%s»?", t.st.Profile.MainSchoolName))
	for _, r := range roleOrder {
		t.option(profile.RoleLabels[r], ActionRole, r)
	}
}

func (e *Engine) promptClass(t *turn) {
	t.say("Укажите ваш класс, например 7Б.")
}

func (e *Engine) promptSpecialization(t *turn) {
	rec, ok := e.specSchool(t.st.Profile)
	if !ok {
		t.say("Выберите специализацию:")
		return
	}
	t.say(fmt.Sprintf("Выберите специализацию (%s):", rec.Name))
	for _, s := range rec.Specializations {
		t.option(s.Name, ActionSpec, s.Code)
	}
}

func (e *Engine) promptCourse(t *turn) {
	rec, _ := e.courseSchool(t.st.Profile)
	t.say("Выберите курс:")
	for _, c := range rec.CourseList() {
		t.option(c+" курс", ActionCourse, c)
	}
}

func (e *Engine) promptPassword(t *turn) {
	t.say("🔑 Придумайте пароль: не короче 6 символов, с буквами и цифрами.")
}

func (e *Engine) promptEmail(t *turn) {
	t.say("📧 Отправьте адрес электронной почты или нажмите «Без почты».")
	t.option("Без почты", ActionNoEmail, "")
}

func (e *Engine) promptNewMainSchool(t *turn) {
	t.say("🏫 Отправьте код новой основной школы.")
}

func (e *Engine) promptAdditionalSchool(t *turn) {
	t.say("🏫 Отправьте код дополнительной школы.")
}

func (e *Engine) promptDeletionID(t *turn) {
	t.say(msgDeletionPrompt)
	t.out.Menu = cancelMenu
}

// specSchool is the school whose specializations are offered: a non-standard
// additional school wins over the main one.
func (e *Engine) specSchool(p profile.Profile) (school.Record, bool) {
	if p.HasAdditionalSchool() {
		if rec, ok := e.lookup(p.AdditionalSchoolCode); ok && rec.Type != school.TypeStandard {
			return rec, true
		}
	}
	if rec, ok := e.lookup(p.MainSchoolCode); ok && rec.Type != school.TypeStandard {
		return rec, true
	}
	return school.Record{}, false
}

// courseSchool is the specialized school the course belongs to.
func (e *Engine) courseSchool(p profile.Profile) (school.Record, bool) {
	for _, code := range []string{p.AdditionalSchoolCode, p.MainSchoolCode} {
		if rec, ok := e.lookup(code); ok && rec.Type == school.TypeSpecialized {
			return rec, true
		}
	}
	return school.Record{}, false
}
