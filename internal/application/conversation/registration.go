package conversation

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/profile"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/school"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/session"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/shared"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/validation"
	"github.com/thevuntgram/vuntgram-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESTART
// ══════════════════════════════════════════════════════════════════════════════

// restart handles /start: bump the generation, hydrate from the store and
// either land in Complete or begin registration.
func (e *Engine) restart(t *turn) {
	t.st.Generation++

	p, found, err := e.sync.Fetch(t.ctx, t.st.TelegramID)
	if err != nil {
		e.logger.Warn("profile fetch failed", logger.TelegramID(t.st.TelegramID), logger.Err(err))
		t.st.Reset()
		t.err = err
		t.say(msgFetchFailed)
		t.out.Menu = idleMenu
		return
	}

	if found && validation.IsComplete(p, e.dir) {
		t.st.EndFlow()
		t.st.Profile = p
		t.st.Stage = session.StageComplete
		t.say(fmt.Sprintf("%s, %s!", msgWelcomeBack, p.Nickname))
		t.say(e.card(p))
		t.out.Menu = completeMenu
		return
	}

	// An incomplete remote profile keeps only its id; registration starts over.
	t.st.Reset()
	if found && p.PlatformID.IsValid() {
		t.st.Profile.PlatformID = p.PlatformID
	}
	t.st.BeginFlow(session.FlowRegistration, session.StageNone, session.StageAwaitingSchoolCode)
	t.st.Stage = session.StageAwaitingAcknowledgement
	e.prompt(t)
}

func (e *Engine) chooseAck(t *turn, action, _ string) bool {
	if action != ActionAck {
		return false
	}
	e.next(t)
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHOOL CODES
// ══════════════════════════════════════════════════════════════════════════════

// checkSchool applies the rules shared by every stage that accepts a school
// code. asMain is true when the code would become the main school.
func (e *Engine) checkSchool(t *turn, code string, asMain bool) (school.Record, bool) {
	p := t.st.Profile
	if t.st.AwaitingRetry && t.st.Confirmed != nil {
		// The failed attempt already wrote its school into the profile.
		p = *t.st.Confirmed
	}

	rec, ok := e.lookup(code)
	if !ok {
		e.reprompt(t, shared.ErrReferenceNotFound, msgSchoolNotFound)
		return school.Record{}, false
	}
	if rec.Code == p.MainSchoolCode || rec.Code == p.AdditionalSchoolCode {
		e.reprompt(t, shared.ErrInputRejected, msgSchoolDuplicate)
		return school.Record{}, false
	}
	if (asMain || !p.HasMainSchool()) && !rec.Type.CanBeMain() {
		e.reprompt(t, shared.ErrInputRejected, msgSchoolNotMain)
		return school.Record{}, false
	}
	if rec.Type == school.TypeStandard {
		// The school being replaced does not count.
		other := p.MainSchoolCode
		if asMain {
			other = p.AdditionalSchoolCode
		}
		if cur, ok := e.lookup(other); ok && cur.Type == school.TypeStandard {
			e.reprompt(t, shared.ErrInputRejected, msgSchoolRegularBusy)
			return school.Record{}, false
		}
	}
	return rec, true
}

func (e *Engine) textMainSchool(t *turn, text string) {
	rec, ok := e.checkSchool(t, text, true)
	if !ok {
		return
	}
	if err := t.st.Profile.SetMainSchool(rec); err != nil {
		e.reprompt(t, err, msgSchoolNotMain)
		return
	}

	var queue []session.Stage
	if !profile.IsSet(t.st.Profile.Nickname) {
		queue = append(queue, session.StageAwaitingNickname)
	}
	switch rec.Type {
	case school.TypeStandard:
		queue = append(queue, session.StageAwaitingRole, session.StageAwaitingClass)
	case school.TypeMentor:
		queue = append(queue, session.StageAwaitingSpecialization)
	}
	queue = append(queue, session.StageAwaitingPassword, session.StageAwaitingEmailChoice)

	t.st.Enqueue(queue...)
	e.next(t)
}

// ══════════════════════════════════════════════════════════════════════════════
// FIELDS
// ══════════════════════════════════════════════════════════════════════════════

func (e *Engine) textNickname(t *turn, text string) {
	if err := e.screen.CheckNickname(text); err != nil {
		e.rejectWith(t, err)
		return
	}
	t.st.Profile.Nickname = text
	e.next(t)
}

func (e *Engine) chooseRole(t *turn, action, value string) bool {
	if action != ActionRole {
		return false
	}
	if _, ok := profile.RoleLabels[value]; !ok {
		return false
	}
	t.st.Profile.Role = value
	e.next(t)
	return true
}

func (e *Engine) textClass(t *turn, text string) {
	number, letter, err := validation.ParseClass(text)
	if err != nil {
		e.rejectWith(t, err)
		return
	}
	t.st.Profile.ClassNumber = number
	t.st.Profile.ClassLetter = letter
	e.next(t)
}

func (e *Engine) chooseSpecialization(t *turn, action, value string) bool {
	if action != ActionSpec {
		return false
	}
	rec, ok := e.specSchool(t.st.Profile)
	if !ok {
		return false
	}
	s, ok := rec.Specialization(value)
	if !ok {
		return false
	}
	t.st.Profile.Specialization = s.Name
	e.next(t)
	return true
}

func (e *Engine) chooseCourse(t *turn, action, value string) bool {
	if action != ActionCourse {
		return false
	}
	rec, ok := e.courseSchool(t.st.Profile)
	if !ok || !rec.HasCourse(value) {
		return false
	}
	t.st.Profile.Course = value
	e.next(t)
	return true
}

func (e *Engine) textPassword(t *turn, text string) {
	// The password message itself is removed from the chat either way.
	if t.ev.MessageID != 0 {
		t.out.DeleteMessageIDs = append(t.out.DeleteMessageIDs, t.ev.MessageID)
	}
	if err := validation.CheckPassword(text, t.st.Profile.Nickname); err != nil {
		e.rejectWith(t, err)
		return
	}
	t.st.Profile.Password = text
	e.next(t)
}

func (e *Engine) textEmail(t *turn, text string) {
	email, err := validation.CheckEmail(text)
	if err != nil {
		e.rejectWith(t, err)
		return
	}
	t.st.Profile.Email = email
	e.next(t)
}

func (e *Engine) chooseNoEmail(t *turn, action, _ string) bool {
	if action != ActionNoEmail {
		return false
	}
	t.st.Profile.Email = fmt.Sprintf("tg%d@%s", t.st.TelegramID, e.relay)
	e.next(t)
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT
// ══════════════════════════════════════════════════════════════════════════════

// submit syncs the finished flow. On failure the stage and every collected
// field stay as they are and a retry option is offered.
func (e *Engine) submit(t *turn) {
	flow := t.st.Flow
	field := strings.TrimPrefix(string(t.st.Stage), "editing_")
	p := t.st.Profile

	var (
		saved profile.Profile
		err   error
	)
	if flow == session.FlowRegistration && !p.PlatformID.IsValid() {
		saved, err = e.sync.Register(t.ctx, p)
	} else {
		saved, err = e.sync.Update(t.ctx, p)
	}

	if err != nil {
		if !errors.Is(err, shared.ErrSyncFailure) {
			err = shared.WrapError("conversation", "submit", shared.ErrSyncFailure, "sync failed", err)
		}
		e.logger.Warn("profile sync failed",
			logger.TelegramID(t.st.TelegramID),
			logger.Stage(string(t.st.Stage)),
			slog.String("flow", string(flow)),
			logger.Err(err),
		)
		t.err = err
		t.st.AwaitingRetry = true
		t.say(msgSyncFailed)
		e.prompt(t)
		return
	}

	t.st.Profile = saved
	t.st.EndFlow()

	switch flow {
	case session.FlowRegistration:
		e.publish(shared.NewProfileRegisteredEvent(saved.TelegramID, saved.PlatformID.String(), t.ev.UserName,
			saved.Nickname, saved.MainSchoolCode, saved.MainSchoolName, saved.Role, t.ev.At))
		if !validation.IsComplete(saved, e.dir) {
			e.logger.Error("registered profile is not complete",
				logger.TelegramID(saved.TelegramID),
				slog.Any("missing", validation.Missing(saved, e.dir)),
			)
		}
		t.st.Stage = session.StageComplete
		t.out.StickerID = e.stickers.Success
		t.say(msgRegistered)
		t.say(e.card(saved))
		t.out.Menu = completeMenu

	case session.FlowAdditional:
		e.publish(shared.NewProfileUpdatedEvent(saved.TelegramID, saved.PlatformID.String(), "additional_school", t.ev.At))
		t.st.Stage = session.StageComplete
		t.say(fmt.Sprintf("✅ Школа «%s» добавлена.", saved.AdditionalSchoolName))
		t.say(e.card(saved))
		t.out.Menu = completeMenu

	case session.FlowEdit:
		e.publish(shared.NewProfileUpdatedEvent(saved.TelegramID, saved.PlatformID.String(), field, t.ev.At))
		t.st.Stage = session.StageEditMenu
		t.say(msgSaved)
		e.prompt(t)

	default:
		t.st.Stage = session.StageComplete
		t.say(msgSaved)
		t.out.Menu = completeMenu
	}
}
