package conversation

import (
	"strings"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/profile"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/session"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/shared"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/validation"
)

// faq answers a FAQ button. Inside the deletion sub-flow it also drops the
// pending request.
func (e *Engine) faq(t *turn, label string) {
	answer := msgAbout
	if label == LabelDouble {
		answer = msgDouble
	}
	if t.st.Flow == session.FlowDeletion {
		t.st.Cancel()
		e.returnWith(t, answer)
		return
	}
	t.keepPrompt = true
	t.say(answer)
}

// textSupport forwards free text from an idle stage to the admins.
func (e *Engine) textSupport(t *turn, text string) {
	t.keepPrompt = true
	if strings.TrimSpace(text) == "" {
		return
	}
	if !e.features.Enabled(FeatureSupportRelay, t.st.TelegramID) {
		t.say(msgFeatureOff)
		return
	}

	e.publish(shared.NewSupportMessageReceivedEvent(t.st.TelegramID, t.ev.UserName, text, t.ev.At))
	t.out.StickerID = e.stickers.Sent
	t.say(msgSupportSent)
}

func (e *Engine) showProfile(t *turn) {
	t.keepPrompt = true
	if t.st.Stage != session.StageComplete {
		t.say(msgNeedStart)
		return
	}
	t.say(e.card(t.st.Profile))
}

// ══════════════════════════════════════════════════════════════════════════════
// DELETION
// ══════════════════════════════════════════════════════════════════════════════

func (e *Engine) beginDeletion(t *turn) {
	if !e.features.Enabled(FeatureSupportDeletion, t.st.TelegramID) {
		t.keepPrompt = true
		t.say(msgFeatureOff)
		return
	}
	t.st.BeginFlow(session.FlowDeletion, t.st.Stage)
	t.st.Stage = session.StageAwaitingDeletionID
	e.prompt(t)
}

func (e *Engine) textDeletionID(t *turn, text string) {
	id, err := validation.CheckDeletionID(text)
	if err != nil {
		e.rejectWith(t, err)
		return
	}

	e.publish(shared.NewAccountDeletionRequestedEvent(t.st.TelegramID, t.ev.UserName, id, t.ev.At))

	ret := t.st.ReturnStage
	if ret == "" {
		ret = session.StageNone
	}
	t.st.EndFlow()
	t.st.Stage = ret
	e.returnWith(t, msgDeletionDone)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE CARD
// ══════════════════════════════════════════════════════════════════════════════

func (e *Engine) card(p profile.Profile) string {
	var b strings.Builder
	line := func(label, value string) {
		b.WriteString("\n")
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(value)
	}

	b.WriteString("👤 Ваш профиль")

	id := p.PlatformID.String()
	if id == "" {
		id = "—"
	}
	line("ID", id)
	line("Никнейм", p.Nickname)
	if p.HasMainSchool() {
		line("Школа", p.MainSchoolName+" ("+p.MainSchoolCode+")")
	}
	line("Роль", profile.RoleLabel(p.Role))
	if c := p.ClassLabel(); c != "" {
		line("Класс", c)
	}
	if profile.IsSet(p.Specialization) {
		line("Специализация", p.Specialization)
	}
	if profile.IsSet(p.Course) {
		line("Курс", p.Course)
	}
	if p.HasAdditionalSchool() {
		line("Доп. школа", p.AdditionalSchoolName+" ("+p.AdditionalSchoolCode+")")
	}
	if profile.IsSet(p.Email) {
		line("Почта", p.Email)
	}
	return b.String()
}
