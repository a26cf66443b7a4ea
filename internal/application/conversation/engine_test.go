package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/profile"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/school"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/session"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/shared"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/validation"
)

// ═══════════════════════════════════════════════════════════════════════════
// Fakes
// ═══════════════════════════════════════════════════════════════════════════

type fakeSync struct {
	fetched  profile.Profile
	found    bool
	fetchErr error
	saveErr  error

	registered []profile.Profile
	updated    []profile.Profile
}

func (f *fakeSync) Register(_ context.Context, p profile.Profile) (profile.Profile, error) {
	if f.saveErr != nil {
		return p, f.saveErr
	}
	p.PlatformID = "123456789"
	f.registered = append(f.registered, p)
	return p, nil
}

func (f *fakeSync) Update(_ context.Context, p profile.Profile) (profile.Profile, error) {
	if f.saveErr != nil {
		return p, f.saveErr
	}
	if !p.PlatformID.IsValid() {
		p.PlatformID = "123456789"
	}
	f.updated = append(f.updated, p)
	return p, nil
}

func (f *fakeSync) Fetch(_ context.Context, id int64) (profile.Profile, bool, error) {
	if f.fetchErr != nil {
		return profile.New(id), false, f.fetchErr
	}
	if !f.found {
		return profile.New(id), false, nil
	}
	return f.fetched, true, nil
}

type recorder struct {
	mu     sync.Mutex
	events []shared.Event
}

func (r *recorder) Publish(ev shared.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []shared.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shared.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventType())
	}
	return out
}

type flags map[string]bool

func (f flags) Enabled(name string, _ int64) bool {
	v, ok := f[name]
	return !ok || v
}

// ═══════════════════════════════════════════════════════════════════════════
// Harness
// ═══════════════════════════════════════════════════════════════════════════

const userID = 42

func testDirectory(t *testing.T) *school.Directory {
	t.Helper()
	d, err := school.NewDirectory([]school.Record{
		{Code: "1001", Name: "Школа №1", Type: school.TypeStandard},
		{Code: "1002", Name: "Школа №2", Type: school.TypeStandard},
		{Code: "2001", Name: "IT-колледж", Type: school.TypeSpecialized, Specializations: []school.Specialization{
			{Code: "dev", Name: "Разработка"}, {Code: "ops", Name: "Администрирование"},
		}, Courses: []string{"1", "2", "3"}},
		{Code: "3001", Name: "Наставники", Type: school.TypeMentor, Specializations: []school.Specialization{
			{Code: "math", Name: "Математика"},
		}},
		{Code: "3002", Name: "Наставники-2", Type: school.TypeMentor, Specializations: []school.Specialization{
			{Code: "cs", Name: "Информатика"},
		}},
	})
	require.NoError(t, err)
	return d
}

type harness struct {
	t    *testing.T
	e    *Engine
	st   session.State
	sync *fakeSync
	pub  *recorder
}

func newHarness(t *testing.T, features flags) *harness {
	h := &harness{
		t:    t,
		st:   session.New(userID),
		sync: &fakeSync{},
		pub:  &recorder{},
	}
	h.e = New(Config{
		Directory:        testDirectory(t),
		Screen:           validation.NewScreen([]string{"durak"}),
		Sync:             h.sync,
		Publisher:        h.pub,
		Features:         features,
		Stickers:         Stickers{Welcome: "w", Sent: "s", Error: "x", Success: "ok"},
		EmailRelayDomain: "relay.test",
		Now:              func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	})
	return h
}

func (h *harness) send(ev Event) Result {
	if ev.UserName == "" {
		ev.UserName = "Милана"
	}
	r := h.e.Handle(context.Background(), h.st, ev)
	h.st = r.State
	return r
}

func (h *harness) text(s string) Result {
	return h.send(Event{Kind: KindText, Text: s})
}

func (h *harness) choose(action, value string) Result {
	return h.send(Event{Kind: KindChoice, Action: action, Value: value, Generation: h.st.Generation})
}

func (h *harness) start() Result {
	return h.send(Event{Kind: KindCommand, Command: CommandStart})
}

// registerStandard walks the whole registration for a regular school.
func (h *harness) registerStandard() {
	h.t.Helper()
	h.start()
	h.choose(ActionAck, "")
	h.text("1001")
	h.text("Milana")
	h.choose(ActionRole, profile.RoleStudent)
	h.text("7б")
	h.text("Qr7tZx9")
	r := h.text("milana@example.com")
	require.NoError(h.t, r.Err)
	require.Equal(h.t, session.StageComplete, h.st.Stage)
}

func hasOption(i Instruction, action, value string) bool {
	for _, o := range i.Options {
		if o.Action == action && o.Value == value {
			return true
		}
	}
	return false
}

// ═══════════════════════════════════════════════════════════════════════════
// Registration
// ═══════════════════════════════════════════════════════════════════════════

func TestRegistration_StandardSchool(t *testing.T) {
	h := newHarness(t, nil)

	r := h.start()
	assert.Equal(t, session.StageAwaitingAcknowledgement, h.st.Stage)
	assert.Equal(t, int64(1), h.st.Generation)
	assert.Equal(t, "w", r.Instruction.StickerID)
	assert.Contains(t, r.Instruction.Text, "Милана")
	assert.True(t, hasOption(r.Instruction, ActionAck, ""))

	h.choose(ActionAck, "")
	assert.Equal(t, session.StageAwaitingSchoolCode, h.st.Stage)

	h.text("1001")
	assert.Equal(t, session.StageAwaitingNickname, h.st.Stage)
	assert.Equal(t, "Школа №1", h.st.Profile.MainSchoolName)

	h.text("Milana")
	assert.Equal(t, session.StageAwaitingRole, h.st.Stage)

	h.choose(ActionRole, profile.RoleTeacher)
	assert.Equal(t, session.StageAwaitingClass, h.st.Stage)

	h.text("10 a")
	assert.Equal(t, session.StageAwaitingPassword, h.st.Stage)

	h.text("Qr7tZx9")
	assert.Equal(t, session.StageAwaitingEmailChoice, h.st.Stage)

	r = h.text("Milana@Example.com")
	require.NoError(t, r.Err)
	assert.Equal(t, session.StageComplete, h.st.Stage)
	assert.Equal(t, "ok", r.Instruction.StickerID)
	assert.Contains(t, r.Instruction.Text, msgRegistered)
	assert.Equal(t, completeMenu, r.Instruction.Menu)

	p := h.st.Profile
	assert.Equal(t, shared.PlatformID("123456789"), p.PlatformID)
	assert.Equal(t, profile.RoleTeacher, p.Role)
	assert.Equal(t, "10A", p.ClassLabel())
	assert.Equal(t, "milana@example.com", p.Email)
	assert.True(t, validation.IsComplete(p, testDirectory(t)))

	assert.Len(t, h.sync.registered, 1)
	assert.Equal(t, []shared.EventType{shared.EventProfileRegistered}, h.pub.types())
	assert.Nil(t, h.st.Confirmed)
	assert.Empty(t, h.st.Pending)
}

func TestRegistration_MentorSkipsRole(t *testing.T) {
	h := newHarness(t, nil)
	h.start()
	h.choose(ActionAck, "")

	h.text("3001")
	h.text("Milana")
	r := h.st
	assert.Equal(t, session.StageAwaitingSpecialization, r.Stage)
	assert.Equal(t, profile.RoleMentor, r.Profile.Role)

	h.choose(ActionSpec, "math")
	assert.Equal(t, "Математика", h.st.Profile.Specialization)
	assert.Equal(t, session.StageAwaitingPassword, h.st.Stage)

	h.text("Qr7tZx9")
	res := h.choose(ActionNoEmail, "")
	require.NoError(t, res.Err)
	assert.Equal(t, session.StageComplete, h.st.Stage)
	assert.Equal(t, "tg42@relay.test", h.st.Profile.Email)
}

func TestRegistration_SpecializedSchoolCannotBeMain(t *testing.T) {
	h := newHarness(t, nil)
	h.start()
	h.choose(ActionAck, "")

	r := h.text("2001")
	assert.ErrorIs(t, r.Err, shared.ErrInputRejected)
	assert.Equal(t, session.StageAwaitingSchoolCode, h.st.Stage)
	assert.Contains(t, r.Instruction.Text, msgSchoolNotMain)
	assert.Equal(t, "x", r.Instruction.StickerID)
	assert.False(t, h.st.Profile.HasMainSchool())
}

func TestRegistration_UnknownSchool(t *testing.T) {
	h := newHarness(t, nil)
	h.start()
	h.choose(ActionAck, "")

	r := h.text("0000")
	assert.ErrorIs(t, r.Err, shared.ErrReferenceNotFound)
	assert.Equal(t, session.StageAwaitingSchoolCode, h.st.Stage)
}

func TestRegistration_RejectionKeepsFields(t *testing.T) {
	h := newHarness(t, nil)
	h.start()
	h.choose(ActionAck, "")
	h.text("1001")

	r := h.text("Ab")
	assert.ErrorIs(t, r.Err, shared.ErrInputRejected)
	assert.Equal(t, session.StageAwaitingNickname, h.st.Stage)
	assert.Contains(t, r.Instruction.Text, validation.ReasonNicknameTooShort.Message())

	h.text("Milana")
	h.choose(ActionRole, profile.RoleStudent)
	h.text("7Б")

	r = h.send(Event{Kind: KindText, Text: "milana1", MessageID: 77})
	assert.ErrorIs(t, r.Err, shared.ErrInputRejected)
	assert.Equal(t, session.StageAwaitingPassword, h.st.Stage)
	assert.Contains(t, r.Instruction.DeleteMessageIDs, 77)
	assert.Equal(t, "Milana", h.st.Profile.Nickname)
	assert.Equal(t, "7Б", h.st.Profile.ClassLabel())
	assert.Equal(t, profile.Unset, h.st.Profile.Password)
}

func TestRegistration_TextOnChoiceStage(t *testing.T) {
	h := newHarness(t, nil)
	h.start()

	r := h.text("хорошо")
	assert.ErrorIs(t, r.Err, shared.ErrInputRejected)
	assert.Equal(t, session.StageAwaitingAcknowledgement, h.st.Stage)
	assert.True(t, hasOption(r.Instruction, ActionAck, ""))
}

func TestRegistration_CancelIsRejected(t *testing.T) {
	h := newHarness(t, nil)
	h.start()
	h.choose(ActionAck, "")
	h.text("1001")

	r := h.text(LabelCancel)
	assert.ErrorIs(t, r.Err, shared.ErrInputRejected)
	assert.Equal(t, session.StageAwaitingNickname, h.st.Stage)
	assert.Equal(t, "1001", h.st.Profile.MainSchoolCode)
}

func TestRegistration_SyncFailureKeepsStageAndOffersRetry(t *testing.T) {
	h := newHarness(t, nil)
	h.start()
	h.choose(ActionAck, "")
	h.text("1001")
	h.text("Milana")
	h.choose(ActionRole, profile.RoleStudent)
	h.text("7Б")
	h.text("Qr7tZx9")

	h.sync.saveErr = shared.WrapError("profilesync", "Register", shared.ErrSyncFailure, "down", errors.New("503"))
	r := h.text("milana@example.com")

	assert.ErrorIs(t, r.Err, shared.ErrSyncFailure)
	assert.Equal(t, session.StageAwaitingEmailChoice, h.st.Stage)
	assert.True(t, h.st.AwaitingRetry)
	assert.True(t, hasOption(r.Instruction, ActionRetry, ""))
	assert.Contains(t, r.Instruction.Text, msgSyncFailed)
	assert.Equal(t, "milana@example.com", h.st.Profile.Email)
	assert.Empty(t, h.pub.types())

	h.sync.saveErr = nil
	r = h.choose(ActionRetry, "")
	require.NoError(t, r.Err)
	assert.Equal(t, session.StageComplete, h.st.Stage)
	assert.False(t, h.st.AwaitingRetry)
}

func TestRegistration_IncompleteRemoteProfileKeepsID(t *testing.T) {
	h := newHarness(t, nil)
	remote := profile.New(userID)
	remote.PlatformID = "87654321"
	remote.Nickname = "Milana"
	h.sync.fetched, h.sync.found = remote, true

	h.start()
	assert.Equal(t, session.StageAwaitingAcknowledgement, h.st.Stage)
	assert.Equal(t, shared.PlatformID("87654321"), h.st.Profile.PlatformID)
	assert.Equal(t, profile.Unset, h.st.Profile.Nickname)

	h.choose(ActionAck, "")
	h.text("1001")
	h.text("Milana")
	h.choose(ActionRole, profile.RoleStudent)
	h.text("7Б")
	h.text("Qr7tZx9")
	h.text("m@example.com")

	assert.Equal(t, session.StageComplete, h.st.Stage)
	assert.Empty(t, h.sync.registered)
	require.Len(t, h.sync.updated, 1)
	assert.Equal(t, shared.PlatformID("87654321"), h.st.Profile.PlatformID)
}

// ═══════════════════════════════════════════════════════════════════════════
// Restart and protocol
// ═══════════════════════════════════════════════════════════════════════════

func completeProfile() profile.Profile {
	p := profile.New(userID)
	p.PlatformID = "123456789"
	p.Nickname = "Milana"
	p.Password = "Qr7tZx9"
	p.Email = "m@example.com"
	p.Role = profile.RoleStudent
	p.MainSchoolCode, p.MainSchoolName = "1001", "Школа №1"
	p.ClassNumber, p.ClassLetter = "7", "Б"
	return p
}

func TestRestart_CompleteProfileLandsInComplete(t *testing.T) {
	h := newHarness(t, nil)
	h.sync.fetched, h.sync.found = completeProfile(), true

	r := h.start()
	assert.Equal(t, session.StageComplete, h.st.Stage)
	assert.Contains(t, r.Instruction.Text, "Milana")
	assert.Contains(t, r.Instruction.Text, "123456789")
	assert.Equal(t, completeMenu, r.Instruction.Menu)
}

func TestRestart_FetchFailureStaysInNoSession(t *testing.T) {
	h := newHarness(t, nil)
	h.sync.fetchErr = shared.NewDomainError("profilesync", "Fetch", shared.ErrSyncFailure, "down")

	r := h.start()
	assert.ErrorIs(t, r.Err, shared.ErrSyncFailure)
	assert.Equal(t, session.StageNone, h.st.Stage)
	assert.Equal(t, idleMenu, r.Instruction.Menu)
}

func TestRestart_MidDialogueResets(t *testing.T) {
	h := newHarness(t, nil)
	h.start()
	h.choose(ActionAck, "")
	h.text("1001")

	h.start()
	assert.Equal(t, session.StageAwaitingAcknowledgement, h.st.Stage)
	assert.Equal(t, int64(2), h.st.Generation)
	assert.False(t, h.st.Profile.HasMainSchool())
}

func TestChoice_StaleGenerationIsProtocolMismatch(t *testing.T) {
	h := newHarness(t, nil)
	h.start()
	before := h.st

	r := h.send(Event{Kind: KindChoice, Action: ActionAck, Generation: before.Generation - 1})
	assert.ErrorIs(t, r.Err, shared.ErrProtocolMismatch)
	assert.Equal(t, session.StageAwaitingAcknowledgement, h.st.Stage)
	assert.Contains(t, r.Instruction.Text, msgStaleButton)
	assert.Empty(t, r.Instruction.DeleteMessageIDs)
}

func TestChoice_WrongStageIsProtocolMismatch(t *testing.T) {
	h := newHarness(t, nil)
	h.start()

	r := h.choose(ActionRole, profile.RoleStudent)
	assert.ErrorIs(t, r.Err, shared.ErrProtocolMismatch)

	h.choose(ActionAck, "")
	h.text("1001")
	h.text("Milana")
	r = h.choose(ActionRole, "director")
	assert.ErrorIs(t, r.Err, shared.ErrProtocolMismatch)
	assert.Equal(t, session.StageAwaitingRole, h.st.Stage)
}

func TestHandle_DoesNotMutateInput(t *testing.T) {
	h := newHarness(t, nil)
	h.start()
	h.choose(ActionAck, "")
	before := h.st.Clone()

	h.e.Handle(context.Background(), before, Event{Kind: KindText, Text: "1001"})
	assert.Equal(t, session.StageAwaitingSchoolCode, before.Stage)
	assert.False(t, before.Profile.HasMainSchool())
}

func TestHandle_CleansUpPreviousPrompt(t *testing.T) {
	h := newHarness(t, nil)
	h.start()
	h.st.Housekeeping = session.Housekeeping{LastPromptID: 10, LastStickerID: 9}

	r := h.choose(ActionAck, "")
	assert.Equal(t, []int{9, 10}, r.Instruction.DeleteMessageIDs)
	assert.True(t, r.Instruction.Track)
	assert.Empty(t, h.st.Housekeeping.IDs())
}

func TestHandle_CleanupFlagOff(t *testing.T) {
	h := newHarness(t, flags{FeatureMessageCleanup: false})
	h.start()
	h.st.Housekeeping = session.Housekeeping{LastPromptID: 10}

	r := h.choose(ActionAck, "")
	assert.Empty(t, r.Instruction.DeleteMessageIDs)
}

// ═══════════════════════════════════════════════════════════════════════════
// Edit sub-graph
// ═══════════════════════════════════════════════════════════════════════════

func TestEdit_NicknameReturnsToMenu(t *testing.T) {
	h := newHarness(t, nil)
	h.registerStandard()

	r := h.text(LabelEdit)
	assert.Equal(t, session.StageEditMenu, h.st.Stage)
	assert.True(t, hasOption(r.Instruction, ActionEdit, "class"))
	assert.False(t, hasOption(r.Instruction, ActionEdit, "course"))

	r = h.choose(ActionEdit, "nickname")
	assert.Equal(t, session.StageEditingNickname, h.st.Stage)
	assert.True(t, hasOption(r.Instruction, ActionCancel, ""))

	r = h.text("Durakov")
	assert.ErrorIs(t, r.Err, shared.ErrInputRejected)
	assert.Equal(t, session.StageEditingNickname, h.st.Stage)

	r = h.text("Milena")
	require.NoError(t, r.Err)
	assert.Equal(t, session.StageEditMenu, h.st.Stage)
	assert.Contains(t, r.Instruction.Text, msgSaved)
	assert.Equal(t, "Milena", h.st.Profile.Nickname)
	require.Len(t, h.sync.updated, 1)
	assert.Equal(t, shared.PlatformID("123456789"), h.sync.updated[0].PlatformID)
	assert.Equal(t, shared.EventProfileUpdated, h.pub.types()[1])
}

func TestEdit_CancelRestoresConfirmed(t *testing.T) {
	h := newHarness(t, nil)
	h.registerStandard()
	h.text(LabelEdit)
	h.choose(ActionEdit, "main_school")

	h.text("3001")
	assert.Equal(t, session.StageEditingSpecialization, h.st.Stage)
	assert.Equal(t, "3001", h.st.Profile.MainSchoolCode)

	r := h.choose(ActionCancel, "")
	assert.Equal(t, session.StageEditMenu, h.st.Stage)
	assert.Contains(t, r.Instruction.Text, msgEditCancelled)
	assert.Equal(t, "1001", h.st.Profile.MainSchoolCode)
	assert.Equal(t, profile.RoleStudent, h.st.Profile.Role)
	assert.Empty(t, h.sync.updated)
}

func TestEdit_MainSchoolToMentorQueuesSpecialization(t *testing.T) {
	h := newHarness(t, nil)
	h.registerStandard()
	h.text(LabelEdit)
	h.choose(ActionEdit, "main_school")

	r := h.text("2001")
	assert.ErrorIs(t, r.Err, shared.ErrInputRejected)

	r = h.text("1001")
	assert.ErrorIs(t, r.Err, shared.ErrInputRejected)
	assert.Contains(t, r.Instruction.Text, msgSchoolDuplicate)

	h.text("3001")
	h.choose(ActionSpec, "math")

	assert.Equal(t, session.StageEditMenu, h.st.Stage)
	p := h.st.Profile
	assert.Equal(t, profile.RoleMentor, p.Role)
	assert.Equal(t, "Математика", p.Specialization)
	assert.Empty(t, p.ClassLabel())
	assert.True(t, validation.IsComplete(p, testDirectory(t)))
}

func TestEdit_StandardToStandardAsksClassAgain(t *testing.T) {
	h := newHarness(t, nil)
	h.registerStandard()
	h.text(LabelEdit)
	h.choose(ActionEdit, "main_school")

	h.text("1002")
	assert.Equal(t, session.StageEditingClass, h.st.Stage)
	h.text("8В")
	assert.Equal(t, session.StageEditMenu, h.st.Stage)
	assert.Equal(t, "8В", h.st.Profile.ClassLabel())
}

func TestEdit_BackReturnsToComplete(t *testing.T) {
	h := newHarness(t, nil)
	h.registerStandard()
	h.text(LabelEdit)

	r := h.choose(ActionBack, "")
	assert.Equal(t, session.StageComplete, h.st.Stage)
	assert.Equal(t, completeMenu, r.Instruction.Menu)
}

func TestEdit_UnknownFieldIsMismatch(t *testing.T) {
	h := newHarness(t, nil)
	h.registerStandard()
	h.text(LabelEdit)

	r := h.choose(ActionEdit, "course")
	assert.ErrorIs(t, r.Err, shared.ErrProtocolMismatch)
	assert.Equal(t, session.StageEditMenu, h.st.Stage)
}

// ═══════════════════════════════════════════════════════════════════════════
// Additional school
// ═══════════════════════════════════════════════════════════════════════════

func TestAdditional_SpecializedSchool(t *testing.T) {
	h := newHarness(t, nil)
	h.registerStandard()

	h.text(LabelAddSchool)
	assert.Equal(t, session.StageAwaitingAdditionalSchoolCode, h.st.Stage)

	r := h.text("1002")
	assert.ErrorIs(t, r.Err, shared.ErrInputRejected)
	assert.Contains(t, r.Instruction.Text, msgSchoolRegularBusy)

	r = h.text("1001")
	assert.Contains(t, r.Instruction.Text, msgSchoolDuplicate)

	r = h.text("2001")
	assert.Equal(t, session.StageAwaitingSpecialization, h.st.Stage)
	assert.True(t, hasOption(r.Instruction, ActionSpec, "ops"))

	r = h.choose(ActionSpec, "ops")
	assert.Equal(t, session.StageAwaitingCourse, h.st.Stage)
	assert.True(t, hasOption(r.Instruction, ActionCourse, "3"))

	r = h.choose(ActionCourse, "3")
	require.NoError(t, r.Err)
	assert.Equal(t, session.StageComplete, h.st.Stage)
	assert.Contains(t, r.Instruction.Text, "IT-колледж")

	p := h.st.Profile
	assert.Equal(t, "2001", p.AdditionalSchoolCode)
	assert.Equal(t, "Администрирование", p.Specialization)
	assert.Equal(t, "3", p.Course)
	assert.Equal(t, "Qr7tZx9", p.Password)
	assert.True(t, validation.IsComplete(p, testDirectory(t)))
	assert.Len(t, h.sync.updated, 1)

	r = h.text(LabelAddSchool)
	assert.Contains(t, r.Instruction.Text, msgAdditionalExists)
}

func TestAdditional_CancelRestores(t *testing.T) {
	h := newHarness(t, nil)
	h.registerStandard()
	h.text(LabelAddSchool)
	h.text("2001")

	r := h.text(LabelCancel)
	assert.Equal(t, session.StageComplete, h.st.Stage)
	assert.Contains(t, r.Instruction.Text, msgAddCancelled)
	assert.False(t, h.st.Profile.HasAdditionalSchool())
}

func TestAdditional_FeatureOff(t *testing.T) {
	h := newHarness(t, flags{FeatureAdditionalSchool: false})
	h.registerStandard()

	r := h.text(LabelAddSchool)
	assert.Equal(t, session.StageComplete, h.st.Stage)
	assert.Contains(t, r.Instruction.Text, msgFeatureOff)
}

// ═══════════════════════════════════════════════════════════════════════════
// Support desk
// ═══════════════════════════════════════════════════════════════════════════

func TestSupport_FreeTextIsForwarded(t *testing.T) {
	h := newHarness(t, nil)

	r := h.text("Не могу войти")
	assert.NoError(t, r.Err)
	assert.Equal(t, "s", r.Instruction.StickerID)
	assert.Equal(t, msgSupportSent, r.Instruction.Text)
	require.Len(t, h.pub.events, 1)

	ev := h.pub.events[0].(shared.SupportMessageReceivedEvent)
	assert.Equal(t, "Не могу войти", ev.Text)
	assert.Equal(t, int64(userID), ev.TelegramID)
}

func TestSupport_RelayOff(t *testing.T) {
	h := newHarness(t, flags{FeatureSupportRelay: false})

	r := h.text("Не могу войти")
	assert.Equal(t, msgFeatureOff, r.Instruction.Text)
	assert.Empty(t, h.pub.events)
}

func TestSupport_FAQKeepsStage(t *testing.T) {
	h := newHarness(t, nil)
	h.start()
	h.choose(ActionAck, "")
	h.st.Housekeeping = session.Housekeeping{LastPromptID: 5}

	r := h.text(LabelDouble)
	assert.Equal(t, msgDouble, r.Instruction.Text)
	assert.Equal(t, session.StageAwaitingSchoolCode, h.st.Stage)
	assert.Empty(t, r.Instruction.DeleteMessageIDs)
	assert.Equal(t, 5, h.st.Housekeeping.LastPromptID)
}

func TestDeletion_FromNoSession(t *testing.T) {
	h := newHarness(t, nil)

	r := h.text(LabelDelete)
	assert.Equal(t, session.StageAwaitingDeletionID, h.st.Stage)
	assert.Equal(t, cancelMenu, r.Instruction.Menu)

	r = h.text("abc")
	assert.Contains(t, r.Instruction.Text, validation.ReasonPlatformIDDigits.Message())
	assert.Equal(t, "x", r.Instruction.StickerID)

	r = h.text("1234567")
	assert.Contains(t, r.Instruction.Text, validation.ReasonPlatformIDShort.Message())
	assert.Equal(t, session.StageAwaitingDeletionID, h.st.Stage)

	r = h.text("12345678")
	assert.NoError(t, r.Err)
	assert.Equal(t, session.StageNone, h.st.Stage)
	assert.Equal(t, msgDeletionDone, r.Instruction.Text)
	assert.Equal(t, idleMenu, r.Instruction.Menu)

	require.Len(t, h.pub.events, 1)
	ev := h.pub.events[0].(shared.AccountDeletionRequestedEvent)
	assert.Equal(t, "12345678", ev.PlatformID)
	assert.Equal(t, "Милана", ev.UserName)
}

func TestDeletion_CancelFromEditMenu(t *testing.T) {
	h := newHarness(t, nil)
	h.registerStandard()
	h.text(LabelEdit)

	h.text(LabelDelete)
	assert.Equal(t, session.StageAwaitingDeletionID, h.st.Stage)

	r := h.text(LabelCancel)
	assert.Equal(t, session.StageEditMenu, h.st.Stage)
	assert.Equal(t, msgDeletionCancel, r.Instruction.Notice)
	assert.Equal(t, completeMenu, r.Instruction.Menu)
	assert.True(t, hasOption(r.Instruction, ActionEdit, "nickname"))
}

func TestIdleLabels_NeedRegistration(t *testing.T) {
	h := newHarness(t, nil)

	for _, label := range []string{LabelProfile, LabelEdit, LabelAddSchool} {
		r := h.text(label)
		assert.Equal(t, msgNeedStart, r.Instruction.Text, label)
		assert.Equal(t, session.StageNone, h.st.Stage)
	}
	assert.Empty(t, h.pub.events)
}

func TestCancel_IdleIsIgnored(t *testing.T) {
	h := newHarness(t, nil)
	r := h.text(LabelCancel)
	assert.True(t, r.Instruction.IsEmpty())
	assert.NoError(t, r.Err)
}

func TestRegistration_MenuLabelsAreNotFieldValues(t *testing.T) {
	h := newHarness(t, nil)
	h.start()
	h.choose(ActionAck, "")
	h.text("1001")

	for _, label := range []string{LabelProfile, LabelDelete, LabelAddSchool, LabelEdit} {
		r := h.text(label)
		assert.ErrorIs(t, r.Err, shared.ErrInputRejected, label)
		assert.Contains(t, r.Instruction.Text, msgFinishStep, label)
		assert.Equal(t, session.StageAwaitingNickname, h.st.Stage, label)
		assert.False(t, profile.IsSet(h.st.Profile.Nickname), label)
	}

	h.text("Milana")
	assert.Equal(t, session.StageAwaitingRole, h.st.Stage)
	assert.Equal(t, "Milana", h.st.Profile.Nickname)
	assert.Empty(t, h.pub.events)
}

func TestEdit_MenuLabelIsNotNickname(t *testing.T) {
	h := newHarness(t, nil)
	h.registerStandard()
	h.text(LabelEdit)
	h.choose(ActionEdit, "nickname")
	require.Equal(t, session.StageEditingNickname, h.st.Stage)

	r := h.text(LabelProfile)
	assert.ErrorIs(t, r.Err, shared.ErrInputRejected)
	assert.Equal(t, session.StageEditingNickname, h.st.Stage)
	assert.Equal(t, "Milana", h.st.Profile.Nickname)
	assert.Empty(t, h.sync.updated)
}

func TestAdditional_RetryAfterSyncFailureAcceptsSameCode(t *testing.T) {
	h := newHarness(t, nil)
	h.start()
	h.choose(ActionAck, "")
	h.text("3001")
	h.text("Milana")
	h.choose(ActionSpec, "math")
	h.text("Qr7tZx9")
	require.NoError(t, h.choose(ActionNoEmail, "").Err)

	h.text(LabelAddSchool)
	h.sync.saveErr = errors.New("503")

	r := h.text("1001")
	assert.ErrorIs(t, r.Err, shared.ErrSyncFailure)
	assert.Equal(t, session.StageAwaitingAdditionalSchoolCode, h.st.Stage)
	assert.True(t, h.st.AwaitingRetry)

	h.sync.saveErr = nil
	r = h.text("1001")
	require.NoError(t, r.Err)
	assert.NotContains(t, r.Instruction.Text, msgSchoolDuplicate)
	assert.Equal(t, session.StageComplete, h.st.Stage)
	assert.Equal(t, "1001", h.st.Profile.AdditionalSchoolCode)
	assert.False(t, h.st.AwaitingRetry)
	assert.Len(t, h.sync.updated, 1)
}

func TestAdditional_CancelAfterSyncFailureRestores(t *testing.T) {
	h := newHarness(t, nil)
	h.registerStandard()
	h.text(LabelAddSchool)
	h.sync.saveErr = errors.New("503")

	h.text("3001")
	h.choose(ActionSpec, "math")
	require.True(t, h.st.AwaitingRetry)

	r := h.text(LabelCancel)
	assert.Equal(t, session.StageComplete, h.st.Stage)
	assert.Contains(t, r.Instruction.Text, msgAddCancelled)
	assert.False(t, h.st.Profile.HasAdditionalSchool())
}

func TestDeletion_FAQLeavesDeletion(t *testing.T) {
	h := newHarness(t, nil)
	h.text(LabelDelete)
	require.Equal(t, session.StageAwaitingDeletionID, h.st.Stage)

	r := h.text(LabelAbout)
	assert.Equal(t, session.StageNone, h.st.Stage)
	assert.Contains(t, r.Instruction.Text, msgAbout)
	assert.Equal(t, idleMenu, r.Instruction.Menu)

	r = h.text("12345678")
	assert.Equal(t, msgSupportSent, r.Instruction.Text)
	for _, ev := range h.pub.events {
		_, isDeletion := ev.(shared.AccountDeletionRequestedEvent)
		assert.False(t, isDeletion)
	}
}

func TestDeletion_FAQFromEditMenuReturnsToMenu(t *testing.T) {
	h := newHarness(t, nil)
	h.registerStandard()
	h.text(LabelEdit)
	h.text(LabelDelete)

	r := h.text(LabelDouble)
	assert.Equal(t, session.StageEditMenu, h.st.Stage)
	assert.Equal(t, msgDouble, r.Instruction.Notice)
	assert.Equal(t, completeMenu, r.Instruction.Menu)
}
