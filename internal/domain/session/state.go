// Package session contains the per-user SessionState: collected profile
// fields, the dialogue stage and transient housekeeping. A state is owned by
// exactly one user's dialogue and is checkpointed by the caller after each event.
package session

import (
	"time"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/profile"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/shared"
)

// Housekeeping remembers the last engine-sent messages so the transport can
// clean them up before the next prompt.
type Housekeeping struct {
	LastPromptID  int `json:"last_prompt_id,omitempty"`
	LastStickerID int `json:"last_sticker_id,omitempty"`
}

// IDs returns the non-zero message ids.
func (h Housekeeping) IDs() []int {
	var ids []int
	if h.LastStickerID != 0 {
		ids = append(ids, h.LastStickerID)
	}
	if h.LastPromptID != 0 {
		ids = append(ids, h.LastPromptID)
	}
	return ids
}

// State is the SessionState of one Telegram user.
type State struct {
	TelegramID int64           `json:"telegram_id"`
	Stage      Stage           `json:"stage"`
	Flow       Flow            `json:"flow,omitempty"`
	Profile    profile.Profile `json:"profile"`

	// Confirmed is the profile as last accepted by the store, restored on cancel.
	Confirmed *profile.Profile `json:"confirmed,omitempty"`

	// Pending are the stages still to visit in the current flow.
	Pending []Stage `json:"pending,omitempty"`

	// ReturnStage is where a sub-flow goes after it finishes or is cancelled.
	ReturnStage Stage `json:"return_stage,omitempty"`

	// Generation increments on every /start; buttons carry it.
	Generation int64 `json:"generation"`

	// AwaitingRetry is set after a failed sync; the stage's input is kept.
	AwaitingRetry bool `json:"awaiting_retry,omitempty"`

	Housekeeping Housekeeping `json:"housekeeping"`
	AdminRing    AdminRing    `json:"admin_ring"`

	// Version is the optimistic-lock counter maintained by the Repository.
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an empty state in StageNone.
func New(telegramID int64) State {
	return State{
		TelegramID: telegramID,
		Stage:      StageNone,
		Profile:    profile.New(telegramID),
	}
}

// Clone returns a deep copy; the engine never mutates its input state.
func (s State) Clone() State {
	out := s
	if s.Confirmed != nil {
		c := *s.Confirmed
		out.Confirmed = &c
	}
	out.Pending = append([]Stage(nil), s.Pending...)
	out.AdminRing.Entries = append([]RingEntry(nil), s.AdminRing.Entries...)
	return out
}

// Reset clears the dialogue and the collected profile. The platform id and
// the admin ring survive: the id is never regenerated once assigned.
func (s *State) Reset() {
	id := s.Profile.PlatformID
	s.Profile = profile.New(s.TelegramID)
	s.Profile.PlatformID = id
	s.Stage = StageNone
	s.EndFlow()
}

// EndFlow drops the sub-flow bookkeeping but keeps the profile.
func (s *State) EndFlow() {
	s.Flow = FlowNone
	s.Confirmed = nil
	s.Pending = nil
	s.ReturnStage = ""
	s.AwaitingRetry = false
}

// BeginFlow snapshots the current profile so Cancel can restore it.
func (s *State) BeginFlow(f Flow, returnTo Stage, pending ...Stage) {
	snapshot := s.Profile
	s.Flow = f
	s.Confirmed = &snapshot
	s.ReturnStage = returnTo
	s.Pending = append([]Stage(nil), pending...)
	s.AwaitingRetry = false
}

// Cancel restores the confirmed profile and returns to ReturnStage.
func (s *State) Cancel() {
	if s.Confirmed != nil {
		s.Profile = *s.Confirmed
	}
	ret := s.ReturnStage
	if ret == "" {
		ret = StageNone
	}
	s.EndFlow()
	s.Stage = ret
}

// Advance pops the next pending stage. ok is false when the flow is exhausted.
func (s *State) Advance() (Stage, bool) {
	if len(s.Pending) == 0 {
		return "", false
	}
	next := s.Pending[0]
	s.Pending = s.Pending[1:]
	s.Stage = next
	return next, true
}

// Enqueue puts stages in front of the pending queue.
func (s *State) Enqueue(stages ...Stage) {
	s.Pending = append(append([]Stage(nil), stages...), s.Pending...)
}

// PlatformID is a convenience accessor.
func (s State) PlatformID() shared.PlatformID {
	return s.Profile.PlatformID
}
