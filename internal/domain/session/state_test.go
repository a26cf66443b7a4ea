package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/profile"
)

func TestState_FlowLifecycle(t *testing.T) {
	st := New(5)
	st.Stage = StageComplete
	st.Profile.Nickname = "Milana"

	st.BeginFlow(FlowEdit, StageEditMenu, StageEditingNickname)
	next, ok := st.Advance()
	require.True(t, ok)
	assert.Equal(t, StageEditingNickname, next)

	st.Profile.Nickname = "Other"
	st.Cancel()

	assert.Equal(t, StageEditMenu, st.Stage)
	assert.Equal(t, "Milana", st.Profile.Nickname)
	assert.Nil(t, st.Confirmed)
	assert.Empty(t, st.Pending)

	_, ok = st.Advance()
	assert.False(t, ok)
}

func TestState_Enqueue(t *testing.T) {
	st := New(1)
	st.Pending = []Stage{StageAwaitingPassword}
	st.Enqueue(StageAwaitingRole, StageAwaitingClass)

	assert.Equal(t, []Stage{StageAwaitingRole, StageAwaitingClass, StageAwaitingPassword}, st.Pending)
}

func TestState_ResetKeepsPlatformIDAndRing(t *testing.T) {
	st := New(9)
	st.Profile.PlatformID = "12345678"
	st.Profile.Nickname = "Milana"
	st.AdminRing.Push(RingEntry{MessageID: 1, UserID: 2})
	st.BeginFlow(FlowRegistration, StageNone, StageAwaitingNickname)

	st.Reset()

	assert.Equal(t, StageNone, st.Stage)
	assert.Equal(t, "12345678", st.Profile.PlatformID.String())
	assert.Equal(t, profile.Unset, st.Profile.Nickname)
	assert.Equal(t, 1, st.AdminRing.Len())
	assert.Equal(t, FlowNone, st.Flow)
}

func TestState_CloneIsDeep(t *testing.T) {
	st := New(1)
	st.BeginFlow(FlowEdit, StageEditMenu, StageEditingClass)
	st.AdminRing.Push(RingEntry{MessageID: 3})

	c := st.Clone()
	c.Confirmed.Nickname = "changed"
	c.Pending[0] = StageEditingCourse
	c.AdminRing.Entries[0].MessageID = 99

	assert.Equal(t, profile.Unset, st.Confirmed.Nickname)
	assert.Equal(t, StageEditingClass, st.Pending[0])
	assert.Equal(t, 3, st.AdminRing.Entries[0].MessageID)
}

func TestStage_Predicates(t *testing.T) {
	assert.True(t, StageNone.IsIdle())
	assert.True(t, StageComplete.IsIdle())
	assert.False(t, StageEditMenu.IsIdle())
	assert.True(t, StageAwaitingCourse.IsRegistration())
	assert.True(t, StageEditingMainSchool.IsEditing())
	assert.False(t, StageAwaitingDeletionID.IsEditing())
}

func TestAdminRing(t *testing.T) {
	var r AdminRing
	_, ok := r.Pop()
	assert.False(t, ok)

	for i := 1; i <= AdminRingCapacity+4; i++ {
		r.Push(RingEntry{MessageID: i, At: time.Unix(int64(i), 0)})
	}
	assert.Equal(t, AdminRingCapacity, r.Len())
	assert.Equal(t, 5, r.Entries[0].MessageID)

	e, ok := r.Pop()
	require.True(t, ok)
	assert.Equal(t, AdminRingCapacity+4, e.MessageID)

	top, _ := r.Peek()
	assert.Equal(t, AdminRingCapacity+3, top.MessageID)

	assert.True(t, r.Remove(6))
	assert.False(t, r.Remove(6))
	assert.Equal(t, AdminRingCapacity-2, r.Len())
	assert.Equal(t, 5, r.Entries[0].MessageID)
	assert.Equal(t, 7, r.Entries[1].MessageID)
}

func TestHousekeeping_IDs(t *testing.T) {
	assert.Empty(t, Housekeeping{}.IDs())
	assert.Equal(t, []int{7, 8}, Housekeeping{LastStickerID: 7, LastPromptID: 8}.IDs())
}

func TestJSONCodec(t *testing.T) {
	st := New(11)
	st.Stage = StageAwaitingCourse
	st.Profile.Nickname = "Milana"
	st.Pending = []Stage{StageAwaitingPassword}

	data, err := JSONCodec{}.Marshal(st)
	require.NoError(t, err)

	got, err := JSONCodec{}.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, st.Stage, got.Stage)
	assert.Equal(t, st.Pending, got.Pending)
	assert.Equal(t, "Milana", got.Profile.Nickname)

	_, err = JSONCodec{}.Unmarshal([]byte("{"))
	assert.Error(t, err)
}
