package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesKindAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError("profilestore", "Register", ErrSyncFailure, "register failed", cause)

	assert.ErrorIs(t, err, ErrSyncFailure)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrInputRejected)
	assert.Equal(t, "profilestore.Register: register failed: connection refused", err.Error())
}

func TestDomainError_WrappedStillMatches(t *testing.T) {
	err := fmt.Errorf("handle: %w", NewDomainError("conversation", "Choice", ErrProtocolMismatch, "stale"))

	assert.ErrorIs(t, err, ErrProtocolMismatch)
	assert.Equal(t, "protocol_mismatch", Kind(err))
}

func TestKind(t *testing.T) {
	assert.Equal(t, "ok", Kind(nil))
	assert.Equal(t, "input_rejected", Kind(ErrInputRejected))
	assert.Equal(t, "reference_not_found", Kind(ErrReferenceNotFound))
	assert.Equal(t, "sync_failure", Kind(ErrSyncFailure))
	assert.Equal(t, "internal", Kind(errors.New("other")))
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(ErrInputRejected))
	assert.True(t, IsRecoverable(NewDomainError("x", "y", ErrSyncFailure, "z")))
	assert.False(t, IsRecoverable(ErrVersionConflict))
}
