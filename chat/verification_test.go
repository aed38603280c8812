package chat

import (
	"testing"

	"chatd/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFriendVerificationLifecycle(t *testing.T) {
	v := NewVerificationManager()
	require.NoError(t, v.ApplyFriend(1, 2))
	assert.True(t, v.HasFriendVerification(1, 2))

	_, err := v.IsFriendVerified(1, 2)
	require.NoError(t, err)

	require.NoError(t, v.AcceptFriend(1, 2))
	accepted, err := v.IsFriendVerified(1, 2)
	require.NoError(t, err)
	assert.True(t, accepted)

	v.RemoveFriendVerification(1, 2)
	assert.False(t, v.HasFriendVerification(1, 2))
}

func TestApplyFriendRejectsSelf(t *testing.T) {
	v := NewVerificationManager()
	assert.ErrorIs(t, v.ApplyFriend(1, 1), errs.ErrInvalidVerification)
}

func TestApplyFriendRejectsDuplicate(t *testing.T) {
	v := NewVerificationManager()
	require.NoError(t, v.ApplyFriend(1, 2))
	assert.ErrorIs(t, v.ApplyFriend(1, 2), errs.ErrVerificationExists)
}

func TestAcceptFriendRequiresPendingRecord(t *testing.T) {
	v := NewVerificationManager()
	assert.ErrorIs(t, v.AcceptFriend(1, 2), errs.ErrVerificationNotFound)
}

func TestGroupVerificationLifecycle(t *testing.T) {
	v := NewVerificationManager()
	require.NoError(t, v.ApplyGroup(1, 100))
	assert.True(t, v.HasGroupVerification(1, 100))
	require.NoError(t, v.AcceptGroup(1, 100))
	accepted, err := v.IsGroupVerified(1, 100)
	require.NoError(t, err)
	assert.True(t, accepted)
}

func TestRejectGroupRemovesRecord(t *testing.T) {
	v := NewVerificationManager()
	require.NoError(t, v.ApplyGroup(1, 100))
	v.RejectGroup(1, 100)
	assert.False(t, v.HasGroupVerification(1, 100))
}
