package chat

import (
	"testing"

	"chatd/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUser(t *testing.T, r *Registry, email string) *User {
	t.Helper()
	return r.AddUser(email)
}

func TestSetInitialPasswordThenCheck(t *testing.T) {
	r := newTestRegistry(t)
	u := newTestUser(t, r, "a@b.co")

	require.NoError(t, u.SetInitialPassword("s3cret"))
	assert.True(t, u.CheckPassword("s3cret"))
	assert.False(t, u.CheckPassword("wrong"))
}

func TestSetInitialPasswordTwiceFails(t *testing.T) {
	r := newTestRegistry(t)
	u := newTestUser(t, r, "a@b.co")
	require.NoError(t, u.SetInitialPassword("s3cret"))
	assert.ErrorIs(t, u.SetInitialPassword("other"), errs.ErrPasswordAlreadySet)
}

func TestChangePasswordRequiresOldPassword(t *testing.T) {
	r := newTestRegistry(t)
	u := newTestUser(t, r, "a@b.co")
	require.NoError(t, u.SetInitialPassword("s3cret"))

	assert.ErrorIs(t, u.ChangePassword("wrong", "newpass"), errs.ErrPasswordMismatch)
	require.NoError(t, u.ChangePassword("s3cret", "newpass"))
	assert.True(t, u.CheckPassword("newpass"))
	assert.False(t, u.CheckPassword("s3cret"))
}

func TestNicknameFallsBackToEmail(t *testing.T) {
	r := newTestRegistry(t)
	u := newTestUser(t, r, "a@b.co")
	assert.Equal(t, "a@b.co", u.Nickname())
	u.SetProfile("Alice", "http://face", "en")
	assert.Equal(t, "Alice", u.Nickname())
}

func TestFriendRequestAcceptCreatesPrivateRoomAndPurgesInbox(t *testing.T) {
	r := newTestRegistry(t)
	a := newTestUser(t, r, "a@b.co")
	b := newTestUser(t, r, "b@b.co")

	require.NoError(t, a.RequestFriend(b.ID()))
	assert.Contains(t, a.friendInbox, b.ID())
	assert.Contains(t, b.friendInbox, a.ID())

	require.NoError(t, b.AcceptFriend(a.ID()))

	assert.True(t, a.IsFriend(b.ID()))
	assert.True(t, b.IsFriend(a.ID()))
	assert.NotContains(t, a.friendInbox, b.ID())
	assert.NotContains(t, b.friendInbox, a.ID())

	_, err := r.PrivateRoomID(a.ID(), b.ID())
	assert.NoError(t, err)
}

func TestFriendRequestRejectPurgesInboxBothSides(t *testing.T) {
	r := newTestRegistry(t)
	a := newTestUser(t, r, "a@b.co")
	b := newTestUser(t, r, "b@b.co")

	require.NoError(t, a.RequestFriend(b.ID()))
	require.NoError(t, b.RejectFriend(a.ID()))

	assert.NotContains(t, a.friendInbox, b.ID())
	assert.NotContains(t, b.friendInbox, a.ID())
	assert.False(t, a.IsFriend(b.ID()))
}

func TestRequestFriendRejectsSelfAndDuplicate(t *testing.T) {
	r := newTestRegistry(t)
	a := newTestUser(t, r, "a@b.co")
	b := newTestUser(t, r, "b@b.co")

	assert.ErrorIs(t, a.RequestFriend(a.ID()), errs.ErrInvalidVerification)
	require.NoError(t, a.RequestFriend(b.ID()))
	assert.ErrorIs(t, a.RequestFriend(b.ID()), errs.ErrVerificationExists)
}

func TestRemoveFriendIsSymmetric(t *testing.T) {
	r := newTestRegistry(t)
	a := newTestUser(t, r, "a@b.co")
	b := newTestUser(t, r, "b@b.co")
	require.NoError(t, a.RequestFriend(b.ID()))
	require.NoError(t, b.AcceptFriend(a.ID()))

	require.NoError(t, a.RemoveFriend(b.ID()))
	assert.False(t, a.IsFriend(b.ID()))
	assert.False(t, b.IsFriend(a.ID()))
}

func TestGroupJoinRequestAcceptAddsMembership(t *testing.T) {
	r := newTestRegistry(t)
	admin := newTestUser(t, r, "admin@b.co")
	applicant := newTestUser(t, r, "bob@b.co")

	group := admin.CreateGroup()
	require.NoError(t, applicant.RequestJoinGroup(group))

	room, err := r.GetGroupRoom(group)
	require.NoError(t, err)
	assert.False(t, room.IsMember(applicant.ID()))

	require.NoError(t, admin.AcceptJoinGroup(group, applicant.ID()))
	assert.True(t, room.IsMember(applicant.ID()))
	assert.True(t, applicant.IsInGroup(group))
	assert.NotContains(t, applicant.groupInbox, group)
}

func TestGroupJoinRequestRejectedByNonAdminFails(t *testing.T) {
	r := newTestRegistry(t)
	admin := newTestUser(t, r, "admin@b.co")
	other := newTestUser(t, r, "other@b.co")
	applicant := newTestUser(t, r, "bob@b.co")

	group := admin.CreateGroup()
	require.NoError(t, applicant.RequestJoinGroup(group))
	assert.ErrorIs(t, other.AcceptJoinGroup(group, applicant.ID()), errs.ErrNoPermission)
}

func TestRemoveGroupOnlyByAdmin(t *testing.T) {
	r := newTestRegistry(t)
	admin := newTestUser(t, r, "admin@b.co")
	other := newTestUser(t, r, "other@b.co")

	group := admin.CreateGroup()
	assert.ErrorIs(t, other.RemoveGroup(group), errs.ErrNoPermission)

	require.NoError(t, admin.RemoveGroup(group))
	_, err := r.GetGroupRoom(group)
	assert.ErrorIs(t, err, errs.ErrGroupRoomNotFound)
}

func TestLeaveGroupForbidsAdmin(t *testing.T) {
	r := newTestRegistry(t)
	admin := newTestUser(t, r, "admin@b.co")
	applicant := newTestUser(t, r, "bob@b.co")

	group := admin.CreateGroup()
	require.NoError(t, applicant.RequestJoinGroup(group))
	require.NoError(t, admin.AcceptJoinGroup(group, applicant.ID()))

	assert.ErrorIs(t, admin.LeaveGroup(group), errs.ErrNoPermission)
	require.NoError(t, applicant.LeaveGroup(group))
	assert.False(t, applicant.IsInGroup(group))
}

func TestConnectionCountTracksBindAndRemove(t *testing.T) {
	r := newTestRegistry(t)
	u := newTestUser(t, r, "a@b.co")
	c := &Connection{}
	require.NoError(t, r.RegisterConnection(c))
	require.NoError(t, r.BindConnection(c, u.ID(), DeviceUnknown))
	assert.Equal(t, 1, u.ConnectionCount())

	require.NoError(t, r.RemoveConnection(c))
	assert.Equal(t, 0, u.ConnectionCount())
}
