package chat

import (
	"sync"
	"time"

	"chatd/tools/errs"
	"chatd/tools/security"
)

// User holds profile and credentials, friend/group relations, the
// verification inboxes, and the set of bound connections (§3/§4.7). It
// keeps a back-reference to its owning Registry so the friend/group
// lifecycle methods can create private rooms, look up other users, and
// consult the shared VerificationManager.
type User struct {
	id           UserID
	registeredAt time.Time

	mu             sync.RWMutex
	email          string
	phone          string
	age            int
	profile        string
	nickname       string
	faceURL        string
	language       string
	passwordDigest string
	salt           string

	friends     map[UserID]struct{}
	groups      map[GroupID]struct{}
	friendInbox map[UserID]inboxDirection
	groupInbox  map[GroupID]map[UserID]struct{} // admin's side: group -> applicants; applicant's side: empty set marks a sent request

	connections map[*Connection]DeviceType

	reg *Registry
}

type inboxDirection int

const (
	inboxSent inboxDirection = iota
	inboxReceived
)

func newUser(id UserID, email, digest, salt string, reg *Registry) *User {
	return &User{
		id:             id,
		registeredAt:   time.Now(),
		email:          email,
		passwordDigest: digest,
		salt:           salt,
		friends:        make(map[UserID]struct{}),
		groups:         make(map[GroupID]struct{}),
		friendInbox:    make(map[UserID]inboxDirection),
		groupInbox:     make(map[GroupID]map[UserID]struct{}),
		connections:    make(map[*Connection]DeviceType),
		reg:            reg,
	}
}

func (u *User) ID() UserID { return u.id }

func (u *User) Email() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.email
}

// Nickname returns the display name used for group membership updates
// (§4.8 add_member), falling back to the full email address when unset.
func (u *User) Nickname() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.nickname != "" {
		return u.nickname
	}
	return u.email
}

func (u *User) SetProfile(nickname, faceURL, language string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.nickname = nickname
	u.faceURL = faceURL
	u.language = language
}

// --- Credentials (§4.7) ---

func (u *User) CheckPassword(plaintext string) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.passwordDigest == "" {
		return false
	}
	return security.VerifyPassword(plaintext, u.salt, u.passwordDigest)
}

func (u *User) SetInitialPassword(newPassword string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.passwordDigest != "" {
		return errs.ErrPasswordAlreadySet
	}
	salt, err := security.NewSalt(16)
	if err != nil {
		return err
	}
	u.salt = salt
	u.passwordDigest = security.HashPassword(newPassword, salt)
	return nil
}

func (u *User) ChangePassword(oldPassword, newPassword string) error {
	if !u.CheckPassword(oldPassword) {
		return errs.ErrPasswordMismatch
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.passwordDigest = security.HashPassword(newPassword, u.salt)
	return nil
}

// --- Connections (§4.7) ---

func (u *User) addOrModifyConnection(c *Connection, device DeviceType) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.connections[c] = device
	return nil
}

func (u *User) removeConnection(c *Connection) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.connections[c]; !ok {
		return errs.ErrConnectionNotFound
	}
	delete(u.connections, c)
	return nil
}

func (u *User) ModifyConnection(c *Connection, device DeviceType) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.connections[c]; !ok {
		return errs.ErrConnectionNotFound
	}
	u.connections[c] = device
	return nil
}

func (u *User) ConnectionCount() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.connections)
}

// NotifyAll writes payload to every bound connection's write lane;
// per-connection failures do not surface here since
// Connection.WriteFrame returns no error (write failures are logged by
// the connection's lane).
func (u *User) NotifyAll(payload []byte) {
	u.mu.RLock()
	conns := make([]*Connection, 0, len(u.connections))
	for c := range u.connections {
		conns = append(conns, c)
	}
	u.mu.RUnlock()

	for _, c := range conns {
		c.WriteFrame(textFrame(payload))
	}
}

// NotifyByDevice writes payload only to connections of the given device
// type.
func (u *User) NotifyByDevice(device DeviceType, payload []byte) {
	u.mu.RLock()
	conns := make([]*Connection, 0)
	for c, d := range u.connections {
		if d == device {
			conns = append(conns, c)
		}
	}
	u.mu.RUnlock()

	for _, c := range conns {
		c.WriteFrame(textFrame(payload))
	}
}

// --- Friend lifecycle (§4.7) ---

func (u *User) IsFriend(other UserID) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	_, ok := u.friends[other]
	return ok
}

func (u *User) RequestFriend(other UserID) error {
	if other == u.id {
		return errs.ErrInvalidVerification
	}
	otherUser, err := u.reg.GetUser(other)
	if err != nil {
		return err
	}
	if u.IsFriend(other) {
		return errs.ErrPrivateRoomExists
	}
	if u.reg.verification.HasFriendVerification(u.id, other) || u.reg.verification.HasFriendVerification(other, u.id) {
		return errs.ErrVerificationExists
	}
	if err := u.reg.verification.ApplyFriend(u.id, other); err != nil {
		return err
	}

	u.mu.Lock()
	u.friendInbox[other] = inboxSent
	u.mu.Unlock()

	otherUser.mu.Lock()
	otherUser.friendInbox[u.id] = inboxReceived
	otherUser.mu.Unlock()

	otherUser.NotifyAll(notificationJSON("added_friend_verification", map[string]any{"userid": u.id}))
	return nil
}

func (u *User) AcceptFriend(other UserID) error {
	otherUser, err := u.reg.GetUser(other)
	if err != nil {
		return err
	}
	if err := u.reg.verification.AcceptFriend(other, u.id); err != nil {
		return err
	}

	u.mu.Lock()
	u.friends[other] = struct{}{}
	delete(u.friendInbox, other)
	u.mu.Unlock()

	otherUser.mu.Lock()
	otherUser.friends[u.id] = struct{}{}
	delete(otherUser.friendInbox, u.id)
	otherUser.mu.Unlock()

	u.reg.verification.RemoveFriendVerification(other, u.id)
	u.reg.AddPrivateRoom(u.id, other)

	otherUser.NotifyAll(notificationJSON("added_friend", map[string]any{"userid": u.id}))
	return nil
}

func (u *User) RejectFriend(other UserID) error {
	otherUser, err := u.reg.GetUser(other)
	if err != nil {
		return err
	}
	if !u.reg.verification.HasFriendVerification(other, u.id) {
		return errs.ErrVerificationNotFound
	}
	u.reg.verification.RejectFriend(other, u.id)

	u.mu.Lock()
	delete(u.friendInbox, other)
	u.mu.Unlock()

	otherUser.mu.Lock()
	delete(otherUser.friendInbox, u.id)
	otherUser.mu.Unlock()

	otherUser.NotifyAll(notificationJSON("rejected_to_add_friend", map[string]any{"userid": u.id}))
	return nil
}

func (u *User) RemoveFriend(other UserID) error {
	if !u.IsFriend(other) {
		return errs.ErrUserNotFound
	}
	otherUser, err := u.reg.GetUser(other)
	if err != nil {
		return err
	}

	u.mu.Lock()
	delete(u.friends, other)
	u.mu.Unlock()

	otherUser.mu.Lock()
	delete(otherUser.friends, u.id)
	otherUser.mu.Unlock()

	otherUser.NotifyAll(notificationJSON("removed_friend", map[string]any{"userid": u.id}))
	return nil
}

// --- Group lifecycle (§4.7) ---

func (u *User) CreateGroup() GroupID {
	id := u.reg.AddGroupRoom(u.id)
	u.mu.Lock()
	u.groups[id] = struct{}{}
	u.mu.Unlock()
	return id
}

func (u *User) IsInGroup(group GroupID) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	_, ok := u.groups[group]
	return ok
}

func (u *User) RequestJoinGroup(group GroupID) error {
	room, err := u.reg.GetGroupRoom(group)
	if err != nil {
		return err
	}
	if room.IsMember(u.id) {
		return errs.ErrVerificationExists
	}
	if u.reg.verification.HasGroupVerification(u.id, group) {
		return errs.ErrVerificationExists
	}
	if err := u.reg.verification.ApplyGroup(u.id, group); err != nil {
		return err
	}

	u.mu.Lock()
	u.groupInbox[group] = map[UserID]struct{}{}
	u.mu.Unlock()

	admin, err := u.reg.GetUser(room.Admin())
	if err != nil {
		return err
	}
	admin.mu.Lock()
	if admin.groupInbox[group] == nil {
		admin.groupInbox[group] = make(map[UserID]struct{})
	}
	admin.groupInbox[group][u.id] = struct{}{}
	admin.mu.Unlock()

	admin.NotifyAll(notificationJSON("added_group_verification", map[string]any{"groupid": group, "userid": u.id}))
	return nil
}

// AcceptJoinGroup may only be called by the group's administrator.
func (u *User) AcceptJoinGroup(group GroupID, applicant UserID) error {
	room, err := u.reg.GetGroupRoom(group)
	if err != nil {
		return err
	}
	if room.Admin() != u.id {
		return errs.ErrNoPermission
	}
	if err := u.reg.verification.AcceptGroup(applicant, group); err != nil {
		return err
	}
	u.reg.verification.RemoveGroupVerification(applicant, group)

	applicantUser, err := u.reg.GetUser(applicant)
	if err != nil {
		return err
	}

	room.AddMember(applicant, applicantUser.Nickname())

	applicantUser.mu.Lock()
	applicantUser.groups[group] = struct{}{}
	delete(applicantUser.groupInbox, group)
	applicantUser.mu.Unlock()

	u.mu.Lock()
	delete(u.groupInbox[group], applicant)
	u.mu.Unlock()

	applicantUser.NotifyAll(notificationJSON("added_group", map[string]any{"groupid": group}))
	return nil
}

func (u *User) RejectJoinGroup(group GroupID, applicant UserID) error {
	room, err := u.reg.GetGroupRoom(group)
	if err != nil {
		return err
	}
	if room.Admin() != u.id {
		return errs.ErrNoPermission
	}
	u.reg.verification.RejectGroup(applicant, group)

	applicantUser, err := u.reg.GetUser(applicant)
	if err != nil {
		return err
	}
	applicantUser.mu.Lock()
	delete(applicantUser.groupInbox, group)
	applicantUser.mu.Unlock()

	u.mu.Lock()
	delete(u.groupInbox[group], applicant)
	u.mu.Unlock()

	applicantUser.NotifyAll(notificationJSON("rejected_to_add_group", map[string]any{"groupid": group}))
	return nil
}

// RemoveGroup may only be called by the group's administrator.
func (u *User) RemoveGroup(group GroupID) error {
	room, err := u.reg.GetGroupRoom(group)
	if err != nil {
		return err
	}
	if room.Admin() != u.id {
		return errs.ErrNoPermission
	}

	room.notifyAllMembers(notificationJSON("group_removed", map[string]any{"group": group}))

	return u.reg.RemoveGroupRoom(group)
}

// LeaveGroup requires u to be a non-administrator member.
func (u *User) LeaveGroup(group GroupID) error {
	room, err := u.reg.GetGroupRoom(group)
	if err != nil {
		return err
	}
	if room.Admin() == u.id {
		return errs.ErrNoPermission
	}
	if err := room.RemoveMember(u.id); err != nil {
		return err
	}

	u.mu.Lock()
	delete(u.groups, group)
	u.mu.Unlock()

	room.notifyAllMembers(notificationJSON("group_leave_member", map[string]any{"user": u.id, "group": group}))
	return nil
}
