package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"chatd/logger"
	"chatd/tools/errs"

	"go.uber.org/zap"
)

const retentionWindow = 7 * 24 * time.Hour
const retentionSweepEvery = 10 * time.Minute

type member struct {
	Nickname string
	Level    int
}

type muteEntry struct {
	Since    time.Time
	Duration time.Duration
}

func (m muteEntry) expired(now time.Time) bool {
	return now.After(m.Since.Add(m.Duration))
}

// GroupRoom is a many-to-many broadcast room with membership, a
// permission table, a mute table, and a time-indexed message log (§4.8).
type GroupRoom struct {
	id    GroupID
	admin UserID

	mu      sync.RWMutex
	members map[UserID]member
	muted   map[UserID]muteEntry

	permissions *PermissionTable
	messages    *messageLog
	notify      NotifyFunc

	cancelSweep context.CancelFunc
}

// NewGroupRoom creates a room with admin as its sole member at
// Administrator level, per Registry.add_group_room.
func NewGroupRoom(id GroupID, admin UserID, notify NotifyFunc) *GroupRoom {
	g := &GroupRoom{
		id:          id,
		admin:       admin,
		members:     make(map[UserID]member),
		muted:       make(map[UserID]muteEntry),
		permissions: NewPermissionTable(),
		messages:    newMessageLog(),
		notify:      notify,
	}
	g.members[admin] = member{Level: MaxUserLevel}
	g.permissions.SetUserLevel(admin, PermissionAdministrator)
	return g
}

func (g *GroupRoom) ID() GroupID   { return g.id }
func (g *GroupRoom) Admin() UserID { return g.admin }

// RunRetentionSweep starts the cooperative retention task (§4.8): every
// 10 minutes it erases messages older than 7 days. Cancellation is
// silent.
func (g *GroupRoom) RunRetentionSweep(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	g.cancelSweep = cancel
	ticker := time.NewTicker(retentionSweepEvery)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				cutoff := now.Add(-retentionWindow).UnixNano()
				if n := g.messages.DeleteOlderThan(cutoff); n > 0 {
					logger.Info("group retention sweep", zap.Int64("group_id", int64(g.id)), zap.Int("removed", n))
				}
			}
		}
	}()
}

func (g *GroupRoom) StopRetentionSweep() {
	if g.cancelSweep != nil {
		g.cancelSweep()
	}
}

// AddMember adds user with Default level if absent, setting nickname from
// the caller-supplied display name (the user's profile nickname).
func (g *GroupRoom) AddMember(user UserID, nickname string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.members[user]; ok {
		return
	}
	g.members[user] = member{Nickname: nickname, Level: MinUserLevel}
	g.permissions.SetUserLevel(user, PermissionDefault)
}

// RemoveMember removes user if present. Removing the administrator is
// forbidden; callers must use remove_group instead.
func (g *GroupRoom) RemoveMember(user UserID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if user == g.admin {
		return errs.ErrNoPermission
	}
	if _, ok := g.members[user]; !ok {
		return errs.ErrUserNotFound
	}
	delete(g.members, user)
	delete(g.muted, user)
	g.permissions.RemoveUser(user)
	return nil
}

func (g *GroupRoom) IsMember(user UserID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.members[user]
	return ok
}

func (g *GroupRoom) MemberCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.members)
}

// isMuted applies the lazy mute sweep: an expired mute is deleted and the
// user is treated as unmuted.
func (g *GroupRoom) isMuted(user UserID, now time.Time) bool {
	entry, ok := g.muted[user]
	if !ok {
		return false
	}
	if entry.expired(now) {
		delete(g.muted, user)
		return false
	}
	return true
}

type groupMessagePayload struct {
	UserID  UserID  `json:"user_id"`
	GroupID GroupID `json:"group_id"`
	Message string  `json:"message"`
}

func notificationJSON(kind string, data any) []byte {
	payload := struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{Type: kind, Data: data}
	b, _ := json.Marshal(payload)
	return b
}

// errMuted indicates the sender is currently muted: the message is neither
// stored nor broadcast, and this case is distinguished from a normal
// success per §9 Open Question (c).
var errMuted = errs.NewCodeError(7001, "muted")

// SendMessage appends a user-authored message and notifies every member.
// Returns errMuted (not an error the caller need treat as failure) if the
// sender is muted; the caller maps that to {state:"muted"}.
func (g *GroupRoom) SendMessage(sender UserID, text string) error {
	return g.send(sender, text, MessageNormal, "group_message")
}

// SendTipMessage emits a system/tip message visible to every member, used
// both for direct send_tip_message calls and moderation narration.
func (g *GroupRoom) SendTipMessage(sender UserID, text string) error {
	return g.send(sender, text, MessageTip, "group_tip_message")
}

// SendUserTipMessage emits a tip visible only to recipient.
func (g *GroupRoom) SendUserTipMessage(sender UserID, text string, recipient UserID) error {
	g.mu.Lock()
	if _, ok := g.members[sender]; !ok {
		g.mu.Unlock()
		return errs.ErrUserNotFound
	}
	now := time.Now()
	if g.isMuted(sender, now) {
		g.mu.Unlock()
		return errMuted
	}
	g.messages.Append(Message{Sender: sender, Text: text, Kind: MessageTip, Recipient: recipient})
	g.mu.Unlock()

	if g.notify != nil {
		g.notify(recipient, notificationJSON("group_user_tip_message", groupMessagePayload{UserID: sender, GroupID: g.id, Message: text}))
	}
	return nil
}

func (g *GroupRoom) send(sender UserID, text string, kind MessageKind, notifyKind string) error {
	g.mu.Lock()
	if _, ok := g.members[sender]; !ok {
		g.mu.Unlock()
		return errs.ErrUserNotFound
	}
	now := time.Now()
	if g.isMuted(sender, now) {
		g.mu.Unlock()
		return errMuted
	}
	g.messages.Append(Message{Sender: sender, Text: text, Kind: kind})
	recipients := make([]UserID, 0, len(g.members))
	for id := range g.members {
		recipients = append(recipients, id)
	}
	g.mu.Unlock()

	if g.notify == nil {
		return nil
	}
	payload := notificationJSON(notifyKind, groupMessagePayload{UserID: sender, GroupID: g.id, Message: text})
	for _, id := range recipients {
		g.notify(id, payload)
	}
	return nil
}

// IsMutedErr reports whether err is the distinguished "accepted but
// muted" outcome.
func IsMutedErr(err error) bool { return err == errMuted }

// GetMessages returns a stable snapshot of entries with from <= ts < to.
func (g *GroupRoom) GetMessages(from, to int64) []Message {
	return g.messages.Range(from, to)
}

func (g *GroupRoom) requireMembers(executor, user UserID) error {
	if executor == user {
		return errs.ErrNoPermission
	}
	g.mu.RLock()
	_, execOK := g.members[executor]
	_, userOK := g.members[user]
	g.mu.RUnlock()
	if !execOK || !userOK {
		return errs.ErrUserNotFound
	}
	return nil
}

// levelsOfLocked returns executor's and user's granted PermissionLevel.
// Callers hold g.mu. Both were confirmed members by requireMembers, which
// checks the same membership g.permissions.SetUserLevel is always updated
// alongside (AddMember/RemoveMember/Kick keep the two in lockstep).
// requireMembers runs under a separate lock acquisition, so a member
// removed in between also surfaces here as UserNotFound.
func (g *GroupRoom) levelsOfLocked(executor, user UserID) (execLevel, userLevel PermissionLevel, err error) {
	execLevel, err = g.permissions.UserLevelOf(executor)
	if err != nil {
		return 0, 0, err
	}
	userLevel, err = g.permissions.UserLevelOf(user)
	if err != nil {
		return 0, 0, err
	}
	return execLevel, userLevel, nil
}

// Mute requires executor.level > user.level.
func (g *GroupRoom) Mute(executor, user UserID, duration time.Duration) error {
	if err := g.requireMembers(executor, user); err != nil {
		return err
	}
	g.mu.Lock()
	execLevel, userLevel, err := g.levelsOfLocked(executor, user)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	if execLevel <= userLevel {
		g.mu.Unlock()
		return errs.ErrNoPermission
	}
	g.muted[user] = muteEntry{Since: time.Now(), Duration: duration}
	g.mu.Unlock()
	return g.SendTipMessage(executor, "user muted")
}

func (g *GroupRoom) Unmute(executor, user UserID) error {
	if err := g.requireMembers(executor, user); err != nil {
		return err
	}
	g.mu.Lock()
	execLevel, userLevel, err := g.levelsOfLocked(executor, user)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	if execLevel <= userLevel {
		g.mu.Unlock()
		return errs.ErrNoPermission
	}
	delete(g.muted, user)
	g.mu.Unlock()
	return g.SendTipMessage(executor, "user unmuted")
}

func (g *GroupRoom) Kick(executor, user UserID) error {
	if err := g.requireMembers(executor, user); err != nil {
		return err
	}
	g.mu.Lock()
	execLevel, userLevel, err := g.levelsOfLocked(executor, user)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	if execLevel <= userLevel {
		g.mu.Unlock()
		return errs.ErrNoPermission
	}
	if user == g.admin {
		g.mu.Unlock()
		return errs.ErrNoPermission
	}
	delete(g.members, user)
	delete(g.muted, user)
	g.permissions.RemoveUser(user)
	g.mu.Unlock()
	return g.SendTipMessage(executor, "user kicked")
}

// PromoteToOperator requires executor is Administrator and user is at
// Default level.
func (g *GroupRoom) PromoteToOperator(executor, user UserID) error {
	if err := g.requireMembers(executor, user); err != nil {
		return err
	}
	g.mu.Lock()
	execLevel, userLevel, err := g.levelsOfLocked(executor, user)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	if execLevel != PermissionAdministrator {
		g.mu.Unlock()
		return errs.ErrNoPermission
	}
	if userLevel != PermissionDefault {
		g.mu.Unlock()
		return errs.ErrNoPermission
	}
	g.permissions.SetUserLevel(user, PermissionOperator)
	g.mu.Unlock()
	return g.SendTipMessage(executor, "user promoted to operator")
}

// DemoteOperator requires executor is Administrator and user is at
// Operator level.
func (g *GroupRoom) DemoteOperator(executor, user UserID) error {
	if err := g.requireMembers(executor, user); err != nil {
		return err
	}
	g.mu.Lock()
	execLevel, userLevel, err := g.levelsOfLocked(executor, user)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	if execLevel != PermissionAdministrator {
		g.mu.Unlock()
		return errs.ErrNoPermission
	}
	if userLevel != PermissionOperator {
		g.mu.Unlock()
		return errs.ErrNoPermission
	}
	g.permissions.SetUserLevel(user, PermissionDefault)
	g.mu.Unlock()
	return g.SendTipMessage(executor, "user demoted from operator")
}

// SetAdministrator reassigns the administrator role to user.
func (g *GroupRoom) SetAdministrator(executor, user UserID) error {
	if err := g.requireMembers(executor, user); err != nil {
		return err
	}
	g.mu.Lock()
	execLevel, _, err := g.levelsOfLocked(executor, user)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	if execLevel != PermissionAdministrator {
		g.mu.Unlock()
		return errs.ErrNoPermission
	}
	g.admin = user
	g.permissions.SetUserLevel(user, PermissionAdministrator)
	g.mu.Unlock()
	return g.SendTipMessage(executor, "administrator changed")
}

// Permissions exposes the permission table for permission_level/user_level
// queries from the router.
func (g *GroupRoom) Permissions() *PermissionTable { return g.permissions }

// notifyAllMembers pushes payload to every current member directly,
// bypassing the message log — used for group_removed/group_leave_member
// notices that are not themselves chat messages.
func (g *GroupRoom) notifyAllMembers(payload []byte) {
	if g.notify == nil {
		return
	}
	g.mu.RLock()
	recipients := make([]UserID, 0, len(g.members))
	for id := range g.members {
		recipients = append(recipients, id)
	}
	g.mu.RUnlock()
	for _, id := range recipients {
		g.notify(id, payload)
	}
}
