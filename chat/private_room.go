package chat

import (
	"chatd/tools/ids"
)

// PrivateRoom is a symmetric two-member room with a message log of the
// same shape as a group room (§4.9). Membership is fixed at construction;
// there is no add/remove.
type PrivateRoom struct {
	id      GroupID
	a, b    UserID
	messages *messageLog
	notify   NotifyFunc
}

func NewPrivateRoom(id GroupID, a, b UserID, notify NotifyFunc) *PrivateRoom {
	return &PrivateRoom{id: id, a: a, b: b, messages: newMessageLog(), notify: notify}
}

func (r *PrivateRoom) ID() GroupID { return r.id }

// Pair returns the room's members as the order-insensitive key used by
// the registry's pair_index.
func (r *PrivateRoom) Pair() ids.UnorderedPair { return ids.NewUnorderedPair(r.a, r.b) }

func (r *PrivateRoom) Other(user UserID) UserID {
	if user == r.a {
		return r.b
	}
	return r.a
}

func (r *PrivateRoom) HasMember(user UserID) bool {
	return user == r.a || user == r.b
}

type privateMessagePayload struct {
	UserID  UserID `json:"user_id"`
	RoomID  GroupID `json:"room_id"`
	Message string `json:"message"`
}

func (r *PrivateRoom) send(sender UserID, text string, kind MessageKind, notifyKind string) {
	r.messages.Append(Message{Sender: sender, Text: text, Kind: kind})
	if r.notify == nil {
		return
	}
	payload := notificationJSON(notifyKind, privateMessagePayload{UserID: sender, RoomID: r.id, Message: text})
	r.notify(r.a, payload)
	r.notify(r.b, payload)
}

// SendMessage appends a user-authored message and notifies both members.
func (r *PrivateRoom) SendMessage(sender UserID, text string) {
	r.send(sender, text, MessageNormal, "friend_message")
}

// SendTipMessage appends a system message and notifies both members.
func (r *PrivateRoom) SendTipMessage(sender UserID, text string) {
	r.send(sender, text, MessageTip, "friend_tip_message")
}

// GetMessages returns a stable snapshot of entries with from <= ts < to.
func (r *PrivateRoom) GetMessages(from, to int64) []Message {
	return r.messages.Range(from, to)
}
