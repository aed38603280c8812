// Package chat is the in-memory connection/session/room/permission
// runtime: the framed TLS transport, the registries, group and private
// rooms, permissions, and the bilateral friend/group verification
// workflow. It generalizes the shape of the teacher's service/chat
// package (Registry with dual indices, a sweeper-backed connection
// manager, a dispatch-by-type read loop) from protobuf/gRPC-gateway
// framing to this spec's length-prefixed binary frames and JSON request
// bodies.
package chat

import (
	"time"

	"chatd/tools/ids"
)

// UserID and GroupID are aliased into this package so every file in chat
// can name them without importing tools/ids directly.
type (
	UserID  = ids.UserID
	GroupID = ids.GroupID
)

// DeviceType identifies the kind of client holding a connection.
type DeviceType int

const (
	DeviceUnknown DeviceType = iota
	DevicePersonalComputer
	DevicePhone
	DeviceWeb
)

// MessageKind distinguishes a user-authored chat message from a
// system-generated tip narrating a moderation action.
type MessageKind int

const (
	MessageNormal MessageKind = iota
	MessageTip
)

// Message is one entry in a group or private room's time-indexed log.
type Message struct {
	Timestamp int64
	Sender    UserID
	Text      string
	Kind      MessageKind
	// Recipient is set only for a user-directed tip message within a
	// group room (§4.8's send_user_tip_message); zero otherwise.
	Recipient UserID
}

// nowUnixNano is the wall-clock source for message timestamps and
// retention cutoffs, kept separate from any monotonic clock used for
// timeouts (§9 Time source).
func nowUnixNano() int64 { return time.Now().UnixNano() }

// NotifyFunc delivers a JSON payload to every live connection of user,
// through that user's write lane (§4.7 notify_all). Group and private
// rooms take one at construction so they can push notifications without
// depending on the Registry or User types directly.
type NotifyFunc func(user UserID, payload []byte)
