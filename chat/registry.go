package chat

import (
	"context"
	"sync"

	"chatd/tools/errs"
	"chatd/tools/ids"
)

// Registry holds the authoritative global maps (§3/§4.6): users, groups,
// private rooms plus their pair index, and the connection<->user
// binding. Each map has its own reader/writer lock; multi-map mutations
// acquire locks in the fixed order declared at each call site, matching
// the teacher's registry.go dual-index (byUser/byConn) shape generalized
// to this spec's five maps.
type Registry struct {
	usersMu sync.RWMutex
	users   map[UserID]*User

	groupsMu sync.RWMutex
	groups   map[GroupID]*GroupRoom

	privateRoomsMu sync.RWMutex
	privateRooms   map[GroupID]*PrivateRoom

	pairIndexMu sync.RWMutex
	pairIndex   map[ids.UnorderedPair]GroupID

	connectionsMu sync.RWMutex
	connections   map[*Connection]UserID

	userCounter        *ids.Counter
	groupCounter       *ids.Counter
	privateRoomCounter *ids.Counter

	verification *VerificationManager

	ctx context.Context
}

// NewRegistry creates an empty Registry. ctx bounds the lifetime of any
// background task a created room starts (retention sweeps).
func NewRegistry(ctx context.Context) *Registry {
	return &Registry{
		users:              make(map[UserID]*User),
		groups:             make(map[GroupID]*GroupRoom),
		privateRooms:       make(map[GroupID]*PrivateRoom),
		pairIndex:          make(map[ids.UnorderedPair]GroupID),
		connections:        make(map[*Connection]UserID),
		userCounter:        ids.NewCounter(),
		groupCounter:       ids.NewCounter(),
		privateRoomCounter: ids.NewCounter(),
		verification:       NewVerificationManager(),
		ctx:                ctx,
	}
}

// NotifyUser delivers payload to every live connection of user, used as
// the NotifyFunc passed to rooms.
func (r *Registry) NotifyUser(user UserID, payload []byte) {
	u := r.lookupUser(user)
	if u == nil {
		return
	}
	u.NotifyAll(payload)
}

func (r *Registry) lookupUser(id UserID) *User {
	r.usersMu.RLock()
	defer r.usersMu.RUnlock()
	return r.users[id]
}

// AddUser allocates a new id and creates a User with no password set;
// callers complete registration with SetInitialPassword.
func (r *Registry) AddUser(email string) *User {
	id := UserID(r.userCounter.Next())
	u := newUser(id, email, "", "", r)
	r.usersMu.Lock()
	r.users[id] = u
	r.usersMu.Unlock()
	return u
}

func (r *Registry) GetUser(id UserID) (*User, error) {
	r.usersMu.RLock()
	defer r.usersMu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, errs.ErrUserNotFound
	}
	return u, nil
}

func (r *Registry) HasUser(id UserID) bool {
	r.usersMu.RLock()
	defer r.usersMu.RUnlock()
	_, ok := r.users[id]
	return ok
}

// AddPrivateRoom creates a PrivateRoom for (u1,u2) and inserts it into
// pair_index under the unordered pair. Callers must check
// PrivateRoomID first; idempotence is not enforced here.
func (r *Registry) AddPrivateRoom(u1, u2 UserID) GroupID {
	id := GroupID(r.privateRoomCounter.Next())
	room := NewPrivateRoom(id, u1, u2, r.NotifyUser)

	r.privateRoomsMu.Lock()
	r.privateRooms[id] = room
	r.privateRoomsMu.Unlock()

	r.pairIndexMu.Lock()
	r.pairIndex[ids.NewUnorderedPair(u1, u2)] = id
	r.pairIndexMu.Unlock()

	return id
}

func (r *Registry) PrivateRoomID(u1, u2 UserID) (GroupID, error) {
	r.pairIndexMu.RLock()
	defer r.pairIndexMu.RUnlock()
	id, ok := r.pairIndex[ids.NewUnorderedPair(u1, u2)]
	if !ok {
		return 0, errs.ErrPrivateRoomNotFound
	}
	return id, nil
}

func (r *Registry) GetPrivateRoom(id GroupID) (*PrivateRoom, error) {
	r.privateRoomsMu.RLock()
	defer r.privateRoomsMu.RUnlock()
	room, ok := r.privateRooms[id]
	if !ok {
		return nil, errs.ErrPrivateRoomNotFound
	}
	return room, nil
}

// AddGroupRoom creates a GroupRoom with admin as sole member at
// Administrator level, and starts its retention sweep.
func (r *Registry) AddGroupRoom(admin UserID) GroupID {
	id := GroupID(r.groupCounter.Next())
	room := NewGroupRoom(id, admin, r.NotifyUser)
	room.RunRetentionSweep(r.ctx)

	r.groupsMu.Lock()
	r.groups[id] = room
	r.groupsMu.Unlock()

	return id
}

func (r *Registry) GetGroupRoom(id GroupID) (*GroupRoom, error) {
	r.groupsMu.RLock()
	defer r.groupsMu.RUnlock()
	room, ok := r.groups[id]
	if !ok {
		return nil, errs.ErrGroupRoomNotFound
	}
	return room, nil
}

// RemoveGroupRoom removes the room, stopping its retention sweep.
func (r *Registry) RemoveGroupRoom(id GroupID) error {
	r.groupsMu.Lock()
	defer r.groupsMu.Unlock()
	room, ok := r.groups[id]
	if !ok {
		return errs.ErrGroupRoomNotFound
	}
	room.StopRetentionSweep()
	delete(r.groups, id)
	return nil
}

// RegisterConnection inserts c with no bound user.
func (r *Registry) RegisterConnection(c *Connection) error {
	r.connectionsMu.Lock()
	defer r.connectionsMu.Unlock()
	if _, ok := r.connections[c]; ok {
		return errs.ErrConnectionExists
	}
	r.connections[c] = 0
	return nil
}

// BindConnection binds c to user with device. If c was previously bound
// to a different user, it is detached from that user first. Lock order
// is always (connections, users), matching the Locking discipline in
// §4.6.
func (r *Registry) BindConnection(c *Connection, user UserID, device DeviceType) error {
	r.connectionsMu.Lock()
	defer r.connectionsMu.Unlock()

	prev, ok := r.connections[c]
	if !ok {
		return errs.ErrConnectionNotFound
	}

	r.usersMu.RLock()
	u, userOK := r.users[user]
	var oldUser *User
	if prev.Valid() && prev != user {
		oldUser = r.users[prev]
	}
	r.usersMu.RUnlock()
	if !userOK {
		return errs.ErrUserNotFound
	}

	if oldUser != nil {
		_ = oldUser.removeConnection(c)
	}

	if err := u.addOrModifyConnection(c, device); err != nil {
		return err
	}
	r.connections[c] = user
	return nil
}

// RemoveConnection detaches c from its bound user (if any) and removes
// it from the registry.
func (r *Registry) RemoveConnection(c *Connection) error {
	r.connectionsMu.Lock()
	defer r.connectionsMu.Unlock()

	user, ok := r.connections[c]
	if !ok {
		return errs.ErrConnectionNotFound
	}
	if user.Valid() {
		r.usersMu.RLock()
		u, exists := r.users[user]
		r.usersMu.RUnlock()
		if exists {
			_ = u.removeConnection(c)
		}
	}
	delete(r.connections, c)
	return nil
}

// UserOf returns the user bound to c, or 0 ("none") if unbound or not
// registered.
func (r *Registry) UserOf(c *Connection) UserID {
	r.connectionsMu.RLock()
	defer r.connectionsMu.RUnlock()
	return r.connections[c]
}

// Snapshot returns coarse counts for the admin stub boundary (§4.12).
type Snapshot struct {
	Users        int
	Groups       int
	PrivateRooms int
	Connections  int
}

func (r *Registry) Snapshot() Snapshot {
	r.usersMu.RLock()
	users := len(r.users)
	r.usersMu.RUnlock()

	r.groupsMu.RLock()
	groups := len(r.groups)
	r.groupsMu.RUnlock()

	r.privateRoomsMu.RLock()
	rooms := len(r.privateRooms)
	r.privateRoomsMu.RUnlock()

	r.connectionsMu.RLock()
	conns := len(r.connections)
	r.connectionsMu.RUnlock()

	return Snapshot{Users: users, Groups: groups, PrivateRooms: rooms, Connections: conns}
}
