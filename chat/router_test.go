package chat

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*Router, *Registry) {
	t.Helper()
	reg := NewRegistry(context.Background())
	return NewRouter(reg), reg
}

var testConnID int64

// newTestConnection backs a Connection with a real net.Pipe() end instead
// of a zero-value literal, so WriteFrame's lane/closed channels are the
// ones NewConnection allocates rather than nil — a bare &Connection{}
// deadlocks the first time a notify path reaches WriteFrame. The client
// half is drained in the background so the write lane never blocks.
func newTestConnection(t *testing.T) *Connection {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	go io.Copy(io.Discard, client)
	return NewConnection(atomic.AddInt64(&testConnID, 1), server)
}

func dispatchJSON(t *testing.T, rt *Router, c *Connection, function string, params map[string]any) map[string]any {
	t.Helper()
	req, err := json.Marshal(map[string]any{"function": function, "parameters": params})
	require.NoError(t, err)
	out := rt.Dispatch(c, req)
	var m map[string]any
	require.NoError(t, json.Unmarshal(out, &m))
	return m
}

func registerAndLogin(t *testing.T, rt *Router, reg *Registry, email, password string) (*Connection, UserID) {
	t.Helper()
	c := newTestConnection(t)
	require.NoError(t, reg.RegisterConnection(c))
	resp := dispatchJSON(t, rt, c, "register", map[string]any{"email": email, "password": password})
	require.Equal(t, "success", resp["state"])
	id := UserID(int64(resp["user_id"].(float64)))
	return c, id
}

// Scenario 1: register on one connection, then login as the same user on
// a second connection; both connections end up bound to that user.
func TestScenarioRegisterLoginEcho(t *testing.T) {
	rt, reg := newTestRouter(t)
	c, id := registerAndLogin(t, rt, reg, "a@b.co", "s3cret")
	assert.Equal(t, id, reg.UserOf(c))

	c2 := newTestConnection(t)
	require.NoError(t, reg.RegisterConnection(c2))
	resp := dispatchJSON(t, rt, c2, "login", map[string]any{
		"user_id":  float64(id),
		"password": "s3cret",
	})
	assert.Equal(t, "success", resp["state"])
	assert.Equal(t, id, reg.UserOf(c2))
}

func TestScenarioLoginWrongPasswordFails(t *testing.T) {
	rt, reg := newTestRouter(t)
	_, id := registerAndLogin(t, rt, reg, "a@b.co", "s3cret")

	c2 := newTestConnection(t)
	require.NoError(t, reg.RegisterConnection(c2))
	resp := dispatchJSON(t, rt, c2, "login", map[string]any{
		"user_id":  float64(id),
		"password": "wrong",
	})
	assert.Equal(t, "error", resp["state"])
}

// Scenario 2: friend handshake end to end through the router.
func TestScenarioFriendHandshake(t *testing.T) {
	rt, reg := newTestRouter(t)
	ca, a := registerAndLogin(t, rt, reg, "a@b.co", "pw")
	cb, b := registerAndLogin(t, rt, reg, "b@b.co", "pw")

	resp := dispatchJSON(t, rt, ca, "add_friend", map[string]any{"user_id": float64(b)})
	assert.Equal(t, "success", resp["state"])

	resp = dispatchJSON(t, rt, cb, "accept_friend_verification", map[string]any{"user_id": float64(a)})
	assert.Equal(t, "success", resp["state"])

	ua, err := reg.GetUser(a)
	require.NoError(t, err)
	assert.True(t, ua.IsFriend(b))

	resp = dispatchJSON(t, rt, ca, "send_friend_message", map[string]any{
		"user_id": float64(b),
		"message": "hi",
	})
	assert.Equal(t, "success", resp["state"])
}

// Scenario 3: group admin flow -- create, join request, accept, message.
func TestScenarioGroupAdminFlow(t *testing.T) {
	rt, reg := newTestRouter(t)
	cAdmin, _ := registerAndLogin(t, rt, reg, "admin@b.co", "pw")
	cBob, bob := registerAndLogin(t, rt, reg, "bob@b.co", "pw")

	resp := dispatchJSON(t, rt, cAdmin, "create_group", nil)
	require.Equal(t, "success", resp["state"])
	groupID := GroupID(int64(resp["group_id"].(float64)))

	resp = dispatchJSON(t, rt, cBob, "add_group", map[string]any{"group_id": float64(groupID)})
	assert.Equal(t, "success", resp["state"])

	resp = dispatchJSON(t, rt, cAdmin, "accept_group_verification", map[string]any{
		"group_id": float64(groupID),
		"user_id":  float64(bob),
	})
	assert.Equal(t, "success", resp["state"])

	room, err := reg.GetGroupRoom(groupID)
	require.NoError(t, err)
	assert.True(t, room.IsMember(bob))

	resp = dispatchJSON(t, rt, cBob, "send_group_message", map[string]any{
		"group_id": float64(groupID),
		"message":  "hello group",
	})
	assert.Equal(t, "success", resp["state"])
}

// Scenario 4: mute enforcement surfaces as a distinct "muted" state, not
// a generic error, through the router.
func TestScenarioMuteEnforcementThroughRouter(t *testing.T) {
	rt, reg := newTestRouter(t)
	cAdmin, admin := registerAndLogin(t, rt, reg, "admin@b.co", "pw")
	cBob, bob := registerAndLogin(t, rt, reg, "bob@b.co", "pw")

	resp := dispatchJSON(t, rt, cAdmin, "create_group", nil)
	groupID := GroupID(int64(resp["group_id"].(float64)))
	room, err := reg.GetGroupRoom(groupID)
	require.NoError(t, err)
	room.AddMember(bob, "bob")

	require.NoError(t, room.Mute(admin, bob, time.Minute))

	resp = dispatchJSON(t, rt, cBob, "send_group_message", map[string]any{
		"group_id": float64(groupID),
		"message":  "can't talk",
	})
	assert.Equal(t, "muted", resp["state"])
}

func TestDispatchUnknownFunctionFails(t *testing.T) {
	rt, reg := newTestRouter(t)
	c, _ := registerAndLogin(t, rt, reg, "a@b.co", "pw")
	resp := dispatchJSON(t, rt, c, "does_not_exist", nil)
	assert.Equal(t, "error", resp["state"])
}

func TestDispatchNotLoggedInGate(t *testing.T) {
	rt, reg := newTestRouter(t)
	c := newTestConnection(t)
	require.NoError(t, reg.RegisterConnection(c))
	resp := dispatchJSON(t, rt, c, "create_group", nil)
	assert.Equal(t, "error", resp["state"])
}
