package chat

import (
	"encoding/json"
	"regexp"

	"chatd/tools/decode"
	"chatd/tools/errs"
)

// emailPattern is copied verbatim from the original's
// utils/regexMatch.hpp emailMatch.
var emailPattern = regexp.MustCompile(`^(\w+\.)*\w+@(\w+\.)+[A-Za-z]+$`)

// request is the JSON envelope every Text frame payload carries (§4.11).
type request struct {
	Function   string         `json:"function"`
	Parameters map[string]any `json:"parameters"`
}

// response is the JSON envelope every router reply carries. Fields beyond
// State/Message are flattened in via Extra so responses like
// {state,message,user_id} keep a flat shape instead of a nested object.
type response struct {
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
	Extra   map[string]any `json:"-"`
}

func (r response) MarshalJSON() ([]byte, error) {
	m := map[string]any{"state": r.State}
	if r.Message != "" {
		m["message"] = r.Message
	}
	for k, v := range r.Extra {
		m[k] = v
	}
	return json.Marshal(m)
}

func success(extra map[string]any) response {
	return response{State: "success", Extra: extra}
}

func muted() response {
	return response{State: "muted", Message: "sender is muted"}
}

func errorResponse(err error) response {
	msg := err.Error()
	if ce, ok := err.(*errs.CodeError); ok {
		msg = ce.Msg
	}
	return response{State: "error", Message: msg}
}

// Router dispatches a decoded JSON request against the Registry and the
// connection's bound user, producing a JSON response body (§4.11). It
// owns no state of its own beyond the Registry reference.
type Router struct {
	reg *Registry
}

func NewRouter(reg *Registry) *Router {
	return &Router{reg: reg}
}

// loginExempt functions may be called on a connection with no bound user.
var loginExempt = map[string]bool{
	"register": true,
	"login":    true,
}

// Dispatch parses payload as {function, parameters} and runs the named
// handler, returning the JSON-encoded response body. requester is the
// user currently bound to the calling connection (0 if unbound).
func (rt *Router) Dispatch(c *Connection, payload []byte) []byte {
	var req request
	if err := json.Unmarshal(payload, &req); err != nil {
		return mustMarshal(errorResponse(errs.ErrInvalidData))
	}

	requester := rt.reg.UserOf(c)
	if !requester.Valid() && !loginExempt[req.Function] {
		return mustMarshal(errorResponse(errs.ErrUserNotFound.WithDetail("not logged in")))
	}

	resp := rt.handle(c, requester, req)
	return mustMarshal(resp)
}

func mustMarshal(r response) []byte {
	b, err := json.Marshal(r)
	if err != nil {
		return []byte(`{"state":"error","message":"internal encoding error"}`)
	}
	return b
}

func (rt *Router) handle(c *Connection, requester UserID, req request) response {
	switch req.Function {
	case "register":
		return rt.register(c, req.Parameters)
	case "login":
		return rt.login(c, req.Parameters)
	case "add_friend":
		return rt.addFriend(requester, req.Parameters)
	case "accept_friend_verification":
		return rt.acceptFriend(requester, req.Parameters)
	case "reject_friend_verification":
		return rt.rejectFriend(requester, req.Parameters)
	case "remove_friend":
		return rt.removeFriend(requester, req.Parameters)
	case "create_group":
		return rt.createGroup(requester)
	case "add_group":
		return rt.addGroup(requester, req.Parameters)
	case "accept_group_verification":
		return rt.acceptGroup(requester, req.Parameters)
	case "reject_group_verification":
		return rt.rejectGroup(requester, req.Parameters)
	case "leave_group":
		return rt.leaveGroup(requester, req.Parameters)
	case "send_friend_message":
		return rt.sendFriendMessage(requester, req.Parameters)
	case "send_group_message":
		return rt.sendGroupMessage(requester, req.Parameters)
	default:
		return errorResponse(errs.NewCodeError(1, "unknown function").WithDetail(req.Function))
	}
}

type registerParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (rt *Router) register(c *Connection, params map[string]any) response {
	p, err := decode.Params[registerParams](params)
	if err != nil {
		return errorResponse(err)
	}
	if !emailPattern.MatchString(p.Email) {
		return errorResponse(errs.ErrInvalidData.WithDetail("malformed email"))
	}

	u := rt.reg.AddUser(p.Email)
	if err := u.SetInitialPassword(p.Password); err != nil {
		return errorResponse(err)
	}
	if err := rt.reg.BindConnection(c, u.ID(), DeviceUnknown); err != nil {
		return errorResponse(err)
	}
	return success(map[string]any{"user_id": u.ID()})
}

type loginParams struct {
	UserID   UserID `json:"user_id"`
	Password string `json:"password"`
	Device   string `json:"device"`
}

func (rt *Router) login(c *Connection, params map[string]any) response {
	p, err := decode.Params[loginParams](params)
	if err != nil {
		return errorResponse(err)
	}
	u, err := rt.reg.GetUser(p.UserID)
	if err != nil {
		return errorResponse(err)
	}
	if !u.CheckPassword(p.Password) {
		return errorResponse(errs.ErrPasswordMismatch)
	}
	if err := rt.reg.BindConnection(c, u.ID(), parseDevice(p.Device)); err != nil {
		return errorResponse(err)
	}
	return success(nil)
}

func parseDevice(s string) DeviceType {
	switch s {
	case "PersonalComputer":
		return DevicePersonalComputer
	case "Phone":
		return DevicePhone
	case "Web":
		return DeviceWeb
	default:
		return DeviceUnknown
	}
}

type userIDParams struct {
	UserID UserID `json:"user_id"`
}

func (rt *Router) addFriend(requester UserID, params map[string]any) response {
	p, err := decode.Params[userIDParams](params)
	if err != nil {
		return errorResponse(err)
	}
	u, err := rt.reg.GetUser(requester)
	if err != nil {
		return errorResponse(err)
	}
	if err := u.RequestFriend(p.UserID); err != nil {
		return errorResponse(err)
	}
	return success(nil)
}

func (rt *Router) acceptFriend(requester UserID, params map[string]any) response {
	p, err := decode.Params[userIDParams](params)
	if err != nil {
		return errorResponse(err)
	}
	u, err := rt.reg.GetUser(requester)
	if err != nil {
		return errorResponse(err)
	}
	if err := u.AcceptFriend(p.UserID); err != nil {
		return errorResponse(err)
	}
	return success(nil)
}

func (rt *Router) rejectFriend(requester UserID, params map[string]any) response {
	p, err := decode.Params[userIDParams](params)
	if err != nil {
		return errorResponse(err)
	}
	u, err := rt.reg.GetUser(requester)
	if err != nil {
		return errorResponse(err)
	}
	if err := u.RejectFriend(p.UserID); err != nil {
		return errorResponse(err)
	}
	return success(nil)
}

func (rt *Router) removeFriend(requester UserID, params map[string]any) response {
	p, err := decode.Params[userIDParams](params)
	if err != nil {
		return errorResponse(err)
	}
	u, err := rt.reg.GetUser(requester)
	if err != nil {
		return errorResponse(err)
	}
	if err := u.RemoveFriend(p.UserID); err != nil {
		return errorResponse(err)
	}
	return success(nil)
}

func (rt *Router) createGroup(requester UserID) response {
	u, err := rt.reg.GetUser(requester)
	if err != nil {
		return errorResponse(err)
	}
	id := u.CreateGroup()
	return success(map[string]any{"group_id": id})
}

type groupIDParams struct {
	GroupID GroupID `json:"group_id"`
}

func (rt *Router) addGroup(requester UserID, params map[string]any) response {
	p, err := decode.Params[groupIDParams](params)
	if err != nil {
		return errorResponse(err)
	}
	u, err := rt.reg.GetUser(requester)
	if err != nil {
		return errorResponse(err)
	}
	if err := u.RequestJoinGroup(p.GroupID); err != nil {
		return errorResponse(err)
	}
	return success(nil)
}

type groupVerificationParams struct {
	GroupID GroupID `json:"group_id"`
	UserID  UserID  `json:"user_id"`
}

func (rt *Router) acceptGroup(requester UserID, params map[string]any) response {
	p, err := decode.Params[groupVerificationParams](params)
	if err != nil {
		return errorResponse(err)
	}
	u, err := rt.reg.GetUser(requester)
	if err != nil {
		return errorResponse(err)
	}
	if err := u.AcceptJoinGroup(p.GroupID, p.UserID); err != nil {
		return errorResponse(err)
	}
	return success(nil)
}

func (rt *Router) rejectGroup(requester UserID, params map[string]any) response {
	p, err := decode.Params[groupVerificationParams](params)
	if err != nil {
		return errorResponse(err)
	}
	u, err := rt.reg.GetUser(requester)
	if err != nil {
		return errorResponse(err)
	}
	if err := u.RejectJoinGroup(p.GroupID, p.UserID); err != nil {
		return errorResponse(err)
	}
	return success(nil)
}

func (rt *Router) leaveGroup(requester UserID, params map[string]any) response {
	p, err := decode.Params[groupIDParams](params)
	if err != nil {
		return errorResponse(err)
	}
	u, err := rt.reg.GetUser(requester)
	if err != nil {
		return errorResponse(err)
	}
	if err := u.LeaveGroup(p.GroupID); err != nil {
		return errorResponse(err)
	}
	return success(nil)
}

type friendMessageParams struct {
	UserID  UserID `json:"user_id"`
	Message string `json:"message"`
}

func (rt *Router) sendFriendMessage(requester UserID, params map[string]any) response {
	p, err := decode.Params[friendMessageParams](params)
	if err != nil {
		return errorResponse(err)
	}
	u, err := rt.reg.GetUser(requester)
	if err != nil {
		return errorResponse(err)
	}
	if !u.IsFriend(p.UserID) {
		return errorResponse(errs.ErrUserNotFound.WithDetail("not a friend"))
	}
	roomID, err := rt.reg.PrivateRoomID(requester, p.UserID)
	if err != nil {
		return errorResponse(err)
	}
	room, err := rt.reg.GetPrivateRoom(roomID)
	if err != nil {
		return errorResponse(err)
	}
	room.SendMessage(requester, p.Message)
	return success(nil)
}

type groupMessageParams struct {
	GroupID GroupID `json:"group_id"`
	Message string  `json:"message"`
}

func (rt *Router) sendGroupMessage(requester UserID, params map[string]any) response {
	p, err := decode.Params[groupMessageParams](params)
	if err != nil {
		return errorResponse(err)
	}
	room, err := rt.reg.GetGroupRoom(p.GroupID)
	if err != nil {
		return errorResponse(err)
	}
	if err := room.SendMessage(requester, p.Message); err != nil {
		if IsMutedErr(err) {
			return muted()
		}
		return errorResponse(err)
	}
	return success(nil)
}
