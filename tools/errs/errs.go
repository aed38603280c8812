// Package errs implements the domain error taxonomy surfaced by the chat
// core (spec §7). It mirrors the teacher's tools/errs/coderr.go: a single
// CodeError carrying a numeric code, a short message, and an optional
// detail string, with Is() matching by code so callers can test against a
// shared sentinel regardless of attached detail.
//
// The teacher's coderr.go wraps every return through a sibling
// tools/errs/stack package that captures a stack trace; that package was
// never part of the retrieved copy (see DESIGN.md), so this version keeps
// the CodeError shape and WrapMsg/Is behavior but returns plain errors
// without a stack-trace wrapper.
package errs

import (
	"errors"
	"strconv"
	"strings"
)

// CodeError is the concrete error value routed to a JSON {state:"error"}
// response at the router boundary.
type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

func (e *CodeError) Error() string {
	parts := make([]string, 0, 3)
	parts = append(parts, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		parts = append(parts, e.Detail)
	}
	return strings.Join(parts, " ")
}

func (e *CodeError) clone() *CodeError {
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: e.Detail}
}

// WithDetail returns a copy of e carrying an additional detail string.
func (e *CodeError) WithDetail(detail string) *CodeError {
	c := e.clone()
	if c.Detail == "" {
		c.Detail = detail
	} else {
		c.Detail = c.Detail + ", " + detail
	}
	return c
}

// WrapMsg returns a copy of e with msg appended to Detail. Kept so call
// sites can attach context ("user_id", id) without losing the original
// sentinel's Code for Is() comparisons.
func (e *CodeError) WrapMsg(msg string) error {
	if msg == "" {
		return e.clone()
	}
	return e.WithDetail(msg)
}

// Is reports whether err is (or wraps) a CodeError with the same Code as e.
func (e *CodeError) Is(err error) bool {
	if e == nil {
		return err == nil
	}
	var ce *CodeError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == e.Code
}

// Code kind numbering groups errors by §7 category so new entries can be
// added within a category without reshuffling existing codes.
const (
	codecBase        = 1000
	registryBase      = 2000
	authBase          = 3000
	verificationBase  = 4000
	permissionBase    = 5000
	tlsBase           = 6000
)

// Data/codec errors.
var (
	ErrDataTooSmall     = NewCodeError(codecBase+1, "data too small")
	ErrInvalidData      = NewCodeError(codecBase+2, "invalid data")
	ErrIncompletePackage = NewCodeError(codecBase+3, "incomplete package")
	ErrEmptyLength      = NewCodeError(codecBase+4, "empty length")
)

// Registry errors.
var (
	ErrUserNotFound        = NewCodeError(registryBase+1, "user not found")
	ErrGroupRoomNotFound   = NewCodeError(registryBase+2, "group room not found")
	ErrPrivateRoomNotFound = NewCodeError(registryBase+3, "private room not found")
	ErrPrivateRoomExists   = NewCodeError(registryBase+4, "private room exists")
	ErrConnectionNotFound  = NewCodeError(registryBase+5, "connection not found")
	ErrConnectionExists    = NewCodeError(registryBase+6, "connection exists")
	ErrNullConnection      = NewCodeError(registryBase+7, "null connection")
)

// Auth errors.
var (
	ErrPasswordAlreadySet = NewCodeError(authBase+1, "password already set")
	ErrPasswordMismatch   = NewCodeError(authBase+2, "password mismatch")
)

// Verification errors.
var (
	ErrVerificationExists   = NewCodeError(verificationBase+1, "verification exists")
	ErrVerificationNotFound = NewCodeError(verificationBase+2, "verification not found")
	ErrInvalidVerification  = NewCodeError(verificationBase+3, "invalid verification")
)

// Permission errors.
var (
	ErrNoPermission          = NewCodeError(permissionBase+1, "no permission")
	ErrGroupRoomUnusable     = NewCodeError(permissionBase+2, "group room unusable")
	ErrGroupUserLevelInvalid = NewCodeError(permissionBase+3, "group user level invalid")
)

// TLS errors.
var (
	ErrNullTlsCallback = NewCodeError(tlsBase+1, "null tls callback")
	ErrNullTlsContext  = NewCodeError(tlsBase+2, "null tls context")
)
