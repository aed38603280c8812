package errs

import (
	"fmt"
	"runtime/debug"
)

// ErrServerInternal is the sentinel a recovered panic is reported as.
var ErrServerInternal = NewCodeError(9000, "internal server error")

// ErrPanic converts a recovered panic value into a CodeError carrying the
// panic's stringified value and a captured stack trace as Detail. Used by
// safe.SafeGo to keep one misbehaving goroutine from taking down the process.
func ErrPanic(r any) error {
	if r == nil {
		return nil
	}
	return ErrServerInternal.WithDetail(fmt.Sprintf("%v\n%s", r, debug.Stack()))
}
