// Package rgerr implements the flat error type and panic/recover helpers
// used at pass-callback boundaries, generalizing errors.go from the
// teacher into a single reusable error across every package.
package rgerr

import (
	"fmt"
	"runtime"

	vk "github.com/vulkan-go/vulkan"
)

// Kind classifies an Error for the taxonomy in the error handling design:
// device-lost/alloc failures are fatal, out-of-date swapchain is
// recoverable, programmer errors panic in debug builds.
type Kind int

const (
	KindVulkan Kind = iota
	KindAlloc
	KindIO
	KindProgrammer
)

// Error is the single error type the graph returns; it never wraps a
// stack of causes, it flattens Vulkan result codes, allocator failures
// and IO errors into one enum-like struct.
type Error struct {
	Kind    Kind
	Result  vk.Result
	Message string
}

func (e *Error) Error() string {
	if e.Kind == KindVulkan {
		return fmt.Sprintf("vulkan error: %d: %s", e.Result, e.Message)
	}
	return e.Message
}

// IsError reports whether a vk.Result indicates failure.
func IsError(ret vk.Result) bool {
	return ret != vk.Success
}

// FromResult builds an Error from a Vulkan result code, or returns nil on success.
func FromResult(ret vk.Result) error {
	if !IsError(ret) {
		return nil
	}
	return &Error{Kind: KindVulkan, Result: ret, Message: callerFrame()}
}

// Alloc builds a KindAlloc error.
func Alloc(format string, args ...interface{}) error {
	return &Error{Kind: KindAlloc, Message: fmt.Sprintf(format, args...)}
}

// IO builds a KindIO error.
func IO(format string, args ...interface{}) error {
	return &Error{Kind: KindIO, Message: fmt.Sprintf(format, args...)}
}

func callerFrame() string {
	pc, file, line, ok := runtime.Caller(2)
	if !ok {
		return "unknown"
	}
	fn := runtime.FuncForPC(pc)
	name := "unknown"
	if fn != nil {
		name = fn.Name()
	}
	return fmt.Sprintf("%s (%s:%d)", name, file, line)
}

// OrPanic panics with err, running any finalizers first, matching
// orPanic from the teacher's errors.go.
func OrPanic(err error, finalizers ...func()) {
	if err != nil {
		for _, fn := range finalizers {
			fn()
		}
		panic(err)
	}
}

// CheckErr recovers a panic into *err. Used to bound pass callbacks,
// which per the error handling design may not return errors themselves
// and instead panic on unexpected failure.
func CheckErr(err *error) {
	if v := recover(); v != nil {
		if e, ok := v.(error); ok {
			*err = e
		} else {
			*err = fmt.Errorf("%+v", v)
		}
	}
}

// CheckErrStack is CheckErr but also captures a stack trace, for use at
// the top-level frame boundary where a panic should not be silent.
func CheckErrStack(err *error) {
	if v := recover(); v != nil {
		stack := make([]byte, 32*1024)
		n := runtime.Stack(stack, false)
		switch event := v.(type) {
		case error:
			*err = fmt.Errorf("%s\n%s", event.Error(), stack[:n])
		default:
			*err = fmt.Errorf("%+v\n%s", v, stack[:n])
		}
	}
}
