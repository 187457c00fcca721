//go:build !linux

package net

import (
	"errors"
	"runtime"
)

var errPinUnsupported = errors.New("cpu pinning is only supported on linux")

// pinToCPU only locks the goroutine to its thread outside linux.
func pinToCPU(int) error {
	runtime.LockOSThread()
	return errPinUnsupported
}
