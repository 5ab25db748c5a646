package session

import (
	"errors"
	"fmt"
)

// ErrAlreadyRunning is returned by Start while a session is running.
var ErrAlreadyRunning = errors.New("session is already running")

// ErrNotRunning is returned by Snapshot outside the Running state.
var ErrNotRunning = errors.New("session is not running")

// SerialOpenError is fatal to Start: the requested serial port could not
// be opened. No handle is retained.
type SerialOpenError struct {
	Port string
	Err  error
}

func (e *SerialOpenError) Error() string {
	return fmt.Sprintf("serial error on %s: %v", e.Port, e.Err)
}

func (e *SerialOpenError) Unwrap() error { return e.Err }

// CameraOpenError is fatal to Start: no camera could be opened. Any serial
// link opened earlier in the same Start is closed again.
type CameraOpenError struct {
	Err error
}

func (e *CameraOpenError) Error() string {
	return fmt.Sprintf("camera error: %v", e.Err)
}

func (e *CameraOpenError) Unwrap() error { return e.Err }

// ReadFailure is fatal to the current Running period: the device returned
// no data. The session transitions to Stopped and reports it.
type ReadFailure struct {
	Err error
}

func (e *ReadFailure) Error() string {
	return fmt.Sprintf("camera disconnected or returned no frames: %v", e.Err)
}

func (e *ReadFailure) Unwrap() error { return e.Err }
