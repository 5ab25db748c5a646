package camera

import "gocv.io/x/gocv"

// Device defines the interface for capture devices (real or mocked).
type Device interface {
	// Read reads one frame into the given Mat. It returns an error when the
	// device produced no data or has been closed.
	Read(dst *gocv.Mat) error
	Close() error
	Index() int
	Backend() string
	IsOpened() bool
}

// Ensure Capture implements Device.
var _ Device = (*Capture)(nil)

// Ensure Mock implements Device.
var _ Device = (*Mock)(nil)
