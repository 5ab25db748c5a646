package camera

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Capture wraps an opened gocv video capture handle bound to an index and
// the backend that opened it.
type Capture struct {
	index   int
	backend Backend

	mu     sync.Mutex
	cap    *gocv.VideoCapture
	opened bool
}

// ErrDeviceClosed is returned by Read after the device has been released.
var ErrDeviceClosed = fmt.Errorf("capture device is closed")

// ErrEmptyFrame is returned by Read when the device reported success but
// delivered no pixel data.
var ErrEmptyFrame = fmt.Errorf("capture device returned an empty frame")

// Read reads one frame into dst.
func (c *Capture) Read(dst *gocv.Mat) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.opened || c.cap == nil {
		return ErrDeviceClosed
	}
	if ok := c.cap.Read(dst); !ok {
		return fmt.Errorf("read from camera %d: no frame", c.index)
	}
	if dst.Empty() {
		return ErrEmptyFrame
	}
	return nil
}

// Close releases the capture handle. Safe to call more than once; the
// handle is released exactly once and never read from afterwards.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.opened {
		return nil
	}
	c.opened = false

	cap := c.cap
	c.cap = nil
	if cap == nil {
		return nil
	}
	if err := cap.Close(); err != nil {
		return fmt.Errorf("failed to release camera %d: %w", c.index, err)
	}
	return nil
}

// Index returns the device index this capture was opened on.
func (c *Capture) Index() int {
	return c.index
}

// Backend returns the name of the backend that opened the device.
func (c *Capture) Backend() string {
	return c.backend.Name
}

// IsOpened returns whether the device currently holds a live handle.
func (c *Capture) IsOpened() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened
}

// setResolution requests a capture resolution. Some cameras ignore this,
// which is fine.
func (c *Capture) setResolution(width, height int) {
	if c.cap == nil || width <= 0 || height <= 0 {
		return
	}
	c.cap.Set(gocv.VideoCaptureFrameWidth, float64(width))
	c.cap.Set(gocv.VideoCaptureFrameHeight, float64(height))
}
