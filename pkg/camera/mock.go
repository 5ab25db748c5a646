package camera

import (
	"sync"

	"gocv.io/x/gocv"
)

// Mock is a synthetic capture device for tests and development without
// camera hardware. It produces blank frames of a fixed size and can be
// told to fail after a number of reads to exercise disconnect handling.
type Mock struct {
	// FailAfter makes Read fail once this many frames were delivered.
	// Zero or negative means never fail.
	FailAfter int

	width  int
	height int

	mu     sync.Mutex
	opened bool
	reads  int
}

// NewMock creates an opened mock device producing width x height frames.
func NewMock(width, height int) *Mock {
	return &Mock{
		width:  width,
		height: height,
		opened: true,
	}
}

// Read fills dst with a blank frame.
func (m *Mock) Read(dst *gocv.Mat) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.opened {
		return ErrDeviceClosed
	}
	if m.FailAfter > 0 && m.reads >= m.FailAfter {
		return ErrEmptyFrame
	}
	m.reads++

	frame := gocv.NewMatWithSize(m.height, m.width, gocv.MatTypeCV8UC3)
	defer frame.Close()
	frame.CopyTo(dst)
	return nil
}

// Close marks the mock as released.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = false
	return nil
}

// Index returns the synthetic device index.
func (m *Mock) Index() int { return 0 }

// Backend returns the synthetic backend name.
func (m *Mock) Backend() string { return "mock" }

// IsOpened returns whether the mock still accepts reads.
func (m *Mock) IsOpened() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}

// Reads returns how many frames were delivered so far.
func (m *Mock) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}
