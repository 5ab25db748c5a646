package camera

import (
	"fmt"
	"log"
	"runtime"

	"gocv.io/x/gocv"
)

// Backend is one camera access strategy (a platform driver interface).
type Backend struct {
	Name string
	API  gocv.VideoCaptureAPI
}

// OpenError reports that no backend could open a camera.
type OpenError struct {
	Index int // -1 when every probed index failed
	Err   error
}

func (e *OpenError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("failed to open any camera: %v", e.Err)
	}
	return fmt.Sprintf("failed to open camera %d: %v", e.Index, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// Resolver opens capture devices, trying an ordered list of backend
// strategies until one succeeds. It holds no state besides the platform
// hint.
type Resolver struct {
	goos        string
	frameWidth  int
	frameHeight int
}

// NewResolver returns a Resolver for the current platform. The requested
// frame size is applied to every successfully opened device.
func NewResolver(frameWidth, frameHeight int) *Resolver {
	return &Resolver{
		goos:        runtime.GOOS,
		frameWidth:  frameWidth,
		frameHeight: frameHeight,
	}
}

// Backends returns the ordered backend strategies for the resolver's
// platform: the platform-preferred backend first, then the generic default.
func (r *Resolver) Backends() []Backend {
	switch r.goos {
	case "linux":
		return []Backend{
			{Name: "v4l2", API: gocv.VideoCaptureV4L2},
			{Name: "any", API: gocv.VideoCaptureAny},
		}
	case "windows":
		return []Backend{
			{Name: "dshow", API: gocv.VideoCaptureDshow},
			{Name: "any", API: gocv.VideoCaptureAny},
		}
	default:
		return []Backend{
			{Name: "any", API: gocv.VideoCaptureAny},
		}
	}
}

// Open opens the camera at index, trying each backend in order and
// returning the first that reports itself opened. A handle that opens but
// fails the opened check is released before the next candidate is tried.
func (r *Resolver) Open(index int) (*Capture, error) {
	var lastErr error
	for _, backend := range r.Backends() {
		cap, err := gocv.OpenVideoCaptureWithAPI(index, backend.API)
		if err != nil {
			lastErr = err
			continue
		}
		if !cap.IsOpened() {
			cap.Close()
			lastErr = fmt.Errorf("backend %s reported not opened", backend.Name)
			continue
		}

		dev := &Capture{
			index:   index,
			backend: backend,
			cap:     cap,
			opened:  true,
		}
		dev.setResolution(r.frameWidth, r.frameHeight)
		return dev, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no backends available")
	}
	return nil, &OpenError{Index: index, Err: lastErr}
}

// FindAny scans indices 0..maxIndex-1 in order using the same backend
// fallback per index and returns the first device that opens.
func (r *Resolver) FindAny(maxIndex int) (*Capture, error) {
	for index := 0; index < maxIndex; index++ {
		dev, err := r.Open(index)
		if err == nil {
			return dev, nil
		}
	}
	return nil, &OpenError{Index: -1, Err: fmt.Errorf("no camera found in indices 0..%d", maxIndex-1)}
}

// Detect probes indices 0..maxIndex-1 and returns those that open. Every
// probed handle is released before the next candidate.
func (r *Resolver) Detect(maxIndex int) []int {
	var found []int
	for index := 0; index < maxIndex; index++ {
		dev, err := r.Open(index)
		if err != nil {
			continue
		}
		if err := dev.Close(); err != nil {
			log.Printf("Error releasing probed camera %d: %v", index, err)
		}
		found = append(found, index)
	}
	return found
}
