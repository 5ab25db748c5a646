// Package session drives the capture-and-persist pipeline: it owns the
// camera and the optional serial link, ticks the frame processor on a
// fixed period, and coordinates dedup, persistence and side effects. One
// session serves one operator, one camera and one order at a time.
package session

import (
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"github.com/ha55an123/Barcam-Backup/pkg/camera"
	"github.com/ha55an123/Barcam-Backup/pkg/config"
	"github.com/ha55an123/Barcam-Backup/pkg/decode"
	"github.com/ha55an123/Barcam-Backup/pkg/dedup"
	"github.com/ha55an123/Barcam-Backup/pkg/notify"
	"github.com/ha55an123/Barcam-Backup/pkg/scanlog"
	"gocv.io/x/gocv"
)

// ManualSKU is the sentinel identifier for operator-triggered snapshots.
// Manual captures bypass dedup entirely.
const ManualSKU = "manual"

// displayTimeLayout is the timestamp shown in the shell's scan table.
const displayTimeLayout = "2006-01-02 15:04:05"

// State is the session lifecycle state.
type State int

const (
	// Idle is the initial state, before the first Start.
	Idle State = iota
	// Running means the periodic frame cycle is active.
	Running
	// Stopped is terminal for one activation; a new Start re-enters Running.
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StartOptions is the explicit configuration snapshot handed to Start.
// The session never reads a process-wide settings object.
type StartOptions struct {
	CameraIndex  int    // -1 requests find-any
	MaxScan      int    // highest index probed by find-any
	FrameWidth   int    // requested capture resolution
	FrameHeight  int
	SerialPort   string // empty means no hardware forwarding
	SerialBaud   int
	SaveRoot     string
	Order        string
	BeepEnabled  bool
	TickInterval time.Duration

	// Device, when set, is used instead of resolving a camera. Used for
	// mock operation without hardware.
	Device camera.Device
}

// OptionsFromConfig builds StartOptions from the saved configuration.
func OptionsFromConfig(cfg *config.Config) StartOptions {
	return StartOptions{
		CameraIndex:  cfg.Camera.Index,
		MaxScan:      cfg.Camera.MaxScan,
		FrameWidth:   cfg.Camera.FrameWidth,
		FrameHeight:  cfg.Camera.FrameHeight,
		SerialPort:   cfg.Serial.Port,
		SerialBaud:   cfg.Serial.Baud,
		SaveRoot:     cfg.Storage.SaveRoot,
		Order:        cfg.Storage.Order,
		BeepEnabled:  cfg.Settings.BeepEnabled,
		TickInterval: cfg.Camera.TickInterval,
	}
}

// forwardLink is what the session keeps of an opened serial connection.
type forwardLink interface {
	notify.Forwarder
	Close() error
	Port() string
}

// Session is the state machine owning the device and serial handles.
type Session struct {
	decoder decode.Decoder

	// openSerial and openCamera are replaceable in tests.
	openSerial func(port string, baud int) (forwardLink, error)
	openCamera func(opts StartOptions) (camera.Device, error)

	mu          sync.Mutex
	state       State
	dev         camera.Device
	link        forwardLink
	dispatcher  *notify.Dispatcher
	store       *scanlog.Store
	seen        *dedup.Set
	lastPayload string
	display     image.Point
	stop        chan struct{}
	done        chan struct{}
	stopping    bool

	// readMu serializes the periodic tick's device read with the
	// out-of-band snapshot read.
	readMu sync.Mutex

	cbMu     sync.RWMutex
	onFrame  []func(image.Image)
	onStatus []func(string)
	onScan   []func(scanlog.Record)
	onError  []func(error)
}

// New creates an Idle session using the given decode capability.
func New(decoder decode.Decoder) *Session {
	return &Session{
		decoder: decoder,
		seen:    dedup.NewSet(),
		openSerial: func(port string, baud int) (forwardLink, error) {
			return notify.OpenLink(port, baud)
		},
		openCamera: func(opts StartOptions) (camera.Device, error) {
			resolver := camera.NewResolver(opts.FrameWidth, opts.FrameHeight)
			if opts.CameraIndex >= 0 {
				dev, err := resolver.Open(opts.CameraIndex)
				if err == nil {
					return dev, nil
				}
				// The camera may sit at a different index; fall through
				// to scanning.
			}
			return resolver.FindAny(maxScan(opts))
		},
	}
}

func maxScan(opts StartOptions) int {
	if opts.MaxScan <= 0 {
		return 8
	}
	return opts.MaxScan
}

// OnFrame registers a callback receiving the per-tick display frame.
// Callbacks are invoked without locks and must return quickly.
func (s *Session) OnFrame(cb func(image.Image)) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.onFrame = append(s.onFrame, cb)
}

// OnStatus registers a callback receiving status text transitions.
func (s *Session) OnStatus(cb func(string)) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.onStatus = append(s.onStatus, cb)
}

// OnScan registers a callback receiving each newly persisted scan and the
// replayed history at Start.
func (s *Session) OnScan(cb func(scanlog.Record)) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.onScan = append(s.onScan, cb)
}

// OnError registers a callback receiving fatal errors.
func (s *Session) OnError(cb func(error)) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.onError = append(s.onError, cb)
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Count returns the number of distinct identifiers seen this session.
func (s *Session) Count() int {
	return s.seen.Len()
}

// Start opens the serial link (if requested), resolves and opens a
// camera, replays the order log into the dedup set and the scan history,
// and begins the periodic frame cycle.
//
// The serial port is acquired before the camera so a misconfigured port
// never leaves an opened camera behind; symmetrically, a camera failure
// closes the just-opened link. Either failure leaves no partial state.
func (s *Session) Start(opts StartOptions) error {
	s.mu.Lock()
	if s.state == Running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}

	var link forwardLink
	if opts.SerialPort != "" {
		l, err := s.openSerial(opts.SerialPort, opts.SerialBaud)
		if err != nil {
			s.mu.Unlock()
			return &SerialOpenError{Port: opts.SerialPort, Err: err}
		}
		link = l
	}

	dev := opts.Device
	if dev == nil {
		d, err := s.openCamera(opts)
		if err != nil {
			if link != nil {
				link.Close()
			}
			s.mu.Unlock()
			return &CameraOpenError{Err: err}
		}
		dev = d
	}

	store := scanlog.NewStore(opts.SaveRoot, opts.Order)
	history, err := store.Replay()
	if err != nil {
		// A damaged log must not block scanning; whatever parsed seeds
		// the session.
		log.Printf("Failed to replay order log: %v", err)
	}
	s.seen.Clear()
	for _, rec := range history {
		s.seen.Insert(rec.SKU)
	}

	var fw notify.Forwarder
	if link != nil {
		fw = link
	}

	interval := opts.TickInterval
	if interval <= 0 {
		interval = 30 * time.Millisecond
	}

	s.dev = dev
	s.link = link
	s.dispatcher = notify.NewDispatcher(fw, opts.BeepEnabled)
	s.store = store
	s.lastPayload = ""
	if s.display == (image.Point{}) {
		s.display = image.Pt(displayWidth, displayHeight)
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.stopping = false
	s.state = Running
	s.mu.Unlock()

	for _, rec := range history {
		s.emitScan(rec)
	}
	if link != nil {
		s.emitStatus(fmt.Sprintf("connected to %s", link.Port()))
	}
	s.emitStatus(fmt.Sprintf("camera started (index %d)", dev.Index()))

	go s.run(dev, interval)
	return nil
}

// Stop cancels the periodic tick, waits for an in-flight tick to finish,
// releases the device and the serial link, and clears the session's dedup
// state. Idempotent and safe to call from any state.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state != Running || s.stopping {
		s.mu.Unlock()
		return
	}
	s.stopping = true
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
}

// Snapshot reads one frame out-of-band from the periodic cycle and
// persists it under the manual sentinel identifier, bypassing dedup.
// Valid only while Running; otherwise it fails without any I/O.
func (s *Session) Snapshot() (scanlog.Record, error) {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return scanlog.Record{}, ErrNotRunning
	}
	dev, store, dispatcher := s.dev, s.store, s.dispatcher
	s.mu.Unlock()

	frame := gocv.NewMat()
	defer frame.Close()

	s.readMu.Lock()
	err := dev.Read(&frame)
	s.readMu.Unlock()
	if err != nil {
		return scanlog.Record{}, fmt.Errorf("failed to capture snapshot: %w", err)
	}

	// Both writes are attempted; a failed image never blocks the log
	// record and vice versa.
	rec := scanlog.Record{Timestamp: scanlog.Now(), SKU: ManualSKU}
	var persistErr error
	if _, err := store.SaveImage(ManualSKU, frame); err != nil {
		persistErr = fmt.Errorf("failed to save snapshot image: %w", err)
	}
	if err := store.Append(rec); err != nil && persistErr == nil {
		persistErr = fmt.Errorf("failed to log snapshot: %w", err)
	}
	dispatcher.Cue(persistErr == nil)
	return rec, persistErr
}

// ClearSession resets the dedup set and the last-seen identifier. Explicit
// shell command, independent of Stop.
func (s *Session) ClearSession() {
	s.seen.Clear()
	s.mu.Lock()
	s.lastPayload = ""
	s.mu.Unlock()
}

// SetDisplaySize sets the target box for display frames. May be called
// before Start; defaults apply otherwise.
func (s *Session) SetDisplaySize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if width > 0 && height > 0 {
		s.display = image.Pt(width, height)
	}
}

const (
	displayWidth  = 640
	displayHeight = 480
)

// run is the control goroutine: one tick fully executes before the next is
// scheduled, so a slow decode delays capture instead of overlapping it.
func (s *Session) run(dev camera.Device, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			s.teardown(nil)
			return
		case <-ticker.C:
			if err := s.tick(dev); err != nil {
				s.teardown(err)
				return
			}
		}
	}
}

// tick runs one frame cycle. A failed read is fatal to the Running
// period: silently spinning against a detached camera is worse than
// stopping.
func (s *Session) tick(dev camera.Device) error {
	frame := gocv.NewMat()
	defer frame.Close()

	s.readMu.Lock()
	err := dev.Read(&frame)
	s.readMu.Unlock()
	if err != nil {
		return &ReadFailure{Err: err}
	}

	display, ok := s.processFrame(&frame)
	if !ok {
		s.emitStatus("frame conversion failed")
		return nil
	}
	s.emitFrame(display)
	return nil
}

// teardown releases everything exactly once and transitions to Stopped.
// Only the control goroutine calls it.
func (s *Session) teardown(cause error) {
	s.mu.Lock()
	dev, link, dispatcher := s.dev, s.link, s.dispatcher
	s.dev, s.link, s.dispatcher, s.store = nil, nil, nil, nil
	s.lastPayload = ""
	s.seen.Clear()
	s.state = Stopped
	done := s.done
	s.mu.Unlock()

	if dispatcher != nil {
		dispatcher.Close()
	}
	if dev != nil {
		if err := dev.Close(); err != nil {
			log.Printf("Error releasing camera: %v", err)
		}
	}
	if link != nil {
		if err := link.Close(); err != nil {
			log.Printf("Error closing serial port: %v", err)
		}
	}

	if cause != nil {
		s.emitError(cause)
		s.emitStatus("camera disconnected")
	} else {
		s.emitStatus("camera stopped")
	}
	close(done)
}

func (s *Session) emitFrame(img image.Image) {
	s.cbMu.RLock()
	cbs := make([]func(image.Image), len(s.onFrame))
	copy(cbs, s.onFrame)
	s.cbMu.RUnlock()
	for _, cb := range cbs {
		cb(img)
	}
}

func (s *Session) emitStatus(text string) {
	s.cbMu.RLock()
	cbs := make([]func(string), len(s.onStatus))
	copy(cbs, s.onStatus)
	s.cbMu.RUnlock()
	for _, cb := range cbs {
		cb(text)
	}
}

func (s *Session) emitScan(rec scanlog.Record) {
	s.cbMu.RLock()
	cbs := make([]func(scanlog.Record), len(s.onScan))
	copy(cbs, s.onScan)
	s.cbMu.RUnlock()
	for _, cb := range cbs {
		cb(rec)
	}
}

func (s *Session) emitError(err error) {
	s.cbMu.RLock()
	cbs := make([]func(error), len(s.onError))
	copy(cbs, s.onError)
	s.cbMu.RUnlock()
	for _, cb := range cbs {
		cb(err)
	}
}
