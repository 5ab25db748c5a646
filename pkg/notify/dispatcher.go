package notify

import (
	"log"
	"sync"

	"github.com/gen2brain/beeep"
)

const (
	successFreq     = 1000
	successDuration = 150 // ms
	failureFreq     = 400
	failureDuration = 300 // ms
)

// Forwarder forwards one identifier to external hardware.
type Forwarder interface {
	Send(id string) error
}

// toneEvent is the value-only hand-off to the tone goroutine. It carries
// no references to the link or any other session state.
type toneEvent struct {
	success bool
}

// Dispatcher executes the side effects of a new scan: forward the
// identifier over the serial link (if any), then play a success or failure
// tone. The forward happens on the caller's goroutine, which owns the
// link; only the tone runs detached, so a slow audio backend never delays
// the next tick.
type Dispatcher struct {
	beep bool
	link Forwarder

	// tone plays the cue. Replaceable in tests.
	tone func(success bool)

	mu     sync.Mutex
	closed bool
	events chan toneEvent
	done   chan struct{}
}

// NewDispatcher creates a dispatcher for one running session. link may be
// nil when no hardware forwarding is configured; beep gates the audio cue.
func NewDispatcher(link Forwarder, beep bool) *Dispatcher {
	return newDispatcher(link, beep, playTone)
}

func newDispatcher(link Forwarder, beep bool, tone func(success bool)) *Dispatcher {
	d := &Dispatcher{
		beep:   beep,
		link:   link,
		tone:   tone,
		events: make(chan toneEvent, 16),
		done:   make(chan struct{}),
	}
	go d.playTones()
	return d
}

// NotifyNewScan forwards the identifier and queues the audio cue. A serial
// write failure selects the failure tone instead of the success tone; it
// never propagates to the caller. Cues are best-effort: when the queue is
// full the event is dropped.
func (d *Dispatcher) NotifyNewScan(id string) {
	success := true
	if d.link != nil {
		if err := d.link.Send(id); err != nil {
			log.Printf("Serial forward failed for %q: %v", id, err)
			success = false
		}
	}

	d.Cue(success)
}

// Cue queues the audio cue alone, without forwarding. Used for manual
// captures, which never reach the hardware. Cues after Close are
// discarded.
func (d *Dispatcher) Cue(success bool) {
	if !d.beep {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.events <- toneEvent{success: success}:
	default:
		log.Printf("Tone queue full, dropping cue")
	}
}

// Close stops the tone goroutine after the queued cues drain. Safe to call
// more than once. It does not close the link; the session owns that.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
	d.mu.Unlock()
	<-d.done
}

// playTones runs on the detached tone goroutine.
func (d *Dispatcher) playTones() {
	defer close(d.done)
	for ev := range d.events {
		d.tone(ev.success)
	}
}

// playTone plays the distinct success or failure cue.
func playTone(success bool) {
	var err error
	if success {
		err = beeep.Beep(successFreq, successDuration)
	} else {
		err = beeep.Beep(failureFreq, failureDuration)
	}
	if err != nil {
		log.Printf("Failed to play tone: %v", err)
	}
}
