package notify

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLink records forwarded identifiers and can be told to fail.
type fakeLink struct {
	mu     sync.Mutex
	sent   []string
	failed bool
}

func (f *fakeLink) Send(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed {
		return fmt.Errorf("write failed")
	}
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeLink) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

// toneRecorder collects played tones.
type toneRecorder struct {
	mu    sync.Mutex
	tones []bool
}

func (r *toneRecorder) play(success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tones = append(r.tones, success)
}

func (r *toneRecorder) Tones() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bool, len(r.tones))
	copy(out, r.tones)
	return out
}

func TestNotifyNewScan_ForwardsAndPlaysSuccessTone(t *testing.T) {
	link := &fakeLink{}
	rec := &toneRecorder{}
	d := newDispatcher(link, true, rec.play)

	d.NotifyNewScan("SKU1")
	d.Close()

	assert.Equal(t, []string{"SKU1"}, link.Sent())
	assert.Equal(t, []bool{true}, rec.Tones())
}

func TestNotifyNewScan_WriteFailureSelectsFailureTone(t *testing.T) {
	link := &fakeLink{failed: true}
	rec := &toneRecorder{}
	d := newDispatcher(link, true, rec.play)

	d.NotifyNewScan("SKU1")
	d.Close()

	assert.Empty(t, link.Sent())
	assert.Equal(t, []bool{false}, rec.Tones())
}

func TestNotifyNewScan_NoLink(t *testing.T) {
	rec := &toneRecorder{}
	d := newDispatcher(nil, true, rec.play)

	d.NotifyNewScan("SKU1")
	d.Close()

	assert.Equal(t, []bool{true}, rec.Tones())
}

func TestNotifyNewScan_BeepDisabled(t *testing.T) {
	link := &fakeLink{}
	rec := &toneRecorder{}
	d := newDispatcher(link, false, rec.play)

	d.NotifyNewScan("SKU1")
	d.Close()

	// Forward still happens; only the audio cue is gated.
	assert.Equal(t, []string{"SKU1"}, link.Sent())
	assert.Empty(t, rec.Tones())
}

func TestClose_DrainsQueuedCues(t *testing.T) {
	rec := &toneRecorder{}
	d := newDispatcher(nil, true, rec.play)

	for i := 0; i < 5; i++ {
		d.Cue(true)
	}
	d.Close()

	assert.Len(t, rec.Tones(), 5)
}

func TestClose_Idempotent(t *testing.T) {
	d := newDispatcher(nil, true, func(bool) {})

	done := make(chan struct{})
	go func() {
		d.Close()
		d.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
}

func TestCue_AfterCloseIsDiscarded(t *testing.T) {
	rec := &toneRecorder{}
	d := newDispatcher(nil, true, rec.play)
	d.Close()

	assert.NotPanics(t, func() { d.Cue(true) })
	assert.Empty(t, rec.Tones())
}

func TestNotifyNewScan_NeverBlocks(t *testing.T) {
	// A stalled tone player must not block the caller once the queue is
	// full; further cues are dropped.
	block := make(chan struct{})
	d := newDispatcher(nil, true, func(bool) { <-block })

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			d.NotifyNewScan("SKU1")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("NotifyNewScan blocked on a stalled tone player")
	}

	close(block)
	d.Close()
}

func TestLink_CloseWithoutOpenConn(t *testing.T) {
	l := &Link{port: "COM9"}
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	assert.Error(t, l.Send("SKU1"))
}
