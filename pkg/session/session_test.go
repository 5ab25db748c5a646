package session

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ha55an123/Barcam-Backup/pkg/camera"
	"github.com/ha55an123/Barcam-Backup/pkg/decode"
	"github.com/ha55an123/Barcam-Backup/pkg/scanlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDecoder returns the same symbols every tick.
type stubDecoder struct {
	symbols []decode.Symbol
	err     error
}

func (d *stubDecoder) Decode(img image.Image) ([]decode.Symbol, error) {
	return d.symbols, d.err
}

// fakeLink is a serial link double recording sends and closes.
type fakeLink struct {
	mu     sync.Mutex
	sent   []string
	closed int
}

func (f *fakeLink) Send(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeLink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeLink) Port() string { return "FAKE0" }

func (f *fakeLink) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeLink) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// scanRecorder collects OnScan records.
type scanRecorder struct {
	mu   sync.Mutex
	recs []scanlog.Record
}

func (r *scanRecorder) record(rec scanlog.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
}

func (r *scanRecorder) Records() []scanlog.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]scanlog.Record, len(r.recs))
	copy(out, r.recs)
	return out
}

func testOptions(t *testing.T) StartOptions {
	t.Helper()
	return StartOptions{
		SaveRoot:     t.TempDir(),
		Order:        "ORD1",
		TickInterval: 5 * time.Millisecond,
		Device:       camera.NewMock(320, 240),
	}
}

func TestStart_SerialFailureLeavesNoCamera(t *testing.T) {
	s := New(&stubDecoder{})

	cameraOpened := false
	s.openSerial = func(port string, baud int) (forwardLink, error) {
		return nil, fmt.Errorf("no such port")
	}
	s.openCamera = func(opts StartOptions) (camera.Device, error) {
		cameraOpened = true
		return camera.NewMock(320, 240), nil
	}

	opts := testOptions(t)
	opts.Device = nil
	opts.SerialPort = "COM99"

	err := s.Start(opts)
	require.Error(t, err)

	var serialErr *SerialOpenError
	require.ErrorAs(t, err, &serialErr)
	assert.Equal(t, "COM99", serialErr.Port)
	assert.False(t, cameraOpened, "camera must not be opened when the serial port fails")
	assert.Equal(t, Idle, s.State())
}

func TestStart_CameraFailureClosesSerial(t *testing.T) {
	s := New(&stubDecoder{})

	link := &fakeLink{}
	s.openSerial = func(port string, baud int) (forwardLink, error) {
		return link, nil
	}
	s.openCamera = func(opts StartOptions) (camera.Device, error) {
		return nil, fmt.Errorf("no camera")
	}

	opts := testOptions(t)
	opts.Device = nil
	opts.SerialPort = "COM3"

	err := s.Start(opts)
	require.Error(t, err)

	var cameraErr *CameraOpenError
	require.ErrorAs(t, err, &cameraErr)
	assert.Equal(t, 1, link.Closed(), "serial link must be closed when the camera fails")
	assert.Equal(t, Idle, s.State())
}

func TestStart_WhileRunning(t *testing.T) {
	s := New(&stubDecoder{})

	require.NoError(t, s.Start(testOptions(t)))
	defer s.Stop()

	err := s.Start(testOptions(t))
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestStop_Idempotent(t *testing.T) {
	s := New(&stubDecoder{})

	// Safe before the first start.
	s.Stop()
	assert.Equal(t, Idle, s.State())

	require.NoError(t, s.Start(testOptions(t)))
	assert.Equal(t, Running, s.State())

	s.Stop()
	assert.Equal(t, Stopped, s.State())

	// Second stop is a no-op.
	s.Stop()
	assert.Equal(t, Stopped, s.State())
}

func TestRestartAfterStop(t *testing.T) {
	s := New(&stubDecoder{})

	require.NoError(t, s.Start(testOptions(t)))
	s.Stop()

	require.NoError(t, s.Start(testOptions(t)))
	assert.Equal(t, Running, s.State())
	s.Stop()
}

func TestTick_TwoNewSymbolsPersistedOnce(t *testing.T) {
	bounds := image.Rect(10, 10, 60, 60)
	dec := &stubDecoder{symbols: []decode.Symbol{
		{Payload: "A-1 extra", Bounds: bounds, Format: "QR_CODE"},
		{Payload: "B-2", Bounds: bounds, Format: "CODE_128"},
	}}
	s := New(dec)

	scans := &scanRecorder{}
	s.OnScan(scans.record)

	link := &fakeLink{}
	s.openSerial = func(port string, baud int) (forwardLink, error) {
		return link, nil
	}

	opts := testOptions(t)
	opts.SerialPort = "FAKE0"

	require.NoError(t, s.Start(opts))

	require.Eventually(t, func() bool {
		return s.Count() == 2
	}, time.Second, 5*time.Millisecond)

	// Let several more ticks see the same symbols.
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	store := scanlog.NewStore(opts.SaveRoot, opts.Order)
	records, err := store.Replay()
	require.NoError(t, err)
	require.Len(t, records, 2, "repeated symbols must not be persisted again")
	assert.Equal(t, "A", records[0].SKU)
	assert.Equal(t, "B", records[1].SKU)

	recs := scans.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "A", recs[0].SKU)
	assert.Equal(t, "B", recs[1].SKU)

	assert.Equal(t, []string{"A", "B"}, link.Sent())
}

func TestTick_PersistFailureKeepsIdentifierSeen(t *testing.T) {
	dec := &stubDecoder{symbols: []decode.Symbol{{Payload: "A-1"}}}
	s := New(dec)

	link := &fakeLink{}
	s.openSerial = func(port string, baud int) (forwardLink, error) {
		return link, nil
	}

	// A file where the order folder should be makes every persist fail.
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "ORD1"), []byte("x"), 0644))

	opts := StartOptions{
		SaveRoot:     root,
		Order:        "ORD1",
		SerialPort:   "FAKE0",
		TickInterval: 5 * time.Millisecond,
		Device:       camera.NewMock(320, 240),
	}
	require.NoError(t, s.Start(opts))

	require.Eventually(t, func() bool {
		return s.Count() == 1
	}, time.Second, 5*time.Millisecond)

	// Further ticks see the same symbol; the identifier stayed seen, so
	// the side effects must not re-fire.
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	assert.Equal(t, []string{"A"}, link.Sent())
}

func TestReadFailure_StopsSession(t *testing.T) {
	s := New(&stubDecoder{})

	errs := make(chan error, 1)
	s.OnError(func(err error) {
		select {
		case errs <- err:
		default:
		}
	})

	mock := camera.NewMock(320, 240)
	mock.FailAfter = 1

	opts := testOptions(t)
	opts.Device = mock

	require.NoError(t, s.Start(opts))

	select {
	case err := <-errs:
		var rf *ReadFailure
		assert.ErrorAs(t, err, &rf)
	case <-time.After(time.Second):
		t.Fatal("expected a read failure")
	}

	require.Eventually(t, func() bool {
		return s.State() == Stopped
	}, time.Second, 5*time.Millisecond)
	assert.False(t, mock.IsOpened(), "device must be released on read failure")

	// Stop after a read failure is still a safe no-op.
	s.Stop()
}

func TestStart_ReplaySeedsDedupAndHistory(t *testing.T) {
	opts := testOptions(t)

	store := scanlog.NewStore(opts.SaveRoot, opts.Order)
	require.NoError(t, store.Append(scanlog.Record{Timestamp: "20240101-120000", SKU: "A"}))
	require.NoError(t, store.Append(scanlog.Record{Timestamp: "20240101-120001", SKU: "B"}))
	// A duplicate line means the log was modified externally; replay must
	// still yield a set of size 2.
	require.NoError(t, store.Append(scanlog.Record{Timestamp: "20240101-120002", SKU: "A"}))

	s := New(&stubDecoder{})
	scans := &scanRecorder{}
	s.OnScan(scans.record)

	require.NoError(t, s.Start(opts))
	defer s.Stop()

	assert.Equal(t, 2, s.Count())
	recs := scans.Records()
	require.Len(t, recs, 3, "the full history is replayed in file order")
	assert.Equal(t, "A", recs[0].SKU)
	assert.Equal(t, "B", recs[1].SKU)
	assert.Equal(t, "A", recs[2].SKU)
}

func TestStop_ClearsDedupForReseed(t *testing.T) {
	dec := &stubDecoder{symbols: []decode.Symbol{{Payload: "A"}}}
	s := New(dec)

	opts := testOptions(t)
	require.NoError(t, s.Start(opts))
	require.Eventually(t, func() bool {
		return s.Count() == 1
	}, time.Second, 5*time.Millisecond)
	s.Stop()

	assert.Equal(t, 0, s.Count(), "stop clears the session's dedup state")

	// A fresh start against the same order re-seeds from the log.
	dec.symbols = nil
	opts.Device = camera.NewMock(320, 240)
	require.NoError(t, s.Start(opts))
	defer s.Stop()
	assert.Equal(t, 1, s.Count())
}

func TestClearSession(t *testing.T) {
	s := New(&stubDecoder{})

	s.seen.Insert("A")
	s.seen.Insert("B")
	require.Equal(t, 2, s.Count())

	s.ClearSession()
	assert.Equal(t, 0, s.Count())
}

func TestSnapshot_NotRunning(t *testing.T) {
	s := New(&stubDecoder{})

	_, err := s.Snapshot()
	assert.ErrorIs(t, err, ErrNotRunning)

	require.NoError(t, s.Start(testOptions(t)))
	s.Stop()

	_, err = s.Snapshot()
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestSnapshot_BypassesDedup(t *testing.T) {
	s := New(&stubDecoder{})

	opts := testOptions(t)
	require.NoError(t, s.Start(opts))
	defer s.Stop()

	rec1, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, ManualSKU, rec1.SKU)

	rec2, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, ManualSKU, rec2.SKU)

	// Manual captures are never deduplicated and never enter the set.
	assert.Equal(t, 0, s.Count())

	store := scanlog.NewStore(opts.SaveRoot, opts.Order)
	records, err := store.Replay()
	require.NoError(t, err)
	manual := 0
	for _, rec := range records {
		if rec.SKU == ManualSKU {
			manual++
		}
	}
	assert.Equal(t, 2, manual)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "stopped", Stopped.String())
}

func TestErrorTypes(t *testing.T) {
	base := errors.New("boom")

	serr := &SerialOpenError{Port: "COM3", Err: base}
	assert.ErrorIs(t, serr, base)
	assert.Contains(t, serr.Error(), "COM3")

	cerr := &CameraOpenError{Err: base}
	assert.ErrorIs(t, cerr, base)

	rerr := &ReadFailure{Err: base}
	assert.ErrorIs(t, rerr, base)
}
