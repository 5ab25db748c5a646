package session

import (
	"image"
	"testing"

	"github.com/ha55an123/Barcam-Backup/pkg/decode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestFitBox(t *testing.T) {
	tests := []struct {
		name             string
		w, h, maxW, maxH int
		wantW, wantH     int
	}{
		{"wide frame into 4:3 box", 1280, 720, 640, 480, 640, 360},
		{"tall frame into 4:3 box", 720, 1280, 640, 480, 270, 480},
		{"exact fit", 640, 480, 640, 480, 640, 480},
		{"upscale preserves ratio", 320, 240, 640, 480, 640, 480},
		{"degenerate frame", 0, 480, 640, 480, 0, 0},
		{"degenerate box", 640, 480, 0, 480, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := fitBox(tt.w, tt.h, tt.maxW, tt.maxH)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestAnnotate_DoesNotFailOnBadBounds(t *testing.T) {
	frame := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer frame.Close()

	// None of these may panic or fail the tick.
	annotate(&frame, decode.Symbol{Payload: "A"}, newScanColor)
	annotate(&frame, decode.Symbol{Payload: "A", Bounds: image.Rect(-50, -50, -10, -10)}, newScanColor)
	annotate(&frame, decode.Symbol{Payload: "A", Bounds: image.Rect(1000, 1000, 2000, 2000)}, repeatColor)
	annotate(&frame, decode.Symbol{Payload: "A", Bounds: image.Rect(10, 0, 100, 40)}, newScanColor)

	empty := gocv.NewMat()
	defer empty.Close()
	annotate(&empty, decode.Symbol{Payload: "A", Bounds: image.Rect(0, 0, 10, 10)}, newScanColor)
}

func TestToDisplay(t *testing.T) {
	s := New(&stubDecoder{})
	s.SetDisplaySize(320, 240)

	frame := gocv.NewMatWithSize(720, 1280, gocv.MatTypeCV8UC3)
	defer frame.Close()

	img, ok := s.toDisplay(&frame)
	require.True(t, ok)
	require.NotNil(t, img)
	bounds := img.Bounds()
	assert.Equal(t, 320, bounds.Dx())
	assert.Equal(t, 180, bounds.Dy())
}

func TestToDisplay_EmptyFrame(t *testing.T) {
	s := New(&stubDecoder{})

	empty := gocv.NewMat()
	defer empty.Close()

	_, ok := s.toDisplay(&empty)
	assert.False(t, ok)
}
