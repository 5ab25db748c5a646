package session

import (
	"image"
	"image/color"
	"log"
	"time"

	"github.com/chewxy/math32"
	"github.com/ha55an123/Barcam-Backup/pkg/decode"
	"github.com/ha55an123/Barcam-Backup/pkg/scanlog"
	"gocv.io/x/gocv"
)

var (
	newScanColor = color.RGBA{R: 0, G: 255, B: 0, A: 255} // new this tick
	repeatColor  = color.RGBA{R: 255, G: 0, B: 0, A: 255} // repeat of last identifier
)

// processFrame runs the per-tick logic on one frame: decode, dedup,
// persist, side effects, annotation, and conversion to a display image.
// It returns false when the frame could not be converted for display.
func (s *Session) processFrame(frame *gocv.Mat) (image.Image, bool) {
	symbols := s.decodeFrame(frame)

	for _, sym := range symbols {
		s.handleSymbol(frame, sym)
	}

	return s.toDisplay(frame)
}

// decodeFrame invokes the decode capability. Any failure is a normal
// zero-symbol tick, reported as a soft warning at most.
func (s *Session) decodeFrame(frame *gocv.Mat) []decode.Symbol {
	img, err := frame.ToImage()
	if err != nil {
		log.Printf("Failed to convert frame for decoding: %v", err)
		return nil
	}
	symbols, err := s.decoder.Decode(img)
	if err != nil {
		log.Printf("Decode failed: %v", err)
		return nil
	}
	return symbols
}

// handleSymbol processes one decoded symbol independently of any others
// found in the same frame: annotate it, and if its identifier is new,
// persist and dispatch side effects.
func (s *Session) handleSymbol(frame *gocv.Mat, sym decode.Symbol) {
	s.mu.Lock()
	repeat := sym.Payload != "" && sym.Payload == s.lastPayload
	s.mu.Unlock()

	col := newScanColor
	if repeat {
		col = repeatColor
	}
	annotate(frame, sym, col)

	sku := decode.ExtractSKU(sym.Payload)
	if s.seen.Contains(sku) {
		return
	}
	s.seen.Insert(sku)

	// At-most-once persistence: the identifier stays seen even when a
	// write fails, so hardware side effects never re-fire for one code.
	if _, err := s.store.SaveImage(sku, *frame); err != nil {
		log.Printf("Failed to write image: %v", err)
		s.emitStatus("failed to save scan image")
	}
	if err := s.store.Append(scanlog.Record{Timestamp: scanlog.Now(), SKU: sku}); err != nil {
		log.Printf("Failed to write log: %v", err)
		s.emitStatus("failed to write order log")
	}

	s.dispatcher.NotifyNewScan(sku)

	s.mu.Lock()
	s.lastPayload = sym.Payload
	s.mu.Unlock()

	s.emitScan(scanlog.Record{
		Timestamp: time.Now().Format(displayTimeLayout),
		SKU:       sku,
	})
}

// annotate draws the symbol's region outline and decoded text onto the
// frame. Drawing problems never fail the tick; the unannotated frame is
// simply used.
func annotate(frame *gocv.Mat, sym decode.Symbol, col color.RGBA) {
	if frame.Empty() || sym.Bounds.Empty() {
		return
	}
	bounds := sym.Bounds.Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows()))
	if bounds.Empty() {
		return
	}
	gocv.Rectangle(frame, bounds, col, 3)
	origin := image.Pt(bounds.Min.X, bounds.Min.Y-10)
	if origin.Y < 0 {
		origin.Y = bounds.Max.Y + 20
	}
	gocv.PutText(frame, sym.Payload, origin, gocv.FontHersheySimplex, 0.8, col, 2)
}

// toDisplay produces the color-converted, aspect-preserving scaled copy of
// the frame for the shell.
func (s *Session) toDisplay(frame *gocv.Mat) (image.Image, bool) {
	if frame.Empty() {
		return nil, false
	}

	s.mu.Lock()
	target := s.display
	s.mu.Unlock()

	w, h := fitBox(frame.Cols(), frame.Rows(), target.X, target.Y)
	if w <= 0 || h <= 0 {
		return nil, false
	}

	scaled := gocv.NewMat()
	defer scaled.Close()
	gocv.Resize(*frame, &scaled, image.Pt(w, h), 0, 0, gocv.InterpolationArea)

	img, err := scaled.ToImage()
	if err != nil {
		return nil, false
	}
	return img, true
}

// fitBox scales (w, h) to fit inside (maxW, maxH) preserving aspect ratio.
func fitBox(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 || maxW <= 0 || maxH <= 0 {
		return 0, 0
	}
	scale := math32.Min(float32(maxW)/float32(w), float32(maxH)/float32(h))
	fitW := int(math32.Round(float32(w) * scale))
	fitH := int(math32.Round(float32(h) * scale))
	if fitW < 1 {
		fitW = 1
	}
	if fitH < 1 {
		fitH = 1
	}
	return fitW, fitH
}
