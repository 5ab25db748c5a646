// Package decode defines the barcode decoding capability consumed by the
// frame-processing pipeline. Decoders are pure functions of a frame and may
// be stacked; the pipeline only sees the Symbol values they produce.
package decode

import (
	"image"
	"strings"
)

// Symbol is one decoded barcode/2D-code result from a single frame.
type Symbol struct {
	Payload string          // decoded payload as text
	Bounds  image.Rectangle // bounding region within the frame
	Format  string          // symbology tag, e.g. "QR_CODE"
}

// Decoder decodes all supported symbologies from one frame.
type Decoder interface {
	Decode(img image.Image) ([]Symbol, error)
}

// Multi queries several decoders against the same frame and merges their
// results. A failing member contributes zero symbols; Multi itself fails
// only when every member fails.
type Multi []Decoder

// Decode implements Decoder.
func (m Multi) Decode(img image.Image) ([]Symbol, error) {
	var symbols []Symbol
	var lastErr error
	failed := 0

	for _, d := range m {
		syms, err := d.Decode(img)
		if err != nil {
			failed++
			lastErr = err
			continue
		}
		symbols = append(symbols, syms...)
	}

	if len(m) > 0 && failed == len(m) {
		return nil, lastErr
	}
	return symbols, nil
}

// ExtractSKU derives the dedup identifier from a decoded payload: trim
// surrounding whitespace, take the first whitespace-separated token, then
// the portion of it before the first '-'. A payload that yields no token
// is returned verbatim.
//
// This collapses "SKU-1234 extra" to "SKU". The rule is aggressive and
// tailored to one label format; existing order logs were written with it,
// so changing it would desynchronize replay from history.
func ExtractSKU(payload string) string {
	fields := strings.Fields(payload)
	if len(fields) == 0 {
		return payload
	}
	sku, _, _ := strings.Cut(fields[0], "-")
	return sku
}
