package decode

import (
	"fmt"
	"image"
	"math"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/datamatrix"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// ZXing decodes frames with a fixed set of gozxing format readers:
// EAN-13, Code128, QR and DataMatrix.
type ZXing struct {
	readers []gozxing.Reader
	hints   map[gozxing.DecodeHintType]interface{}
}

var _ Decoder = (*ZXing)(nil)

// NewZXing creates a decoder covering all supported symbologies.
func NewZXing() *ZXing {
	return &ZXing{
		readers: []gozxing.Reader{
			oned.NewEAN13Reader(),
			oned.NewCode128Reader(),
			qrcode.NewQRCodeReader(),
			datamatrix.NewDataMatrixReader(),
		},
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

// Decode implements Decoder. Formats that are not present in the frame
// simply contribute no symbols; only a frame that cannot be binarized at
// all is an error.
func (z *ZXing) Decode(img image.Image) ([]Symbol, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("failed to binarize frame: %w", err)
	}

	var symbols []Symbol
	for _, reader := range z.readers {
		result, err := reader.Decode(bmp, z.hints)
		if err != nil {
			// Not found in this frame for this format.
			continue
		}
		symbols = append(symbols, Symbol{
			Payload: result.GetText(),
			Bounds:  boundsOf(result.GetResultPoints()),
			Format:  result.GetBarcodeFormat().String(),
		})
	}
	return symbols, nil
}

// boundsOf computes the bounding rectangle of the reader's result points.
func boundsOf(points []gozxing.ResultPoint) image.Rectangle {
	if len(points) == 0 {
		return image.Rectangle{}
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		minX = math.Min(minX, p.GetX())
		minY = math.Min(minY, p.GetY())
		maxX = math.Max(maxX, p.GetX())
		maxY = math.Max(maxY, p.GetY())
	}
	return image.Rect(int(minX), int(minY), int(maxX), int(maxY))
}
