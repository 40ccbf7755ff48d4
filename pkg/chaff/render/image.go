package render

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"math"
	"math/rand/v2"

	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

const jpegQuality = 85

// noise returns an opaque image of about pixels pixels. Noise does not
// compress, so the encoded size follows the pixel count closely.
func noise(pixels int, rng *rand.Rand) *image.NRGBA {
	w := max(1, int(math.Sqrt(float64(pixels))))
	h := max(1, pixels/w)
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		v := rng.Uint32()
		img.Pix[i] = byte(v)
		img.Pix[i+1] = byte(v >> 8)
		img.Pix[i+2] = byte(v >> 16)
		img.Pix[i+3] = 0xff
	}
	return img
}

func renderPNG(spec *types.FileSpec, _ Content, rng *rand.Rand) ([]byte, error) {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	return fitTo(spec.TargetSize, func(fill int) ([]byte, error) {
		var buf bytes.Buffer
		if err := enc.Encode(&buf, noise(fill/3, rng)); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
}

func renderJPEG(spec *types.FileSpec, _ Content, rng *rand.Rand) ([]byte, error) {
	return fitTo(spec.TargetSize, func(fill int) ([]byte, error) {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, noise(fill/3, rng), &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
}
