// Package ocr reads text out of image attachments so the scam filter can
// inspect screenshots. Images are cleaned up into a high contrast black on
// white PNG before they reach a Recognizer.
package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var ErrImageTooLarge = errors.New("ocr: image too large")

type Options struct {
	// MinWidth is the width small images are upscaled towards.
	MinWidth int
	// MaxScale bounds the upscale factor.
	MaxScale float64
	// MaxPixels rejects decoded images above this size.
	MaxPixels int
}

func DefaultOptions() Options {
	return Options{MinWidth: 1200, MaxScale: 3, MaxPixels: 24_000_000}
}

// Preprocess decodes raw and returns the binarised image as PNG.
func Preprocess(raw []byte, opts Options) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if opts.MaxPixels > 0 && cfg.Width*cfg.Height > opts.MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	gray := Upscale(Grayscale(src), opts)
	Stretch(gray)
	Binarize(gray, Otsu(Histogram(gray)))
	if darkBackground(gray) {
		Invert(gray)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}

func Grayscale(src image.Image) *image.Gray {
	bounds := src.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(gray, gray.Bounds(), src, bounds.Min, draw.Src)
	return gray
}

// Upscale enlarges narrow images with Catmull-Rom resampling. Images that
// are already wide enough are returned as is.
func Upscale(gray *image.Gray, opts Options) *image.Gray {
	width := gray.Bounds().Dx()
	if width == 0 || opts.MinWidth <= 0 || width >= opts.MinWidth {
		return gray
	}
	scale := float64(opts.MinWidth) / float64(width)
	if opts.MaxScale > 0 && scale > opts.MaxScale {
		scale = opts.MaxScale
	}
	if scale <= 1 {
		return gray
	}
	w := int(float64(width) * scale)
	h := int(float64(gray.Bounds().Dy()) * scale)
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), gray, gray.Bounds(), draw.Src, nil)
	return dst
}

func Histogram(gray *image.Gray) [256]int {
	var hist [256]int
	for _, v := range gray.Pix {
		hist[v]++
	}
	return hist
}

// Stretch maps the darkest pixel to 0 and the brightest to 255.
func Stretch(gray *image.Gray) {
	if len(gray.Pix) == 0 {
		return
	}
	lo, hi := uint8(255), uint8(0)
	for _, v := range gray.Pix {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi <= lo || (lo == 0 && hi == 255) {
		return
	}
	span := int(hi - lo)
	for i, v := range gray.Pix {
		gray.Pix[i] = uint8(int(v-lo) * 255 / span)
	}
}

// Otsu returns the threshold that maximises the between-class variance of
// hist.
func Otsu(hist [256]int) uint8 {
	total := 0
	sum := 0.0
	for i, n := range hist {
		total += n
		sum += float64(i * n)
	}
	if total == 0 {
		return 127
	}

	var (
		best      float64
		threshold int
		weightBg  int
		sumBg     float64
	)
	for t := 0; t < 256; t++ {
		weightBg += hist[t]
		if weightBg == 0 {
			continue
		}
		weightFg := total - weightBg
		if weightFg == 0 {
			break
		}
		sumBg += float64(t * hist[t])
		meanBg := sumBg / float64(weightBg)
		meanFg := (sum - sumBg) / float64(weightFg)
		between := float64(weightBg) * float64(weightFg) * (meanBg - meanFg) * (meanBg - meanFg)
		if between > best {
			best = between
			threshold = t
		}
	}
	return uint8(threshold)
}

// Binarize sets pixels above threshold to white and the rest to black.
func Binarize(gray *image.Gray, threshold uint8) {
	for i, v := range gray.Pix {
		if v > threshold {
			gray.Pix[i] = 255
		} else {
			gray.Pix[i] = 0
		}
	}
}

func Invert(gray *image.Gray) {
	for i, v := range gray.Pix {
		gray.Pix[i] = 255 - v
	}
}

// darkBackground reports whether most pixels are black, which means the
// text is light on dark.
func darkBackground(gray *image.Gray) bool {
	dark := 0
	for _, v := range gray.Pix {
		if v < 128 {
			dark++
		}
	}
	return dark*2 > len(gray.Pix)
}
