package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

type fakeRecognizer struct {
	got  []byte
	text string
}

func (f *fakeRecognizer) Recognize(_ context.Context, img []byte) (string, error) {
	f.got = img
	return f.text, nil
}

func encode(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

// darkCard draws a light rectangle of "text" on a dark background.
func darkCard(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: 30, G: 30, B: 40, A: 255}
			if x >= w/4 && x < w/2 && y >= h/4 && y < h/2 {
				c = color.RGBA{R: 220, G: 220, B: 220, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestOtsuSplitsBimodalHistogram(t *testing.T) {
	var hist [256]int
	hist[40] = 500
	hist[200] = 300
	threshold := Otsu(hist)
	if threshold < 40 || threshold >= 200 {
		t.Fatalf("threshold %d does not separate the modes", threshold)
	}
	var empty [256]int
	if Otsu(empty) != 127 {
		t.Fatalf("empty histogram should fall back to the midpoint")
	}
}

func TestStretch(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 3, 1))
	gray.Pix = []uint8{100, 150, 200}
	Stretch(gray)
	if gray.Pix[0] != 0 || gray.Pix[2] != 255 || gray.Pix[1] != 127 {
		t.Fatalf("unexpected stretch %v", gray.Pix)
	}
}

func TestPreprocessProducesDarkTextOnWhite(t *testing.T) {
	raw := encode(t, darkCard(100, 40))
	out, err := Preprocess(raw, Options{MinWidth: 300, MaxScale: 2})
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 200 || bounds.Dy() != 80 {
		t.Fatalf("expected upscale capped at 2x, got %v", bounds)
	}
	gray, ok := img.(*image.Gray)
	if !ok {
		t.Fatalf("expected gray output, got %T", img)
	}
	if corner := gray.GrayAt(0, 0).Y; corner != 255 {
		t.Fatalf("background should be white after inversion, got %d", corner)
	}
	if center := gray.GrayAt(75, 30).Y; center != 0 {
		t.Fatalf("text should be black after inversion, got %d", center)
	}
}

func TestPreprocessRejectsLargeImages(t *testing.T) {
	raw := encode(t, darkCard(100, 100))
	if _, err := Preprocess(raw, Options{MaxPixels: 5000}); !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("expected too large error, got %v", err)
	}
	if _, err := Preprocess([]byte("not an image"), DefaultOptions()); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestScannerCollapsesWhitespace(t *testing.T) {
	rec := &fakeRecognizer{text: "FREE\n  NITRO\tclaim "}
	scanner := NewScanner(rec, DefaultOptions())
	text, err := scanner.Scan(context.Background(), encode(t, darkCard(20, 20)))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if text != "FREE NITRO claim" {
		t.Fatalf("unexpected text %q", text)
	}
	if len(rec.got) == 0 {
		t.Fatalf("recognizer did not receive the image")
	}
}
