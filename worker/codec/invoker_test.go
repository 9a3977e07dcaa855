package codec

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"go.uber.org/zap/zaptest"
)

func testJPEG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("Failed to build test jpeg: %v", err)
	}
	return buf.Bytes()
}

func decodeDims(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Failed to decode output: %v", err)
	}
	return cfg.Width, cfg.Height
}

func TestInvoker_EncodeJPEGToPNG(t *testing.T) {
	invoker := NewImagingInvoker(zaptest.NewLogger(t))

	opts := DefaultOptions()
	opts.Format = FormatPNG

	out, err := invoker.Encode(context.Background(), testJPEG(t, 40, 30), opts)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if _, err := png.Decode(bytes.NewReader(out)); err != nil {
		t.Errorf("Output is not valid png: %v", err)
	}
}

func TestInvoker_EncodeWebP(t *testing.T) {
	invoker := NewImagingInvoker(zaptest.NewLogger(t))

	opts := DefaultOptions()
	opts.Format = FormatWebP

	out, err := invoker.Encode(context.Background(), testJPEG(t, 32, 32), opts)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(out) < 12 || string(out[0:4]) != "RIFF" || string(out[8:12]) != "WEBP" {
		t.Error("Output missing webp container header")
	}
}

func TestInvoker_ResizeFitKeepsAspect(t *testing.T) {
	invoker := NewImagingInvoker(zaptest.NewLogger(t))

	opts := DefaultOptions()
	opts.Format = FormatPNG
	opts.Width = 20
	opts.Height = 20

	out, err := invoker.Encode(context.Background(), testJPEG(t, 40, 20), opts)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	w, h := decodeDims(t, out)
	if w != 20 || h != 10 {
		t.Errorf("Expected 20x10 fit, got %dx%d", w, h)
	}
}

func TestInvoker_ResizeCropFillsExactly(t *testing.T) {
	invoker := NewImagingInvoker(zaptest.NewLogger(t))

	opts := DefaultOptions()
	opts.Format = FormatPNG
	opts.Width = 16
	opts.Height = 16
	opts.ResizeMode = ResizeCrop

	out, err := invoker.Encode(context.Background(), testJPEG(t, 64, 32), opts)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	w, h := decodeDims(t, out)
	if w != 16 || h != 16 {
		t.Errorf("Expected exact 16x16 crop, got %dx%d", w, h)
	}
}

func TestInvoker_SingleDimensionKeepsAspect(t *testing.T) {
	invoker := NewImagingInvoker(zaptest.NewLogger(t))

	opts := DefaultOptions()
	opts.Format = FormatPNG
	opts.Width = 30
	opts.Height = 0

	out, err := invoker.Encode(context.Background(), testJPEG(t, 60, 40), opts)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	w, h := decodeDims(t, out)
	if w != 30 || h != 20 {
		t.Errorf("Expected 30x20, got %dx%d", w, h)
	}
}

func TestInvoker_CorruptInput(t *testing.T) {
	invoker := NewImagingInvoker(zaptest.NewLogger(t))

	// Valid jpeg magic, garbage body.
	data := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0x00}, 64)...)

	_, err := invoker.Encode(context.Background(), data, DefaultOptions())

	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("Expected *Failure, got %v", err)
	}
	if failure.Reason != ReasonCorruptInput && failure.Reason != ReasonUnsupportedFormat {
		t.Errorf("Unexpected reason %s", failure.Reason)
	}
}

func TestInvoker_UnsupportedInput(t *testing.T) {
	invoker := NewImagingInvoker(zaptest.NewLogger(t))

	_, err := invoker.Encode(context.Background(), []byte("definitely not an image"), DefaultOptions())

	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("Expected *Failure, got %v", err)
	}
	if failure.Reason != ReasonUnsupportedFormat {
		t.Errorf("Expected unsupported_format, got %s", failure.Reason)
	}
}

func TestInvoker_AVIFUnsupported(t *testing.T) {
	invoker := NewImagingInvoker(zaptest.NewLogger(t))

	opts := DefaultOptions()
	opts.Format = FormatAVIF

	_, err := invoker.Encode(context.Background(), testJPEG(t, 8, 8), opts)

	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("Expected *Failure, got %v", err)
	}
	if failure.Reason != ReasonUnsupportedFormat {
		t.Errorf("Expected unsupported_format, got %s", failure.Reason)
	}
}

func TestInvoker_CancelledContext(t *testing.T) {
	invoker := NewImagingInvoker(zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := invoker.Encode(ctx, testJPEG(t, 8, 8), DefaultOptions())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
