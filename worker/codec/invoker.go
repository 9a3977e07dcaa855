package codec

import (
	"bytes"
	"context"
	"errors"
	"image"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// Invoker is the boundary the pipeline hands raw bytes to. Implementations
// must honor ctx cancellation and report failures as *Failure.
type Invoker interface {
	Encode(ctx context.Context, data []byte, opts Options) ([]byte, error)
}

// ImagingInvoker encodes via disintegration/imaging, with chai2010/webp for
// WebP output. AVIF is reported as an unsupported output format.
type ImagingInvoker struct {
	logger *zap.Logger
}

func NewImagingInvoker(logger *zap.Logger) *ImagingInvoker {
	return &ImagingInvoker{logger: logger}
}

func (c *ImagingInvoker) Encode(ctx context.Context, data []byte, opts Options) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts = opts.Clamped()

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, newFailure(ReasonUnsupportedFormat, "undecodable input", err)
		}
		return nil, newFailure(ReasonCorruptInput, "decode failed", err)
	}

	bounds := src.Bounds()
	if bounds.Dx() > MaxDimension || bounds.Dy() > MaxDimension {
		return nil, newFailure(ReasonDimensionTooLarge, "source exceeds pixel limit", nil)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resized := c.resize(src, opts)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := c.encode(resized, opts)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Image encoded",
		zap.String("format", string(opts.Format)),
		zap.Int("input_bytes", len(data)),
		zap.Int("output_bytes", len(out)),
	)

	return out, nil
}

func (c *ImagingInvoker) resize(src image.Image, opts Options) image.Image {
	if opts.Width == 0 && opts.Height == 0 {
		return src
	}

	// A single dimension always preserves aspect ratio.
	if opts.Width == 0 || opts.Height == 0 {
		return imaging.Resize(src, opts.Width, opts.Height, imaging.Lanczos)
	}

	if opts.ResizeMode == ResizeCrop {
		return imaging.Fill(src, opts.Width, opts.Height, imaging.Center, imaging.Lanczos)
	}
	if opts.MaintainAspectRatio {
		return imaging.Fit(src, opts.Width, opts.Height, imaging.Lanczos)
	}
	return imaging.Resize(src, opts.Width, opts.Height, imaging.Lanczos)
}

func (c *ImagingInvoker) encode(img image.Image, opts Options) ([]byte, error) {
	var buf bytes.Buffer

	switch opts.Format {
	case FormatJPEG:
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(opts.Quality)); err != nil {
			return nil, newFailure(ReasonInternal, "jpeg encode failed", err)
		}
	case FormatPNG:
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, newFailure(ReasonInternal, "png encode failed", err)
		}
	case FormatWebP:
		if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(opts.Quality)}); err != nil {
			return nil, newFailure(ReasonInternal, "webp encode failed", err)
		}
	case FormatAVIF:
		return nil, newFailure(ReasonUnsupportedFormat, "no avif encoder available", nil)
	default:
		return nil, newFailure(ReasonUnsupportedFormat, string(opts.Format), nil)
	}

	return buf.Bytes(), nil
}
