package codec

import (
	"errors"
	"fmt"
)

// MaxDimension caps resize targets so a bad request cannot trigger a
// runaway pixel-buffer allocation.
const MaxDimension = 10000

const (
	MinQuality     = 1
	MaxQuality     = 100
	DefaultQuality = 85
)

type Format string

const (
	FormatWebP Format = "webp"
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatAVIF Format = "avif"
)

type ResizeMode string

const (
	ResizeFit  ResizeMode = "fit"
	ResizeCrop ResizeMode = "crop"
)

var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat normalizes a user-supplied format name.
func ParseFormat(value string) (Format, error) {
	switch value {
	case "webp":
		return FormatWebP, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "avif":
		return FormatAVIF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, value)
	}
}

// Ext returns the file extension used for converted outputs.
func (f Format) Ext() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	default:
		return "." + string(f)
	}
}

// Options carries the encode parameters for a single conversion.
// Width and Height are resize targets; zero means "keep source dimension".
type Options struct {
	Format              Format
	Quality             int
	Width               int
	Height              int
	MaintainAspectRatio bool
	ResizeMode          ResizeMode
}

// DefaultOptions returns the options applied when a batch carries none.
func DefaultOptions() Options {
	return Options{
		Format:              FormatWebP,
		Quality:             DefaultQuality,
		MaintainAspectRatio: true,
		ResizeMode:          ResizeFit,
	}
}

// Validate rejects options that must never reach the encoder.
func (o Options) Validate() error {
	switch o.Format {
	case FormatWebP, FormatJPEG, FormatPNG, FormatAVIF:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, o.Format)
	}

	if o.Quality < MinQuality || o.Quality > MaxQuality {
		return fmt.Errorf("quality %d out of range [%d,%d]", o.Quality, MinQuality, MaxQuality)
	}

	if o.Width < 0 || o.Height < 0 {
		return fmt.Errorf("resize target %dx%d must be positive", o.Width, o.Height)
	}
	if o.Width > MaxDimension || o.Height > MaxDimension {
		return fmt.Errorf("resize target %dx%d exceeds %dpx limit", o.Width, o.Height, MaxDimension)
	}

	if o.ResizeMode != "" && o.ResizeMode != ResizeFit && o.ResizeMode != ResizeCrop {
		return fmt.Errorf("unknown resize mode %q", o.ResizeMode)
	}

	return nil
}

// Clamped returns a copy with the quality forced into the valid range,
// for callers that prefer correction over rejection.
func (o Options) Clamped() Options {
	if o.Quality < MinQuality {
		o.Quality = MinQuality
	}
	if o.Quality > MaxQuality {
		o.Quality = MaxQuality
	}
	return o
}
