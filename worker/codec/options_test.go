package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"webp", FormatWebP, false},
		{"jpeg", FormatJPEG, false},
		{"jpg", FormatJPEG, false},
		{"png", FormatPNG, false},
		{"avif", FormatAVIF, false},
		{"bmp", "", true},
		{"", "", true},
		{"WEBP", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseFormat(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnknownFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFormatExt(t *testing.T) {
	assert.Equal(t, ".webp", FormatWebP.Ext())
	assert.Equal(t, ".jpg", FormatJPEG.Ext())
	assert.Equal(t, ".png", FormatPNG.Ext())
	assert.Equal(t, ".avif", FormatAVIF.Ext())
}

func TestOptionsValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Options)
		wantErr bool
	}{
		{"defaults", func(o *Options) {}, false},
		{"quality floor", func(o *Options) { o.Quality = MinQuality }, false},
		{"quality ceiling", func(o *Options) { o.Quality = MaxQuality }, false},
		{"quality zero", func(o *Options) { o.Quality = 0 }, true},
		{"quality above range", func(o *Options) { o.Quality = 101 }, true},
		{"unknown format", func(o *Options) { o.Format = "tiff" }, true},
		{"negative width", func(o *Options) { o.Width = -10 }, true},
		{"width at limit", func(o *Options) { o.Width = MaxDimension }, false},
		{"width above limit", func(o *Options) { o.Width = MaxDimension + 1 }, true},
		{"height above limit", func(o *Options) { o.Height = MaxDimension + 1 }, true},
		{"crop mode", func(o *Options) { o.ResizeMode = ResizeCrop }, false},
		{"empty mode", func(o *Options) { o.ResizeMode = "" }, false},
		{"bogus mode", func(o *Options) { o.ResizeMode = "stretch" }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := DefaultOptions()
			tc.mutate(&opts)

			err := opts.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOptionsClamped(t *testing.T) {
	low := DefaultOptions()
	low.Quality = -5
	assert.Equal(t, MinQuality, low.Clamped().Quality)

	high := DefaultOptions()
	high.Quality = 400
	assert.Equal(t, MaxQuality, high.Clamped().Quality)

	ok := DefaultOptions()
	assert.Equal(t, DefaultQuality, ok.Clamped().Quality)
}
