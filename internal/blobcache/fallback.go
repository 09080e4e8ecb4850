package blobcache

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
)

// FallbackSize is the edge length of generated placeholder images, matching
// the thumbnail width used in the report table.
const FallbackSize = 128

// EnsureFallbacks writes PNG placeholders for the nsfw and default reserved
// keys unless an entry with that key already exists. Existing assets, in any
// format, are left alone.
func EnsureFallbacks(ctx context.Context, s Store) error {
	names, err := s.List(ctx)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(names))
	for _, n := range names {
		have[Key(n)] = true
	}

	for _, fb := range []struct {
		key string
		bg  color.RGBA
		fg  color.RGBA
	}{
		{KeyNSFW, color.RGBA{R: 0xc0, G: 0x39, B: 0x2b, A: 0xff}, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}},
		{KeyDefault, color.RGBA{R: 0xbd, G: 0xc3, B: 0xc7, A: 0xff}, color.RGBA{R: 0x7f, G: 0x8c, B: 0x8d, A: 0xff}},
	} {
		if have[fb.key] {
			continue
		}
		b, err := placeholderPNG(fb.bg, fb.fg)
		if err != nil {
			return err
		}
		if err := s.Write(ctx, Name(fb.key, "png"), b); err != nil {
			return err
		}
	}
	return nil
}

// placeholderPNG draws a filled square crossed by both diagonals.
func placeholderPNG(bg, fg color.RGBA) ([]byte, error) {
	const n = FallbackSize
	img := image.NewRGBA(image.Rect(0, 0, n, n))
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			c := bg
			if d := x - y; d >= -1 && d <= 1 {
				c = fg
			} else if d := x + y - (n - 1); d >= -1 && d <= 1 {
				c = fg
			}
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
