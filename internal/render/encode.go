package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"golang.org/x/image/draw"
)

const (
	DefaultMaxDimension = 4096
	DefaultMaxBytes     = 3.5 * 1024 * 1024
	DefaultQuality      = 85
	MinQuality          = 20
	qualityStep         = 10
)

// EncodeOptions bounds the encoded image.
type EncodeOptions struct {
	MaxDimension int // longest side in pixels
	MaxBytes     int // encoded size ceiling
	Quality      int // starting JPEG quality
}

// DefaultEncodeOptions returns the limits accepted by hosted vision models.
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{
		MaxDimension: DefaultMaxDimension,
		MaxBytes:     DefaultMaxBytes,
		Quality:      DefaultQuality,
	}
}

func (o EncodeOptions) withDefaults() EncodeOptions {
	d := DefaultEncodeOptions()
	if o.MaxDimension <= 0 {
		o.MaxDimension = d.MaxDimension
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = d.MaxBytes
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = d.Quality
	}
	return o
}

// Encode downsizes img to fit MaxDimension, flattens transparency onto white
// and writes a JPEG, lowering quality in steps until it fits MaxBytes or the
// quality floor is reached.
func Encode(img image.Image, opts EncodeOptions) ([]byte, error) {
	opts = opts.withDefaults()
	flat := flatten(Fit(img, opts.MaxDimension))

	quality := opts.Quality
	for {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		if buf.Len() <= opts.MaxBytes || quality <= MinQuality {
			return buf.Bytes(), nil
		}
		quality -= qualityStep
		if quality < MinQuality {
			quality = MinQuality
		}
	}
}

// Fit scales img down so neither side exceeds maxDim, keeping aspect ratio.
func Fit(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	var nw, nh int
	if w > h {
		nw = maxDim
		nh = h * maxDim / w
	} else {
		nh = maxDim
		nw = w * maxDim / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// flatten composites img over an opaque white background.
func flatten(img image.Image) image.Image {
	if _, ok := img.(*image.YCbCr); ok {
		return img
	}
	if _, ok := img.(*image.Gray); ok {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}
