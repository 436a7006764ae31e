// Package imagerecode implements the image recompression stage (spec
// §4.G): decode an arbitrary raster image, downscale it toward a target
// ratio clamped to a configured size window, flatten it to grayscale (or
// grayscale+alpha), and hand the planes to an Encoder. Grounded on
// original_source/src/processors/webp.rs's thumbnail() pipeline.
package imagerecode

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ScaleOptions mirrors the CLI knobs the teacher threads through:
// the target downscale ratio and the [min, max] shortest-side window (in
// pixels) it gets clamped against.
type ScaleOptions struct {
	Scale float32
	Min   float32
	Max   float32
}

// Recode decodes data, downscales it per ScaleOptions, converts it to
// grayscale (or grayscale+alpha, if the source has a non-opaque alpha
// channel), and returns the bytes enc produces.
func Recode(data []byte, scaleOpts ScaleOptions, enc Encoder) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imagerecode: decode: %w", err)
	}

	alpha := hasAlpha(img)
	img = resize(img, scaleOpts, alpha)

	opts := defaultOptions()
	if alpha {
		out, err := enc.EncodeGrayAlpha(toGrayAlpha(img), opts)
		if err != nil {
			return nil, fmt.Errorf("imagerecode: encode gray+alpha: %w", err)
		}
		return out, nil
	}

	out, err := enc.EncodeGray(toGray(img), opts)
	if err != nil {
		return nil, fmt.Errorf("imagerecode: encode gray: %w", err)
	}
	return out, nil
}

// resize applies the teacher's clamp-then-round ratio arithmetic and, if
// the result differs from the original dimensions, a Catmull-Rom scale.
// alpha picks the scale destination's pixel format so a genuine alpha
// channel survives the resize instead of being flattened to opaque by an
// RGBA (always-opaque-on-decode) canvas.
func resize(img image.Image, scaleOpts ScaleOptions, alpha bool) image.Image {
	b := img.Bounds()
	ow, oh := b.Dx(), b.Dy()

	minOrig := float32(ow)
	if oh < ow {
		minOrig = float32(oh)
	}

	ratio := scaleOpts.Scale
	if minOrig*ratio < scaleOpts.Min {
		ratio = scaleOpts.Min / minOrig
	}
	if minOrig*ratio > scaleOpts.Max {
		ratio = scaleOpts.Max / minOrig
	}
	if ratio > 1.0 {
		ratio = 1.0
	}

	nw := int(math.Round(float64(ow) * float64(ratio)))
	nh := int(math.Round(float64(oh) * float64(ratio)))

	if nw == ow && nh == oh {
		return img
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	var dst draw.Image
	if alpha {
		dst = image.NewNRGBA(image.Rect(0, 0, nw, nh))
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, nw, nh))
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// hasAlpha reports whether img's source format carries an alpha channel,
// mirroring the teacher's img.color().has_alpha() check. The standard
// decoders only ever produce *image.RGBA/*image.RGBA64 for opaque
// truecolor input (no alpha channel in the file at all); a genuine alpha
// channel always decodes to *image.NRGBA/*image.NRGBA64 (or, for
// paletted GIF/PNG, a palette entry with non-opaque alpha).
func hasAlpha(img image.Image) bool {
	switch m := img.(type) {
	case *image.NRGBA, *image.NRGBA64:
		return true
	case *image.Paletted:
		for _, c := range m.Palette {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// toGray flattens img to 8-bit luma.
func toGray(img image.Image) *GrayImage {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := &GrayImage{Width: w, Height: h, Pix: make([]byte, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			out.Pix[y*w+x] = c.Y
		}
	}
	return out
}

// toGrayAlpha flattens img to interleaved 8-bit luma/alpha pairs.
func toGrayAlpha(img image.Image) *GrayAlphaImage {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := &GrayAlphaImage{Width: w, Height: h, Pix: make([]byte, w*h*2)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src := img.At(b.Min.X+x, b.Min.Y+y)
			gray := color.GrayModel.Convert(src).(color.Gray)
			_, _, _, a := src.RGBA()
			i := (y*w + x) * 2
			out.Pix[i] = gray.Y
			out.Pix[i+1] = byte(a >> 8)
		}
	}
	return out
}
