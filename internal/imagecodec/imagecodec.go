// Package imagecodec turns uploaded meal photos into the payload the vision
// backends accept: an opaque RGB bitmap, PNG-encoded, then base64.
package imagecodec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
)

// ErrUnsupported is returned for uploads that are not a decodable JPEG or PNG.
var ErrUnsupported = errors.New("unsupported image format")

// MIMEType is the media type of every encoded payload.
const MIMEType = "image/png"

// MaxPixels bounds the decoded size of an upload. A 48 MP phone photo fits;
// a header claiming more is refused before any pixel buffer is allocated.
const MaxPixels = 50_000_000

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Sniff returns the detected MIME type and true if data starts with a JPEG or
// PNG signature.
func Sniff(data []byte) (string, bool) {
	mime := http.DetectContentType(data)
	if allowedImageTypes[mime] {
		return mime, true
	}
	return "", false
}

// Decode parses a JPEG or PNG upload. The header is checked against
// MaxPixels first.
func Decode(data []byte) (image.Image, error) {
	mime, ok := Sniff(data)
	if !ok {
		return nil, ErrUnsupported
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrUnsupported, cfg.Width, cfg.Height, MaxPixels)
	}

	var img image.Image
	switch mime {
	case "image/png":
		img, err = png.Decode(bytes.NewReader(data))
	default:
		img, err = jpeg.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	return img, nil
}

// Normalize copies img into an opaque RGBA bitmap anchored at (0,0). Alpha is
// dropped rather than composited: each pixel keeps its straight color values.
func Normalize(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	switch src := img.(type) {
	case *image.YCbCr:
		normalizeYCbCr(out, src)
	case *image.NRGBA:
		normalizeNRGBA(out, src)
	case *image.RGBA:
		normalizeRGBA(out, src)
	default:
		normalizeAny(out, img)
	}
	return out
}

func normalizeAny(out *image.RGBA, img image.Image) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			out.SetRGBA(x-b.Min.X, y-b.Min.Y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xFF})
		}
	}
}

// JPEG decodes to YCbCr, which is always opaque.
func normalizeYCbCr(out *image.RGBA, src *image.YCbCr) {
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := out.Pix[(y-b.Min.Y)*out.Stride:]
		for x := b.Min.X; x < b.Max.X; x++ {
			yi := src.YOffset(x, y)
			ci := src.COffset(x, y)
			r, g, bl := color.YCbCrToRGB(src.Y[yi], src.Cb[ci], src.Cr[ci])
			i := (x - b.Min.X) * 4
			row[i], row[i+1], row[i+2], row[i+3] = r, g, bl, 0xFF
		}
	}
}

func normalizeNRGBA(out *image.RGBA, src *image.NRGBA) {
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		in := src.Pix[src.PixOffset(b.Min.X, y):]
		row := out.Pix[(y-b.Min.Y)*out.Stride:]
		for i := 0; i < b.Dx()*4; i += 4 {
			row[i], row[i+1], row[i+2], row[i+3] = in[i], in[i+1], in[i+2], 0xFF
		}
	}
}

// Premultiplied pixels are copied as-is when opaque and un-premultiplied
// otherwise.
func normalizeRGBA(out *image.RGBA, src *image.RGBA) {
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		in := src.Pix[src.PixOffset(b.Min.X, y):]
		row := out.Pix[(y-b.Min.Y)*out.Stride:]
		for i := 0; i < b.Dx()*4; i += 4 {
			if in[i+3] == 0xFF {
				copy(row[i:i+4], in[i:i+4])
				continue
			}
			c := color.NRGBAModel.Convert(color.RGBA{R: in[i], G: in[i+1], B: in[i+2], A: in[i+3]}).(color.NRGBA)
			row[i], row[i+1], row[i+2], row[i+3] = c.R, c.G, c.B, 0xFF
		}
	}
}

// EncodePNG writes img as a PNG. An opaque bitmap is stored as 8-bit
// truecolor without an alpha channel.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeBase64 is EncodePNG followed by standard base64.
func EncodeBase64(img image.Image) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Prepare decodes an upload, normalizes it and returns the base64 PNG payload.
func Prepare(data []byte) (string, error) {
	img, err := Decode(data)
	if err != nil {
		return "", err
	}
	return EncodeBase64(Normalize(img))
}
