package processing

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/image-labeler/pkg/types"
)

// Background is the canvas color used when letterboxing to a square
var Background = color.NRGBA{255, 255, 255, 255}

// Processor handles image decoding and model input preparation
type Processor struct{}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{}
}

// LoadImage loads an image from a file path with WebP support.
// Failures are reported as *types.DecodeError.
func (p *Processor) LoadImage(path string) (image.Image, error) {
	// Try imaging.Open (registered decoders, EXIF orientation applied)
	if img, err := imaging.Open(path, imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &types.DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	// Fallback: explicit WebP decode
	if strings.HasSuffix(strings.ToLower(path), ".webp") {
		if img, err := webp.Decode(f); err == nil {
			return img, nil
		}
		if _, err := f.Seek(0, 0); err != nil {
			return nil, &types.DecodeError{Path: path, Err: err}
		}
	}
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &types.DecodeError{Path: path, Err: err}
	}
	return img, nil
}

// Letterbox fits img inside a size x size square, preserving aspect ratio, and
// centers it on a white canvas. The result is always 3-channel opaque.
func (p *Processor) Letterbox(img image.Image, size int) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	canvas := imaging.New(size, size, Background)
	if w == 0 || h == 0 {
		return canvas
	}

	ratio := float64(size) / float64(max(w, h))
	nw := max(1, int(float64(w)*ratio))
	nh := max(1, int(float64(h)*ratio))
	// The long side always fills the canvas exactly
	if w >= h {
		nw = size
	} else {
		nh = size
	}

	// Flatten transparency onto the background before resampling
	flat := imaging.Overlay(imaging.New(w, h, Background), img, image.Pt(0, 0), 1.0)
	resized := flat
	if nw != w || nh != h {
		resized = imaging.Resize(flat, nw, nh, imaging.CatmullRom)
	}
	return imaging.Paste(canvas, resized, image.Pt((size-nw)/2, (size-nh)/2))
}

// ToTensor converts a square image into a channel-last float tensor using the
// declared channel order and value range.
func (p *Processor) ToTensor(img *image.NRGBA, order types.ChannelOrder, valueRange types.ValueRange) Tensor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	t := Tensor{
		Data:     make([]float32, w*h*3),
		Height:   h,
		Width:    w,
		Channels: 3,
		Layout:   ChannelsLast,
	}

	scale := float32(1)
	if valueRange == types.RangeUnit {
		scale = 1.0 / 255.0
	}

	i := 0
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			r, g, bl := float32(row[x*4]), float32(row[x*4+1]), float32(row[x*4+2])
			if order == types.ChannelsBGR {
				r, bl = bl, r
			}
			t.Data[i] = r * scale
			t.Data[i+1] = g * scale
			t.Data[i+2] = bl * scale
			i += 3
		}
	}
	return t
}

// Preprocess decodes path and produces the tensor declared by the tagger contract
func (p *Processor) Preprocess(path string, contract types.TaggerBackend) (Tensor, error) {
	if contract.InputSize <= 0 {
		return Tensor{}, fmt.Errorf("invalid input size %d", contract.InputSize)
	}
	img, err := p.LoadImage(path)
	if err != nil {
		return Tensor{}, err
	}
	square := p.Letterbox(img, contract.InputSize)
	return p.ToTensor(square, contract.ChannelOrder, contract.ValueRange), nil
}

// PrepareImageForModel converts an image to base64 for sending to vision models
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", err
		}
	case "webp":
		if quality <= 0 || quality > 100 {
			quality = 85
		}
		if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
			return "", err
		}
	default: // jpg
		if quality <= 0 || quality > 100 {
			quality = 85
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
