package services

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"
	"net/http"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"

	"rtadmin/internal/core"
)

// ErrUnsupportedImage is returned for KTP uploads that are not jpeg, png or webp.
var ErrUnsupportedImage = errors.New("unsupported image format")

const msgKTPFormat = "Format foto KTP tidak didukung"

// PhotoProcessor normalizes KTP uploads to a bounded JPEG.
type PhotoProcessor struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
}

// DefaultPhotoProcessor bounds photos to 1600x1600.
func DefaultPhotoProcessor() PhotoProcessor {
	return PhotoProcessor{MaxWidth: 1600, MaxHeight: 1600, Quality: 85}
}

// Process decodes, downscales and re-encodes the upload as JPEG.
func (p PhotoProcessor) Process(u core.Upload) (core.Upload, error) {
	img, err := decodeImage(u.Data, u.Filename)
	if err != nil {
		return u, err
	}
	img = downscaleIfNeeded(img, p.MaxWidth, p.MaxHeight)

	quality := p.Quality
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return u, fmt.Errorf("encode jpeg: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(u.Filename), filepath.Ext(u.Filename))
	if name == "" || name == "." {
		name = "ktp"
	}
	return core.Upload{
		Filename:    name + ".jpg",
		ContentType: "image/jpeg",
		Data:        buf.Bytes(),
	}, nil
}

func decodeImage(all []byte, filename string) (image.Image, error) {
	if len(all) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrUnsupportedImage)
	}
	head := all
	if len(head) > 512 {
		head = head[:512]
	}
	ct := http.DetectContentType(head)

	var (
		img image.Image
		err error
	)
	switch {
	case strings.Contains(ct, "jpeg"):
		img, err = jpeg.Decode(bytes.NewReader(all))
	case strings.Contains(ct, "png"):
		img, err = png.Decode(bytes.NewReader(all))
	case strings.Contains(ct, "webp"):
		img, err = webp.Decode(bytes.NewReader(all))
	default:
		switch ext := strings.ToLower(filepath.Ext(filename)); ext {
		case ".jpg", ".jpeg":
			img, err = jpeg.Decode(bytes.NewReader(all))
		case ".png":
			img, err = png.Decode(bytes.NewReader(all))
		case ".webp":
			img, err = webp.Decode(bytes.NewReader(all))
		default:
			return nil, fmt.Errorf("%w: %s / %s", ErrUnsupportedImage, ct, ext)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return img, nil
}

// downscaleIfNeeded keeps the aspect ratio; limits <= 0 are ignored.
func downscaleIfNeeded(src image.Image, maxW, maxH int) image.Image {
	if maxW <= 0 && maxH <= 0 {
		return src
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if (maxW <= 0 || w <= maxW) && (maxH <= 0 || h <= maxH) {
		return src
	}
	scale := 1.0
	if maxW > 0 {
		scale = math.Min(scale, float64(maxW)/float64(w))
	}
	if maxH > 0 {
		scale = math.Min(scale, float64(maxH)/float64(h))
	}
	nw := max(int(math.Round(float64(w)*scale)), 1)
	nh := max(int(math.Round(float64(h)*scale)), 1)
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
