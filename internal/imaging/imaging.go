// Package imaging prepares uploaded car photos: format sniffing, optional
// cropping to the rectangle chosen in the cropper widget, downscaling and
// re-encoding toward the upload size budget.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

// MaxDimension is the maximum width or height for processed photos.
const MaxDimension = 1024

// JPEGQuality is the default compression quality for JPEG output.
const JPEGQuality = 85

// AllowedMIME lists the accepted input MIME types.
var AllowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// ProcessResult contains the processed photo data.
type ProcessResult struct {
	Data []byte
	MIME string
}

// Process reads photo data, validates the format by sniffing bytes,
// downscales if larger than MaxDimension, and re-encodes with compression.
// Always outputs JPEG for consistency and smaller file sizes.
func Process(r io.Reader) (*ProcessResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading photo data: %w", err)
	}

	img, err := decode(data)
	if err != nil {
		return nil, err
	}

	img = downscale(img, MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	return &ProcessResult{
		Data: buf.Bytes(),
		MIME: "image/jpeg",
	}, nil
}

// Crop cuts the rectangle chosen in the external cropper out of the photo.
// The rectangle is clamped to the image bounds; an empty intersection is an
// error.
func Crop(data []byte, rect image.Rectangle) ([]byte, error) {
	img, err := decode(data)
	if err != nil {
		return nil, err
	}

	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("crop rectangle outside image bounds")
	}

	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Copy(dst, image.Point{}, img, rect, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding cropped JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// Compression loop limits, mirrored from the browser-side uploader this
// replaced: quality steps down first, then the image shrinks.
const (
	maxCompressAttempts = 8
	startQuality        = 92
	qualityStep         = 12
	qualityFloor        = 50
	scaleFactorStep     = 0.85
)

// CompressToSize re-encodes the photo until it fits within maxBytes, lowering
// JPEG quality first and then scaling the image down. The loop is bounded to
// maxCompressAttempts; if the budget is never met the smallest attempt is
// returned along with ok=false so the caller can decide whether to proceed.
func CompressToSize(data []byte, maxBytes int) (out []byte, ok bool, err error) {
	if len(data) <= maxBytes {
		return data, true, nil
	}

	img, err := decode(data)
	if err != nil {
		return nil, false, err
	}

	bounds := img.Bounds()
	baseW, baseH := bounds.Dx(), bounds.Dy()

	quality := startQuality
	best := data
	for attempt := 0; attempt < maxCompressAttempts; attempt++ {
		scale := 1.0
		for i := 0; i < attempt/2; i++ {
			scale *= scaleFactorStep
		}

		w := int(float64(baseW) * scale)
		h := int(float64(baseH) * scale)
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}

		frame := img
		if w != baseW || h != baseH {
			dst := image.NewRGBA(image.Rect(0, 0, w, h))
			draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
			frame = dst
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: quality}); err != nil {
			return nil, false, fmt.Errorf("encoding JPEG: %w", err)
		}

		if buf.Len() <= maxBytes {
			return buf.Bytes(), true, nil
		}
		if buf.Len() < len(best) {
			best = buf.Bytes()
		}
		if quality > qualityFloor {
			quality -= qualityStep
		}
	}

	return best, false, nil
}

// decode sniffs the actual MIME type from bytes (not trusting client
// headers) and decodes the photo.
func decode(data []byte) (image.Image, error) {
	detected := http.DetectContentType(data)
	if !AllowedMIME[detected] {
		return nil, fmt.Errorf("unsupported image format: %s (only JPEG, PNG and WebP accepted)", detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// downscale resizes the image so neither dimension exceeds maxDim.
// Uses high-quality Catmull-Rom interpolation.
// Returns the original image if already within bounds.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := w, h
	if w > h {
		newW = maxDim
		newH = int(float64(h) * float64(maxDim) / float64(w))
	} else {
		newH = maxDim
		newW = int(float64(w) * float64(maxDim) / float64(h))
	}

	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func init() {
	image.RegisterFormat("jpeg", "\xff\xd8", jpeg.Decode, jpeg.DecodeConfig)
	image.RegisterFormat("png", "\x89PNG", png.Decode, png.DecodeConfig)
	image.RegisterFormat("webp", "RIFF????WEBP", webp.Decode, webp.DecodeConfig)
}
