package storage

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"golang.org/x/image/draw"
)

// Crop modes understood by Transform.
const (
	CropScale = "scale" // resize to the target width, keeping aspect ratio
	CropFill  = "fill"  // centre-crop to a square, then resize
)

var ErrInvalidImage = errors.New("storage: payload is not a supported image")

// DecodeDataURL accepts "data:image/png;base64,..." or bare base64.
func DecodeDataURL(payload string) ([]byte, error) {
	data := payload
	if strings.HasPrefix(payload, "data:") {
		_, after, found := strings.Cut(payload, ",")
		if !found {
			return nil, ErrInvalidImage
		}
		data = after
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return raw, nil
}

// Transform decodes raw, applies the crop mode at width pixels and
// re-encodes. PNG and GIF sources come back as PNG, everything else as JPEG.
func Transform(raw []byte, width int, crop string) ([]byte, string, error) {
	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	bounds := src.Bounds()
	if crop == CropFill {
		side := min(bounds.Dx(), bounds.Dy())
		x0 := bounds.Min.X + (bounds.Dx()-side)/2
		y0 := bounds.Min.Y + (bounds.Dy()-side)/2
		bounds = image.Rect(x0, y0, x0+side, y0+side)
	}

	out := src
	if width > 0 && bounds.Dx() != width {
		height := max(1, bounds.Dy()*width/bounds.Dx())
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
		out = dst
	}

	var buf bytes.Buffer
	switch format {
	case "png", "gif":
		err = png.Encode(&buf, out)
		format = "png"
	default:
		err = jpeg.Encode(&buf, out, &jpeg.Options{Quality: 85})
		format = "jpeg"
	}
	if err != nil {
		return nil, "", fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), "image/" + format, nil
}
