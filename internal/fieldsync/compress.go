package fieldsync

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register PNG decoder

	"golang.org/x/image/draw"
)

const (
	// DefaultMaxEdge is the longest image edge kept after compression.
	// Camera originals run 4000px and up; 2048 is plenty for damage
	// assessment and cuts upload size by an order of magnitude.
	DefaultMaxEdge = 2048

	DefaultJPEGQuality = 80
)

// CompressPhoto re-encodes a photo for upload: downscale to maxEdge
// and encode as JPEG. Formats the decoder does not know (HEIC) pass
// through untouched; a JPEG already within bounds does too.
func CompressPhoto(data []byte, contentType string, maxEdge, quality int) ([]byte, string, error) {
	if maxEdge <= 0 {
		maxEdge = DefaultMaxEdge
	}
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}

	switch contentType {
	case "image/jpeg", "image/png":
	default:
		return data, contentType, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode photo: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	edge := w
	if h > edge {
		edge = h
	}

	if edge <= maxEdge && contentType == "image/jpeg" {
		return data, contentType, nil
	}

	if edge > maxEdge {
		nw, nh := w, h
		if w >= h {
			nw = maxEdge
			nh = h * maxEdge / w
		} else {
			nh = maxEdge
			nw = w * maxEdge / h
		}
		if nw < 1 {
			nw = 1
		}
		if nh < 1 {
			nh = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, "", fmt.Errorf("encode photo: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}
