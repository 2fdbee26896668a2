package images

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/gif"
	_ "image/png"
)

// decodeDimensions reports the width and height of an already-downloaded
// image without re-decoding it for resizing; failures are non-fatal, the
// caller stores zero dimensions rather than rejecting the image.
func decodeDimensions(data []byte, contentType string) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// makeThumbnail decodes data and produces a JPEG-encoded thumbnail whose
// longest side is at most maxSide, using a fixed-size nearest-neighbour box
// resize. No third-party imaging library is wired here: none of the example
// repos import one, and the standard library's image package covers the
// three formats the source adapters realistically serve (jpeg/png/gif) —
// recorded in DESIGN.md as a stdlib justification.
func makeThumbnail(data []byte, contentType string, maxSide int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode source image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("zero-sized image")
	}
	if maxSide <= 0 {
		maxSide = 320
	}

	scale := 1.0
	if w > h && w > maxSide {
		scale = float64(maxSide) / float64(w)
	} else if h >= w && h > maxSide {
		scale = float64(maxSide) / float64(h)
	}

	dstW, dstH := w, h
	if scale < 1.0 {
		dstW = maxInt(1, int(float64(w)*scale))
		dstH = maxInt(1, int(float64(h)*scale))
	}

	dst := resizeNearest(src, dstW, dstH)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 82}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// resizeNearest is a minimal box-sampling resize: each destination pixel
// samples the nearest source pixel. Good enough for thumbnail previews,
// not for production-quality downscaling.
func resizeNearest(src image.Image, dstW, dstH int) *image.RGBA {
	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))

	for y := 0; y < dstH; y++ {
		srcY := bounds.Min.Y + y*srcH/dstH
		for x := 0; x < dstW; x++ {
			srcX := bounds.Min.X + x*srcW/dstW
			dst.Set(x, y, src.At(srcX, srcY))
		}
	}
	return dst
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
