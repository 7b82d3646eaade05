package transcode

import (
	"bytes"
	"fmt"
	"image"

	"github.com/bbrks/go-blurhash"
	"golang.org/x/image/draw"
)

// blurHashSize is the target size for BlurHash computation.
// A small thumbnail produces nearly identical hashes in milliseconds.
const blurHashSize = 64

// ComputeBlurHash generates a BlurHash placeholder from encoded image bytes.
// Uses 4x3 components.
func ComputeBlurHash(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	hash, err := blurhash.Encode(4, 3, resizeForBlurHash(img))
	if err != nil {
		return "", fmt.Errorf("encode blurhash: %w", err)
	}
	return hash, nil
}

func resizeForBlurHash(img image.Image) image.Image {
	w, h := scaledSize(img.Bounds().Dx(), img.Bounds().Dy(), blurHashSize)
	if w == img.Bounds().Dx() && h == img.Bounds().Dy() {
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}
