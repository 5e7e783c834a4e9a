// Package imaging shrinks shop avatars before they are uploaded.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
)

// AvatarMaxWidth bounds the stored avatar width; height follows the aspect
// ratio.
const AvatarMaxWidth = 400

const jpegQuality = 80

var ErrUnsupportedFormat = errors.New("unsupported image format, only PNG and JPEG are allowed")

// Downscale decodes a PNG or JPEG, narrows it to at most maxWidth pixels and
// re-encodes it as JPEG. Images already narrow enough are only re-encoded.
func Downscale(data []byte, maxWidth uint) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupportedFormat
		}
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if format != "png" && format != "jpeg" {
		return nil, ErrUnsupportedFormat
	}

	if uint(img.Bounds().Dx()) > maxWidth {
		img = resize.Resize(maxWidth, 0, img, resize.Lanczos3)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return out.Bytes(), nil
}
