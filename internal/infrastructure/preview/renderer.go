package preview

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/kirillkom/cropguard/internal/core/domain"
)

const (
	DefaultMaxSide = 512
	jpegQuality    = 85
)

// Renderer turns a selected image into a JPEG thumbnail data URL.
type Renderer struct {
	maxSide int
}

func NewRenderer(maxSide int) *Renderer {
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}
	return &Renderer{maxSide: maxSide}
}

func (r *Renderer) Render(ctx context.Context, image domain.SelectedImage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	img, err := imaging.Decode(bytes.NewReader(image.Data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode %s preview: %w", image.MimeType, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > r.maxSide || bounds.Dy() > r.maxSide {
		img = imaging.Fit(img, r.maxSide, r.maxSide, imaging.Lanczos)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return "", fmt.Errorf("encode preview: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
