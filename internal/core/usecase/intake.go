package usecase

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/kirillkom/cropguard/internal/core/domain"
	"github.com/kirillkom/cropguard/internal/core/ports"
)

// Intake validates uploads before they become a session's selection.
type Intake struct {
	maxBytes int64
}

func NewIntake(maxBytes int64) *Intake {
	if maxBytes <= 0 {
		maxBytes = domain.MaxImageBytes
	}
	return &Intake{maxBytes: maxBytes}
}

// Accept reads the upload and checks its type, then its size. Undeclared
// types are sniffed from content.
func (in *Intake) Accept(upload ports.ImageUpload) (domain.SelectedImage, error) {
	if upload.Body == nil {
		return domain.SelectedImage{}, domain.WrapError(domain.ErrInvalidInput, "accept image", fmt.Errorf("empty upload body"))
	}

	data, err := io.ReadAll(io.LimitReader(upload.Body, in.maxBytes+1))
	if err != nil {
		return domain.SelectedImage{}, domain.WrapError(domain.ErrInvalidInput, "accept image", fmt.Errorf("read upload: %w", err))
	}
	size := int64(len(data))
	partial := false
	if size > in.maxBytes {
		// The limit reader stopped early; count the rest so the error reports the real size.
		rest, copyErr := io.Copy(io.Discard, upload.Body)
		size += rest
		partial = copyErr != nil
	}

	mimeType := strings.TrimSpace(upload.MimeType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = mimetype.Detect(data).String()
	}

	if err := ValidateImage(mimeType, size, in.maxBytes); err != nil {
		if partial && domain.IsKind(err, domain.ErrTooLarge) {
			// The body stopped before its end, so size is only a lower bound.
			err = domain.WrapError(domain.ErrTooLarge, "select image", fmt.Errorf("at least %d bytes exceeds limit of %d bytes", size, in.maxBytes))
		}
		return domain.SelectedImage{}, err
	}

	return domain.SelectedImage{
		Filename: sanitizeFilename(upload.Filename),
		MimeType: mimeType,
		Size:     size,
		Data:     data,
	}, nil
}

// ValidateImage applies the intake rules: an image/* type and at most maxBytes.
func ValidateImage(mimeType string, size, maxBytes int64) error {
	if !strings.HasPrefix(strings.ToLower(mimeType), "image/") {
		return domain.WrapError(domain.ErrInvalidType, "select image", fmt.Errorf("type %q is not an image; upload JPG or PNG", mimeType))
	}
	if size > maxBytes {
		return domain.WrapError(domain.ErrTooLarge, "select image", fmt.Errorf("%d bytes exceeds limit of %d bytes", size, maxBytes))
	}
	return nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == "_" {
		return "image.bin"
	}
	return base
}
