// Copyright 2024-2026 Aiku AI

// Package media inspects attachment files before they are uploaded.
package media

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// VectorSize is the width and height reported for vector images, which are
// not measured.
const VectorSize = 100

// Kind is the Matrix message shape an attachment is sent as.
type Kind int

const (
	KindFile Kind = iota
	KindRasterImage
	KindVectorImage
)

func (k Kind) String() string {
	switch k {
	case KindRasterImage:
		return "raster"
	case KindVectorImage:
		return "vector"
	default:
		return "file"
	}
}

// Classify maps a mime type to the message shape used for it.
func Classify(mimeType string) Kind {
	switch {
	case strings.HasPrefix(mimeType, "image/svg"):
		return KindVectorImage
	case strings.HasPrefix(mimeType, "image/"):
		return KindRasterImage
	default:
		return KindFile
	}
}

// Detect sniffs the mime type of file content. Parameters such as charset
// are dropped, so text files come back as "text/plain".
func Detect(data []byte) string {
	base, _, _ := strings.Cut(mimetype.Detect(data).String(), ";")
	return strings.TrimSpace(base)
}

// Dimensions decodes the header of a raster image and returns its pixel
// width and height.
func Dimensions(r io.Reader) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode image: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
