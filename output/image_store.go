package output

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	"github.com/google/uuid"
)

// ImageStore persists a rendered image and returns a URL for it.
type ImageStore interface {
	Save(ctx context.Context, img image.Image) (string, error)
}

// FileImageStore writes PNGs to Dir and serves them under
// <PublicURL>/images/<name>.png.
type FileImageStore struct {
	Dir       string
	PublicURL string
}

func NewFileImageStore(rootPath, publicURL string) *FileImageStore {
	return &FileImageStore{
		Dir:       filepath.Join(rootPath, "data", "images"),
		PublicURL: strings.TrimRight(publicURL, "/"),
	}
}

func (s *FileImageStore) Save(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.Dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create image folder: %w", err)
	}
	name := uuid.NewString() + ".png"
	if err := gg.SavePNG(filepath.Join(s.Dir, name), img); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}
	return s.PublicURL + "/images/" + name, nil
}
