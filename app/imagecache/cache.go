package imagecache

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
)

const (
	filePrefix = "note_"
	fileExt    = ".jpg"
)

// Cache is a content-addressed disk store for downsampled note images. The
// key is the note ID; existence of the file is the cache-hit signal, so no
// separate index is kept.
type Cache struct {
	dir          string
	maxDimension int
	quality      int
}

func New(dir string, maxDimension, quality int) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &Cache{
		dir:          dir,
		maxDimension: maxDimension,
		quality:      quality,
	}, nil
}

// Path returns the cache file path for a note ID. The file may not exist.
func (c *Cache) Path(id string) string {
	return filepath.Join(c.dir, filePrefix+id+fileExt)
}

// Contains reports whether a cached file exists for the note ID.
func (c *Cache) Contains(id string) bool {
	_, err := os.Stat(c.Path(id))
	return err == nil
}

// Materialize turns a base64 image payload into a downsampled JPEG on disk
// and returns the cache path. An already-cached ID is a hit: the payload is
// not decoded again. The write is temp-file + rename, so a cancelled or
// failed call never leaves a partial cache entry.
//
// Cancellation is polled before the heavy decode and before the disk write;
// a cancelled call returns ctx.Err() with nothing written.
func (c *Cache) Materialize(ctx context.Context, id string, payload []byte) (string, error) {
	path := c.Path(id)
	if c.Contains(id) {
		return path, nil
	}

	raw, err := base64.StdEncoding.DecodeString(string(payload))
	if err != nil {
		return "", fmt.Errorf("failed to decode base64 payload: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	img, err := c.decodeDownsampled(raw)
	if err != nil {
		return "", err
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := c.writeJPEG(path, img); err != nil {
		return "", err
	}

	return path, nil
}

// decodeDownsampled decodes the image and scales it so the larger dimension
// does not exceed the configured bound, keeping peak memory proportional to
// the target size rather than the source.
func (c *Cache) decodeDownsampled(raw []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to probe image dimensions: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	maxDim := cfg.Width
	if cfg.Height > maxDim {
		maxDim = cfg.Height
	}
	if maxDim <= c.maxDimension {
		return img, nil
	}

	scale := float64(c.maxDimension) / float64(maxDim)
	width := int(float64(cfg.Width)*scale + 0.5)
	height := int(float64(cfg.Height)*scale + 0.5)
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	return dst, nil
}

func (c *Cache) writeJPEG(path string, img image.Image) error {
	tmp, err := os.CreateTemp(c.dir, filePrefix+"*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if err := jpeg.Encode(tmp, img, &jpeg.Options{Quality: c.quality}); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to encode JPEG: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move cache file into place: %w", err)
	}

	return nil
}

// Trim removes cached images older than maxAge. Called when a feed surface
// detaches or is destroyed, mirroring memory trimming on navigation away.
func (c *Cache) Trim(maxAge time.Duration) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		slog.Warn("Failed to read cache directory for trim", "dir", c.dir, "error", err)
		return
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, filePrefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(c.dir, name)); err == nil {
			removed++
		}
	}

	if removed > 0 {
		slog.Debug("Image cache trimmed", "removed", removed, "max_age", maxAge.String())
	}
}
