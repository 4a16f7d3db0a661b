// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package frame captures still frames from a live source and reduces them to
// small grayscale fingerprints for change detection.
package frame

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // decoder registration for pushed frames
	"math"
	"sync"
	"time"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // decoder registration for pushed frames
)

// Default fingerprint grid.
const (
	DefaultWidth  = 16
	DefaultHeight = 12
)

// DefaultMaxPixels bounds the decoded size of a pushed frame.
const DefaultMaxPixels = 4 << 20

var (
	// ErrEmptyFrame is returned by Decode for images without pixels.
	ErrEmptyFrame = errors.New("frame has zero dimensions")
	// ErrUndecodable is returned by Decode for data that is not a supported image.
	ErrUndecodable = errors.New("frame is not a supported image")
	// ErrTooLarge is returned when the image header declares more pixels
	// than allowed.
	ErrTooLarge = errors.New("frame exceeds the pixel limit")
)

// Source is a live video source. Snapshot returns false while the source has
// no metadata or zero dimensions; that is a transient state, not an error.
type Source interface {
	Snapshot() (image.Image, bool)
}

// Still is one captured frame.
type Still struct {
	Image image.Image
	At    time.Time
}

// Width returns the frame width in pixels.
func (s Still) Width() int { return s.Image.Bounds().Dx() }

// Height returns the frame height in pixels.
func (s Still) Height() int { return s.Image.Bounds().Dy() }

// CaptureStill grabs the current frame of src. ok is false when there is
// nothing usable yet.
func CaptureStill(src Source) (Still, bool) {
	if src == nil {
		return Still{}, false
	}
	img, ok := src.Snapshot()
	if !ok || img == nil || img.Bounds().Empty() {
		return Still{}, false
	}
	return Still{Image: img, At: time.Now()}, true
}

// JPEG encodes the still at browser-equivalent quality.
func (s Still) JPEG() ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, s.Image, &jpeg.Options{Quality: 92}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURI returns the still as a base64 JPEG data URI.
func (s Still) DataURI() (string, error) {
	data, err := s.JPEG()
	if err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Samples is a downscaled grayscale frame, row-major, length width*height.
type Samples []int

// Reduce downsamples img to a width x height grid and converts every cell to
// luma (0.299R + 0.587G + 0.114B), rounded to the nearest integer.
func Reduce(img image.Image, width, height int) Samples {
	if img == nil || width <= 0 || height <= 0 || img.Bounds().Empty() {
		return nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	out := make(Samples, 0, width*height)
	for i := 0; i+3 < len(dst.Pix); i += 4 {
		r, g, b := float64(dst.Pix[i]), float64(dst.Pix[i+1]), float64(dst.Pix[i+2])
		out = append(out, int(math.Round(0.299*r+0.587*g+0.114*b)))
	}
	return out
}

// Diff returns the sum of absolute per-sample differences. ok is false when
// the frames cannot be compared (different lengths or an empty frame).
func Diff(a, b Samples) (sum int, ok bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	for i := range a {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum, true
}

// Decode parses a pushed JPEG, PNG or WebP frame of at most
// DefaultMaxPixels pixels.
func Decode(data []byte) (image.Image, string, error) {
	return DecodeLimited(data, DefaultMaxPixels)
}

// DecodeLimited is Decode with an explicit pixel limit. The limit is checked
// against the image header before pixel data is allocated; maxPixels <= 0
// disables it.
func DecodeLimited(data []byte, maxPixels int) (image.Image, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrUndecodable, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, format, ErrEmptyFrame
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, format, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrUndecodable, err)
	}
	if img.Bounds().Empty() {
		return nil, format, ErrEmptyFrame
	}
	return img, format, nil
}

// Latest is a Source holding the most recently stored frame.
type Latest struct {
	mu  sync.RWMutex
	img image.Image
	at  time.Time
}

// Store replaces the current frame.
func (l *Latest) Store(img image.Image) {
	l.mu.Lock()
	l.img = img
	l.at = time.Now()
	l.mu.Unlock()
}

// Snapshot implements Source.
func (l *Latest) Snapshot() (image.Image, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.img == nil || l.img.Bounds().Empty() {
		return nil, false
	}
	return l.img, true
}

// Updated returns the time of the last Store.
func (l *Latest) Updated() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.at
}

// Clear drops the stored frame.
func (l *Latest) Clear() {
	l.mu.Lock()
	l.img = nil
	l.mu.Unlock()
}
