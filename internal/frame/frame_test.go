// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package frame

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

type fixedSource struct {
	img image.Image
	ok  bool
}

func (f fixedSource) Snapshot() (image.Image, bool) { return f.img, f.ok }

func TestCaptureStill_NotReady(t *testing.T) {
	cases := map[string]Source{
		"nil source":   nil,
		"no metadata":  fixedSource{ok: false},
		"zero size":    fixedSource{img: image.NewRGBA(image.Rect(0, 0, 0, 0)), ok: true},
		"nil image ok": fixedSource{ok: true},
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := CaptureStill(src)
			assert.False(t, ok)
		})
	}
}

func TestCaptureStill_DataURI(t *testing.T) {
	still, ok := CaptureStill(fixedSource{img: solid(64, 48, color.White), ok: true})
	require.True(t, ok)
	assert.Equal(t, 64, still.Width())
	assert.Equal(t, 48, still.Height())

	uri, err := still.DataURI()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:image/jpeg;base64,"))
}

func TestReduce_LumaWeights(t *testing.T) {
	tests := []struct {
		name string
		c    color.RGBA
		want int
	}{
		{"black", color.RGBA{0, 0, 0, 255}, 0},
		{"white", color.RGBA{255, 255, 255, 255}, 255},
		{"red", color.RGBA{255, 0, 0, 255}, 76},
		{"green", color.RGBA{0, 255, 0, 255}, 150},
		{"blue", color.RGBA{0, 0, 255, 255}, 29},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Reduce(solid(160, 120, tt.c), DefaultWidth, DefaultHeight)
			require.Len(t, s, DefaultWidth*DefaultHeight)
			for _, v := range s {
				require.Equal(t, tt.want, v)
			}
		})
	}
}

func TestReduce_Invalid(t *testing.T) {
	assert.Nil(t, Reduce(nil, 16, 12))
	assert.Nil(t, Reduce(solid(4, 4, color.White), 0, 12))
}

func TestDiff(t *testing.T) {
	sum, ok := Diff(Samples{1, 5, 10}, Samples{4, 5, 0})
	require.True(t, ok)
	assert.Equal(t, 13, sum)

	_, ok = Diff(Samples{1, 2}, Samples{1})
	assert.False(t, ok)
	_, ok = Diff(nil, nil)
	assert.False(t, ok)
}

func TestDecode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(8, 6, color.Black)))

	img, format, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 8, img.Bounds().Dx())

	_, _, err = Decode([]byte("not an image"))
	assert.Error(t, err)
}

// hugePNG returns a 1x1 PNG whose header claims width x height pixels.
func hugePNG(t *testing.T, width, height uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(1, 1, color.Black)))
	data := buf.Bytes()
	// IHDR data starts after the signature, chunk length and type.
	binary.BigEndian.PutUint32(data[16:], width)
	binary.BigEndian.PutUint32(data[20:], height)
	binary.BigEndian.PutUint32(data[29:], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestDecode_PixelLimit(t *testing.T) {
	_, format, err := Decode(hugePNG(t, 12000, 12000))
	require.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, "png", format)
	assert.Contains(t, err.Error(), "12000x12000")

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(16, 16, color.White)))
	_, _, err = DecodeLimited(buf.Bytes(), 255)
	assert.ErrorIs(t, err, ErrTooLarge)

	img, _, err := DecodeLimited(buf.Bytes(), 256)
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())

	_, _, err = DecodeLimited(buf.Bytes(), 0)
	assert.NoError(t, err, "a non-positive limit disables the check")
}

func TestLatest(t *testing.T) {
	var l Latest
	_, ok := l.Snapshot()
	assert.False(t, ok)

	l.Store(solid(2, 2, color.White))
	img, ok := l.Snapshot()
	require.True(t, ok)
	assert.Equal(t, 2, img.Bounds().Dx())
	assert.False(t, l.Updated().IsZero())

	l.Clear()
	_, ok = l.Snapshot()
	assert.False(t, ok)
}
