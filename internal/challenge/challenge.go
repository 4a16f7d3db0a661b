// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package challenge generates and verifies distorted-text liveness challenges.
//
// A challenge is a speed bump against automation, not a cryptographic proof:
// a failed attempt must always be followed by a freshly generated challenge so
// that one rendering cannot be guessed against repeatedly.
package challenge

import (
	crand "crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

const (
	// DefaultLength is the number of characters in a challenge.
	DefaultLength = 4
	// Alphabet is the set challenge characters are drawn from.
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	imageWidth  = 180
	imageHeight = 60
	background  = "#f0f0f0"

	noiseLinesBelow = 5
	noiseLinesAbove = 3

	startX      = 20
	charSpacing = 35
	baselineY   = 35
	jitter      = 5
	maxRotation = 15
	fontSize    = 28
)

var palette = []string{"#d6336c", "#ae3ec9", "#7048e8", "#4263eb", "#1c7ed6", "#0ca678", "#37b24d", "#f59f00"}

// Challenge is one rendered liveness puzzle.
type Challenge struct {
	ID        string    `json:"id"`
	Text      string    `json:"-"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"createdAt"`
}

// Random is the randomness a Generator draws from. *rand.Rand satisfies it.
type Random interface {
	IntN(n int) int
	Float64() float64
}

// Generator produces challenges. It is safe for concurrent use.
type Generator struct {
	mu     sync.Mutex
	rnd    Random
	length int
	now    func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithRandom replaces the random source, mainly for tests.
func WithRandom(r Random) Option {
	return func(g *Generator) { g.rnd = r }
}

// WithLength sets the challenge length. Values < 1 keep the default.
func WithLength(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.length = n
		}
	}
}

// NewGenerator returns a generator seeded from crypto/rand.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		rnd:    rand.New(rand.NewChaCha8(seed())),
		length: DefaultLength,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func seed() [32]byte {
	var s [32]byte
	if _, err := crand.Read(s[:]); err != nil {
		binary.LittleEndian.PutUint64(s[:], uint64(time.Now().UnixNano()))
	}
	return s
}

// Length returns the number of characters per challenge.
func (g *Generator) Length() int { return g.length }

// Generate creates a new random challenge and its rendering.
func (g *Generator) Generate() Challenge {
	g.mu.Lock()
	defer g.mu.Unlock()

	var text strings.Builder
	for i := 0; i < g.length; i++ {
		text.WriteByte(Alphabet[g.rnd.IntN(len(Alphabet))])
	}
	svg := g.render(text.String())

	return Challenge{
		ID:        uuid.NewString(),
		Text:      text.String(),
		Image:     "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg)),
		CreatedAt: g.now(),
	}
}

// render draws noise lines, jittered and rotated glyphs and more noise on top.
// Caller must hold g.mu.
func (g *Generator) render(text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		imageWidth, imageHeight, imageWidth, imageHeight)
	fmt.Fprintf(&b, `<rect width="100%%" height="100%%" fill="%s"/>`, background)

	for i := 0; i < noiseLinesBelow; i++ {
		g.noiseLine(&b, "")
	}
	for i, ch := range text {
		x := float64(startX+i*charSpacing) + g.spread(jitter)
		y := float64(baselineY) + g.spread(jitter)
		rot := g.spread(maxRotation)
		color := palette[g.rnd.IntN(len(palette))]
		fmt.Fprintf(&b,
			`<text x="%.2f" y="%.2f" font-family="Arial, sans-serif" font-size="%d" font-weight="bold" fill="%s" transform="rotate(%.2f, %.2f, %.2f)">%c</text>`,
			x, y, fontSize, color, rot, x, y, ch)
	}
	for i := 0; i < noiseLinesAbove; i++ {
		g.noiseLine(&b, ` opacity="0.7"`)
	}
	b.WriteString(`</svg>`)
	return b.String()
}

func (g *Generator) noiseLine(b *strings.Builder, extra string) {
	fmt.Fprintf(b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="#%06x" stroke-width="1"%s/>`,
		g.rnd.Float64()*imageWidth, g.rnd.Float64()*imageHeight,
		g.rnd.Float64()*imageWidth, g.rnd.Float64()*imageHeight,
		g.rnd.IntN(0xffffff), extra)
}

// spread returns a value uniformly distributed in [-r, r).
func (g *Generator) spread(r float64) float64 {
	return g.rnd.Float64()*2*r - r
}

// Verify reports whether input matches the challenge text, ignoring case and
// surrounding whitespace.
func Verify(ch Challenge, input string) bool {
	if ch.Text == "" {
		return false
	}
	fold := cases.Fold()
	return fold.String(strings.TrimSpace(input)) == fold.String(ch.Text)
}

// SVG decodes the rendered image, mainly for tooling that writes it to disk.
func (ch Challenge) SVG() ([]byte, error) {
	const prefix = "data:image/svg+xml;base64,"
	if !strings.HasPrefix(ch.Image, prefix) {
		return nil, fmt.Errorf("challenge image is not an svg data uri")
	}
	return base64.StdEncoding.DecodeString(strings.TrimPrefix(ch.Image, prefix))
}
