// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package challenge

import (
	"math/rand/v2"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(seed uint64) Option {
	return WithRandom(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

var textPattern = regexp.MustCompile(`^[A-Z0-9]{4}$`)

func TestGenerate_Shape(t *testing.T) {
	g := NewGenerator(seeded(1))
	ch := g.Generate()

	assert.Regexp(t, textPattern, ch.Text)
	assert.NotEmpty(t, ch.ID)
	assert.False(t, ch.CreatedAt.IsZero())

	svg, err := ch.SVG()
	require.NoError(t, err)
	doc := string(svg)
	assert.True(t, strings.HasPrefix(doc, `<svg xmlns="http://www.w3.org/2000/svg" width="180" height="60"`))
	assert.Contains(t, doc, `fill="#f0f0f0"`)
	assert.Equal(t, 8, strings.Count(doc, "<line "))
	assert.Equal(t, 3, strings.Count(doc, `opacity="0.7"`))
	assert.Equal(t, 4, strings.Count(doc, "<text "))
	for _, c := range ch.Text {
		assert.Contains(t, doc, ">"+string(c)+"</text>")
	}
}

func TestGenerate_NoiseBelowAndAboveText(t *testing.T) {
	ch := NewGenerator(seeded(2)).Generate()
	svg, err := ch.SVG()
	require.NoError(t, err)
	doc := string(svg)

	firstText := strings.Index(doc, "<text ")
	lastText := strings.LastIndex(doc, "</text>")
	assert.Equal(t, 5, strings.Count(doc[:firstText], "<line "))
	assert.Equal(t, 3, strings.Count(doc[lastText:], "<line "))
}

func TestGenerate_RenderingIsNotDeterministic(t *testing.T) {
	g := NewGenerator()
	a, b := g.Generate(), g.Generate()
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.Image, b.Image)
}

func TestWithLength(t *testing.T) {
	g := NewGenerator(WithLength(6))
	assert.Equal(t, 6, g.Length())
	assert.Len(t, g.Generate().Text, 6)

	assert.Equal(t, DefaultLength, NewGenerator(WithLength(0)).Length())
}

func TestVerify_RoundTrip(t *testing.T) {
	g := NewGenerator(seeded(3))
	for i := 0; i < 500; i++ {
		ch := g.Generate()
		require.True(t, Verify(ch, ch.Text), ch.Text)
		require.True(t, Verify(ch, " "+strings.ToLower(ch.Text)+"\n"), ch.Text)
	}
}

func TestVerify_RejectsOtherStrings(t *testing.T) {
	g := NewGenerator(seeded(4))
	other := NewGenerator(seeded(5))

	accepted := 0
	const rounds = 2000
	for i := 0; i < rounds; i++ {
		ch := g.Generate()
		guess := other.Generate().Text
		if guess == ch.Text {
			continue
		}
		if Verify(ch, guess) {
			accepted++
		}
	}
	assert.Zero(t, accepted)
}

func TestVerify_EdgeCases(t *testing.T) {
	ch := Challenge{Text: "AB12"}
	assert.False(t, Verify(ch, ""))
	assert.False(t, Verify(ch, "AB1"))
	assert.False(t, Verify(ch, "AB123"))
	assert.False(t, Verify(Challenge{}, ""), "empty challenge never verifies")
}

func TestSVG_RejectsForeignImage(t *testing.T) {
	_, err := Challenge{Image: "data:image/png;base64,AAAA"}.SVG()
	assert.Error(t, err)
}
