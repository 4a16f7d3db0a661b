// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseString(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		set   bool
		want  string
	}{
		{"set", "GAZEGATE_TEST_STRING", "from-env", true, "from-env"},
		{"unset", "GAZEGATE_TEST_STRING_UNSET", "", false, "default"},
		{"empty", "GAZEGATE_TEST_STRING_EMPTY", "", true, "default"},
		{"sensitive", "GAZEGATE_TEST_PASSWORD", "secret123", true, "secret123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.set {
				t.Setenv(tt.key, tt.value)
			}
			assert.Equal(t, tt.want, ParseString(tt.key, "default"))
		})
	}
}

func TestParseNumbers(t *testing.T) {
	t.Setenv("GAZEGATE_TEST_INT", "42")
	t.Setenv("GAZEGATE_TEST_INT_BAD", "4x2")
	t.Setenv("GAZEGATE_TEST_FLOAT", "0.25")
	t.Setenv("GAZEGATE_TEST_DUR", "750ms")
	t.Setenv("GAZEGATE_TEST_DUR_BAD", "soon")

	assert.Equal(t, 42, ParseInt("GAZEGATE_TEST_INT", 1))
	assert.Equal(t, 1, ParseInt("GAZEGATE_TEST_INT_BAD", 1))
	assert.InDelta(t, 0.25, ParseFloat("GAZEGATE_TEST_FLOAT", 1), 1e-9)
	assert.Equal(t, 750*time.Millisecond, ParseDuration("GAZEGATE_TEST_DUR", time.Second))
	assert.Equal(t, time.Second, ParseDuration("GAZEGATE_TEST_DUR_BAD", time.Second))
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"true", "1", "YES"} {
		t.Setenv("GAZEGATE_TEST_BOOL", v)
		assert.True(t, ParseBool("GAZEGATE_TEST_BOOL", false), v)
	}
	for _, v := range []string{"false", "0", "no"} {
		t.Setenv("GAZEGATE_TEST_BOOL", v)
		assert.False(t, ParseBool("GAZEGATE_TEST_BOOL", true), v)
	}
	t.Setenv("GAZEGATE_TEST_BOOL", "maybe")
	assert.True(t, ParseBool("GAZEGATE_TEST_BOOL", true))
}
