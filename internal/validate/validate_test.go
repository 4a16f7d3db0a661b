// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package validate

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func TestValidator_URL(t *testing.T) {
	tests := []struct {
		name           string
		value          string
		allowedSchemes []string
		wantErr        bool
	}{
		{"valid http", "http://example.com", []string{"http", "https"}, false},
		{"valid https", "https://example.com", []string{"http", "https"}, false},
		{"empty url", "", []string{"http"}, true},
		{"no host", "http://", []string{"http"}, true},
		{"invalid scheme", "ftp://example.com", []string{"http", "https"}, true},
		{"with port", "http://127.0.0.1:8788", []string{"http"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.URL("testURL", tt.value, tt.allowedSchemes)

			if tt.wantErr && v.IsValid() {
				t.Errorf("expected error, got none")
			}
			if !tt.wantErr && !v.IsValid() {
				t.Errorf("unexpected error: %v", v.Err())
			}
		})
	}
}

func TestValidator_MediaURL(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"mp4", "https://cdn.example.com/ads/spot.mp4", false},
		{"empty", "", true},
		{"rtsp", "rtsp://cam/stream", true},
		{"no path", "https://cdn.example.com/", true},
		{"same origin", "/ads/spot.mp4", false},
		{"relative", "ads/spot.mp4", false},
		{"scheme relative", "//cdn.example.com/ads/spot.mp4", false},
		{"blank", "   ", true},
		{"root only", "/", true},
		{"no host", "https:///ads/spot.mp4", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.MediaURL("src", tt.value)
			if got := !v.IsValid(); got != tt.wantErr {
				t.Errorf("MediaURL(%q) error = %v, want %v", tt.value, got, tt.wantErr)
			}
		})
	}
}

func TestValidator_Unique(t *testing.T) {
	v := New()
	v.Unique("ids", []string{"a", "b", "a", "c", "a", "b"})
	errs := v.Errors()
	if len(errs) != 2 {
		t.Fatalf("expected 2 duplicate errors, got %d: %v", len(errs), v.Err())
	}
	if errs[0].Value != "a" || errs[1].Value != "b" {
		t.Errorf("unexpected duplicates: %+v", errs)
	}
}

func TestValidator_NumericChecks(t *testing.T) {
	v := New()
	v.Range("len", 3, 4, 8)
	v.Positive("width", 0)
	v.NonNegative("trigger", -1)
	v.FloatRange("rate", 1.5, 0, 1)
	v.PositiveDuration("interval", 0)
	v.Range("ok", 5, 4, 8)
	v.NonNegative("nan", math.NaN())
	v.NonNegative("inf", math.Inf(1))
	v.NonNegative("ok", 0)
	v.PositiveDuration("ok", time.Second)

	if got := len(v.Errors()); got != 7 {
		t.Fatalf("expected 7 errors, got %d: %v", got, v.Err())
	}
}

func TestValidationError_Format(t *testing.T) {
	v := New()
	if v.Err() != nil {
		t.Fatal("empty validator must return nil error")
	}
	v.NotEmpty("a", " ")
	v.OneOf("b", "x", []string{"y", "z"})

	err := v.Err()
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(verr.Errors()) != 2 {
		t.Errorf("expected 2 errors, got %d", len(verr.Errors()))
	}
	if !strings.Contains(err.Error(), "; ") {
		t.Errorf("multiple errors should be joined: %s", err)
	}
}
