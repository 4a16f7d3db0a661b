// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package validate provides configuration validation utilities for gazegate.
package validate

import (
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"
)

// Error represents a validation error
type Error struct {
	Field   string      // Field name that failed validation
	Value   interface{} // The invalid value
	Message string      // Human-readable error message
}

// Error implements the error interface
func (e Error) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// Validator accumulates validation errors and can produce a ValidationError when invalid.
type Validator struct {
	errors []Error
}

// ValidationError bundles multiple validation errors into a single error value.
type ValidationError struct {
	errors []Error
}

// New creates a new validator
func New() *Validator {
	return &Validator{
		errors: make([]Error, 0),
	}
}

// AddError adds a validation error
func (v *Validator) AddError(field, message string, value interface{}) {
	v.errors = append(v.errors, Error{
		Field:   field,
		Value:   value,
		Message: message,
	})
}

// IsValid returns true if no errors have been accumulated
func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

// Errors returns all accumulated validation errors
func (v *Validator) Errors() []Error {
	return v.errors
}

// Err converts the accumulated validation errors into an error value.
func (v *Validator) Err() error {
	if len(v.errors) == 0 {
		return nil
	}

	copied := make([]Error, len(v.errors))
	copy(copied, v.errors)

	return ValidationError{errors: copied}
}

// Errors returns the individual validation errors making up the validation failure.
func (e ValidationError) Errors() []Error {
	return e.errors
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	if len(e.errors) == 0 {
		return ""
	}

	if len(e.errors) == 1 {
		return e.errors[0].Error()
	}

	msgs := make([]string, len(e.errors))
	for i, err := range e.errors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// URL validates a URL string
func (v *Validator) URL(field, value string, allowedSchemes []string) {
	if value == "" {
		v.AddError(field, "URL cannot be empty", value)
		return
	}

	u, err := url.Parse(value)
	if err != nil {
		v.AddError(field, fmt.Sprintf("invalid URL: %v", err), value)
		return
	}

	if u.Host == "" {
		v.AddError(field, "URL must have a host", value)
		return
	}

	if len(allowedSchemes) > 0 {
		schemeValid := false
		for _, scheme := range allowedSchemes {
			if u.Scheme == scheme {
				schemeValid = true
				break
			}
		}
		if !schemeValid {
			v.AddError(field,
				fmt.Sprintf("unsupported URL scheme %q (allowed: %v)", u.Scheme, allowedSchemes),
				value)
		}
	}
}

// MediaURL validates a playable media reference: an absolute http/https URL
// with a host and a path, or a same-origin reference such as /ads/a.mp4.
func (v *Validator) MediaURL(field, mediaURL string) {
	if strings.TrimSpace(mediaURL) == "" {
		v.AddError(field, "media URL cannot be empty", mediaURL)
		return
	}

	u, err := url.Parse(mediaURL)
	if err != nil {
		v.AddError(field, fmt.Sprintf("invalid URL syntax: %v", err), mediaURL)
		return
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		v.AddError(field, fmt.Sprintf("unsupported scheme %q (must be http or https)", u.Scheme), mediaURL)
		return
	}
	if u.Scheme != "" && u.Host == "" {
		v.AddError(field, "media URL must have a host", mediaURL)
		return
	}
	if u.Path == "" || u.Path == "/" {
		v.AddError(field, "media URL must have a path component", mediaURL)
	}
}

// Range validates that an integer is within a specified range (inclusive)
func (v *Validator) Range(field string, value, minVal, maxVal int) {
	if value < minVal || value > maxVal {
		v.AddError(field,
			fmt.Sprintf("value must be between %d and %d, got %d", minVal, maxVal, value),
			value)
	}
}

// FloatRange validates that a float is within a specified range (inclusive)
func (v *Validator) FloatRange(field string, value, minVal, maxVal float64) {
	if value < minVal || value > maxVal {
		v.AddError(field,
			fmt.Sprintf("value must be between %g and %g, got %g", minVal, maxVal, value),
			value)
	}
}

// NotEmpty validates that a string is not empty or whitespace-only
func (v *Validator) NotEmpty(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "value cannot be empty", value)
	}
}

// OneOf validates that a value is one of the allowed values
func (v *Validator) OneOf(field, value string, allowed []string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.AddError(field,
		fmt.Sprintf("value must be one of %v, got %q", allowed, value),
		value)
}

// Positive validates that a number is positive (> 0)
func (v *Validator) Positive(field string, value int) {
	if value <= 0 {
		v.AddError(field, fmt.Sprintf("value must be positive, got %d", value), value)
	}
}

// NonNegative validates that a number is finite and non-negative (>= 0)
func (v *Validator) NonNegative(field string, value float64) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		v.AddError(field, fmt.Sprintf("value must be finite, got %g", value), value)
		return
	}
	if value < 0 {
		v.AddError(field, fmt.Sprintf("value cannot be negative, got %g", value), value)
	}
}

// PositiveDuration validates that a duration is strictly positive.
func (v *Validator) PositiveDuration(field string, d time.Duration) {
	if d <= 0 {
		v.AddError(field, fmt.Sprintf("duration must be positive, got %s", d), d)
	}
}

// Unique reports every value that occurs more than once.
func (v *Validator) Unique(field string, values []string) {
	seen := make(map[string]struct{}, len(values))
	reported := make(map[string]struct{})
	for _, val := range values {
		if _, ok := seen[val]; ok {
			if _, done := reported[val]; !done {
				v.AddError(field, fmt.Sprintf("duplicate value %q", val), val)
				reported[val] = struct{}{}
			}
			continue
		}
		seen[val] = struct{}{}
	}
}
