// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package adbreak

import (
	"fmt"

	"github.com/ManuGH/gazegate/internal/validate"
)

// Config is one scheduled insertion point on the primary timeline. Configs
// are static and never mutated at runtime.
type Config struct {
	ID          string  `yaml:"id" json:"id"`
	TriggerTime float64 `yaml:"trigger_time" json:"triggerTime"`
	MediaSrc    string  `yaml:"media_src" json:"mediaSrc"`
	SkipTime    *int    `yaml:"skip_time,omitempty" json:"skipTime,omitempty"`
}

// Skippable reports whether the break offers skip and proceed actions.
func (c Config) Skippable() bool { return c.SkipTime != nil }

// ValidateConfigs rejects ill-formed break lists: duplicate or empty ids,
// negative or non-finite trigger times, negative skip times and missing media.
func ValidateConfigs(configs []Config) error {
	v := validate.New()
	ValidateInto(v, "ad_breaks", configs)
	return v.Err()
}

// ValidateInto adds break list errors to v, prefixing fields with field.
func ValidateInto(v *validate.Validator, field string, configs []Config) {
	ids := make([]string, 0, len(configs))
	for i, c := range configs {
		f := fmt.Sprintf("%s[%d]", field, i)
		v.NotEmpty(f+".id", c.ID)
		v.NonNegative(f+".trigger_time", c.TriggerTime)
		v.MediaURL(f+".media_src", c.MediaSrc)
		if c.SkipTime != nil && *c.SkipTime < 0 {
			v.AddError(f+".skip_time", fmt.Sprintf("value cannot be negative, got %d", *c.SkipTime), *c.SkipTime)
		}
		ids = append(ids, c.ID)
	}
	v.Unique(field+".id", ids)
}

func cloneConfig(c Config) Config {
	if c.SkipTime != nil {
		v := *c.SkipTime
		c.SkipTime = &v
	}
	return c
}
