package config

import (
	"time"

	"chatharvest/internal/harvest"
)

// HarvestConfig holds the harvest loop parameters.
type HarvestConfig struct {
	TargetCount       int    `yaml:"target_count"`
	WheelDistance     int    `yaml:"wheel_distance"`
	SettlePause       string `yaml:"settle_pause"`
	MaxPasses         int    `yaml:"max_passes"`
	NoProgressLimit   int    `yaml:"no_progress_limit"`
	AffordanceTimeout string `yaml:"affordance_timeout"`
}

// GetSettlePause returns the settle pause as a duration.
func (c HarvestConfig) GetSettlePause() time.Duration {
	d, err := time.ParseDuration(c.SettlePause)
	if err != nil {
		return harvest.DefaultSettlePause
	}
	return d
}

// GetAffordanceTimeout returns the load-more probe timeout as a duration.
func (c HarvestConfig) GetAffordanceTimeout() time.Duration {
	d, err := time.ParseDuration(c.AffordanceTimeout)
	if err != nil {
		return harvest.DefaultAffordanceTimeout
	}
	return d
}

// Request converts the config into a harvest request.
func (c HarvestConfig) Request() harvest.Request {
	return harvest.Request{
		TargetCount:   c.TargetCount,
		WheelDistance: c.WheelDistance,
		SettlePause:   c.GetSettlePause(),
		MaxPasses:     c.MaxPasses,
	}
}

// Options converts the config into harvester options.
func (c HarvestConfig) Options() harvest.Options {
	return harvest.Options{
		NoProgressLimit:   c.NoProgressLimit,
		AffordanceTimeout: c.GetAffordanceTimeout(),
	}
}

// AssistConfig configures what happens with a harvested transcript.
type AssistConfig struct {
	Mode          string `yaml:"mode"`           // summarize, reply, both
	UserID        string `yaml:"user_id"`        // our own display name in the chat
	ReplyWindow   int    `yaml:"reply_window"`   // newest records used for replies
	SummaryWindow int    `yaml:"summary_window"` // newest records used for the summary; 0 = all
}
