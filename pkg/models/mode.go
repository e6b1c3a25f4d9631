package models

import (
	"errors"
	"fmt"
)

// ErrUnknownMode is returned for pipeline modes other than sanitize, detect and analyze
var ErrUnknownMode = errors.New("unknown pipeline mode")

// Mode selects what the pipeline does with detected threats
type Mode string

const (
	ModeSanitize Mode = "sanitize"
	ModeDetect   Mode = "detect"
	ModeAnalyze  Mode = "analyze"
)

// ParseMode validates a mode name
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSanitize, ModeDetect, ModeAnalyze:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Options tune a single scan
type Options struct {
	StrictMode      bool     `json:"strict_mode" mapstructure:"strict_mode"`
	IncludePolyglot bool     `json:"include_polyglot" mapstructure:"include_polyglot"`
	ThreatLevel     Severity `json:"threat_level" mapstructure:"threat_level"`
	AIOptimization  bool     `json:"ai_optimization" mapstructure:"ai_optimization"`
}

// DefaultOptions returns the options used when the caller supplies none
func DefaultOptions() Options {
	return Options{
		ThreatLevel:    SeverityMedium,
		AIOptimization: true,
	}
}

// OrDefault returns DefaultOptions when o is the zero value, so a caller that
// sets nothing still gets the agent detectors and the medium floor
func (o Options) OrDefault() Options {
	if o == (Options{}) {
		return DefaultOptions()
	}
	return o
}
