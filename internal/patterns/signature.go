package patterns

import (
	"fmt"
	"regexp"

	"github.com/nocsi/drip-api-sub008/pkg/models"
)

// Level represents the signature detection level
type Level int

const (
	// LevelBasic signatures always run
	LevelBasic Level = iota
	// LevelStrict signatures run only in strict mode
	LevelStrict
)

// ParseLevel maps "basic"/"strict" (or empty) to a Level
func ParseLevel(s string) (Level, error) {
	switch s {
	case "", "basic":
		return LevelBasic, nil
	case "strict", "paranoid":
		return LevelStrict, nil
	}
	return LevelBasic, fmt.Errorf("unknown signature level %q", s)
}

// Signature is a single compiled detection pattern
type Signature struct {
	ID             string
	Name           string
	Description    string
	Category       string
	Taxonomy       Taxonomy
	Severity       models.Severity
	Score          int
	Confidence     float64
	Level          Level
	Recommendation string
	Pattern        string

	re *regexp.Regexp
}

// Compile compiles the pattern case-insensitively and fills defaults from the taxonomy.
// Agent taxonomies always carry the taxonomy's fixed severity, score and confidence.
func (s *Signature) Compile() error {
	re, err := regexp.Compile("(?i)" + s.Pattern)
	if err != nil {
		return fmt.Errorf("signature %s: %w", s.ID, err)
	}
	s.re = re

	if s.Taxonomy.Agent() || s.Severity == "" {
		s.Severity = s.Taxonomy.DefaultSeverity()
	}
	if s.Taxonomy.Agent() || s.Score == 0 {
		s.Score = s.Taxonomy.SeverityScore()
	}
	if s.Taxonomy.Agent() || s.Confidence == 0 {
		s.Confidence = s.Taxonomy.Confidence()
	}
	if s.Recommendation == "" {
		s.Recommendation = s.Taxonomy.Mitigation()
	}
	return nil
}

// Regexp returns the compiled pattern
func (s *Signature) Regexp() *regexp.Regexp {
	return s.re
}

// Sequence correlates two patterns that together describe a staged attack
type Sequence struct {
	ID             string
	Name           string
	Description    string
	Recommendation string
	Step1          string
	Step2          string
	Level          Level

	step1 *regexp.Regexp
	step2 *regexp.Regexp
}

// Compile compiles both steps case-insensitively
func (s *Sequence) Compile() error {
	var err error
	if s.step1, err = regexp.Compile("(?i)" + s.Step1); err != nil {
		return fmt.Errorf("sequence %s step1: %w", s.ID, err)
	}
	if s.step2, err = regexp.Compile("(?i)" + s.Step2); err != nil {
		return fmt.Errorf("sequence %s step2: %w", s.ID, err)
	}
	if s.Recommendation == "" {
		s.Recommendation = MultiStep.Mitigation()
	}
	return nil
}

// Steps returns the compiled step patterns
func (s *Sequence) Steps() (*regexp.Regexp, *regexp.Regexp) {
	return s.step1, s.step2
}
