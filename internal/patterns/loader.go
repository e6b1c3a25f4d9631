package patterns

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nocsi/drip-api-sub008/pkg/models"
	"gopkg.in/yaml.v3"
)

// Loader loads user signatures from YAML files
type Loader struct {
	path string
}

// NewLoader creates a loader for a YAML file or a directory of them
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// SignatureFile represents a YAML signature file
type SignatureFile struct {
	Signatures []SignatureDef `yaml:"signatures"`
	Sequences  []SequenceDef  `yaml:"sequences"`
}

// SignatureDef is the on-disk form of a Signature
type SignatureDef struct {
	ID             string  `yaml:"id"`
	Name           string  `yaml:"name"`
	Description    string  `yaml:"description"`
	Taxonomy       string  `yaml:"taxonomy"`
	Category       string  `yaml:"category"`
	Severity       string  `yaml:"severity"`
	Score          int     `yaml:"score"`
	Confidence     float64 `yaml:"confidence"`
	Level          string  `yaml:"level"`
	Recommendation string  `yaml:"recommendation"`
	Pattern        string  `yaml:"pattern"`
	Enabled        *bool   `yaml:"enabled"`
}

// SequenceDef is the on-disk form of a Sequence
type SequenceDef struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	Description    string `yaml:"description"`
	Recommendation string `yaml:"recommendation"`
	Step1          string `yaml:"step1"`
	Step2          string `yaml:"step2"`
	Level          string `yaml:"level"`
}

// Load reads every .yaml/.yml file under the path. A missing path yields no signatures.
func (l *Loader) Load() ([]*Signature, []*Sequence, error) {
	var sigs []*Signature
	var seqs []*Sequence

	if l.path == "" {
		return nil, nil, nil
	}
	if _, err := os.Stat(l.path); os.IsNotExist(err) {
		return nil, nil, nil
	}

	err := filepath.Walk(l.path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Skip directories and non-YAML files
		if info.IsDir() || (filepath.Ext(path) != ".yaml" && filepath.Ext(path) != ".yml") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		fs, fq, err := Parse(data)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		sigs = append(sigs, fs...)
		seqs = append(seqs, fq...)
		return nil
	})

	return sigs, seqs, err
}

// LoadInto extends base with the loaded signatures
func (l *Loader) LoadInto(base *Library) (*Library, error) {
	sigs, seqs, err := l.Load()
	if err != nil {
		return nil, err
	}
	if len(sigs) == 0 && len(seqs) == 0 {
		return base, nil
	}
	return base.Extend(sigs, seqs), nil
}

// Parse decodes and compiles one YAML signature document
func Parse(data []byte) ([]*Signature, []*Sequence, error) {
	var file SignatureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, nil, err
	}

	sigs := make([]*Signature, 0, len(file.Signatures))
	for _, def := range file.Signatures {
		if def.Enabled != nil && !*def.Enabled {
			continue
		}
		sig, err := def.build()
		if err != nil {
			return nil, nil, err
		}
		sigs = append(sigs, sig)
	}

	seqs := make([]*Sequence, 0, len(file.Sequences))
	for _, def := range file.Sequences {
		level, err := ParseLevel(def.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("sequence %s: %w", def.ID, err)
		}
		seq := &Sequence{
			ID:             def.ID,
			Name:           def.Name,
			Description:    def.Description,
			Recommendation: def.Recommendation,
			Step1:          def.Step1,
			Step2:          def.Step2,
			Level:          level,
		}
		if err := seq.Compile(); err != nil {
			return nil, nil, err
		}
		seqs = append(seqs, seq)
	}

	return sigs, seqs, nil
}

func (d SignatureDef) build() (*Signature, error) {
	if d.ID == "" || d.Pattern == "" {
		return nil, fmt.Errorf("signature %q: id and pattern are required", d.ID)
	}
	tax, err := ParseTaxonomy(d.Taxonomy)
	if err != nil {
		return nil, fmt.Errorf("signature %s: %w", d.ID, err)
	}
	if tax == MultiStep {
		return nil, fmt.Errorf("signature %s: multi_step patterns must be declared as sequences", d.ID)
	}
	level, err := ParseLevel(d.Level)
	if err != nil {
		return nil, fmt.Errorf("signature %s: %w", d.ID, err)
	}

	var sev models.Severity
	if d.Severity != "" {
		s, ok := models.ParseSeverity(d.Severity)
		if !ok || s == models.SeverityNone {
			return nil, fmt.Errorf("signature %s: invalid severity %q", d.ID, d.Severity)
		}
		sev = s
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return nil, fmt.Errorf("signature %s: confidence must be within [0,1]", d.ID)
	}

	sig := &Signature{
		ID:             d.ID,
		Name:           d.Name,
		Description:    d.Description,
		Category:       d.Category,
		Taxonomy:       tax,
		Severity:       sev,
		Score:          d.Score,
		Confidence:     d.Confidence,
		Level:          level,
		Recommendation: d.Recommendation,
		Pattern:        d.Pattern,
	}
	if err := sig.Compile(); err != nil {
		return nil, err
	}
	return sig, nil
}
