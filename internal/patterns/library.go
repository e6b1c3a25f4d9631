package patterns

import (
	"sync"
)

// Library holds compiled signatures grouped by taxonomy. It is read-only once built.
type Library struct {
	byTaxonomy map[Taxonomy][]*Signature
	byID       map[string]*Signature
	sequences  []*Sequence
}

var (
	defaultOnce sync.Once
	defaultLib  *Library
)

// Default returns the process-wide built-in library, compiled on first use
func Default() *Library {
	defaultOnce.Do(func() {
		defaultLib = newBuiltin()
	})
	return defaultLib
}

func newBuiltin() *Library {
	lib := &Library{
		byTaxonomy: make(map[Taxonomy][]*Signature),
		byID:       make(map[string]*Signature),
	}

	for _, t := range All {
		for _, e := range builtinTable(t) {
			sig := &Signature{
				ID:          e.id,
				Name:        e.name,
				Description: e.description,
				Category:    e.category,
				Taxonomy:    t,
				Severity:    e.severity,
				Score:       e.score,
				Level:       e.level,
				Pattern:     e.pattern,
			}
			// Built-in tables are fixed at compile time
			if err := sig.Compile(); err != nil {
				panic(err)
			}
			lib.add(sig)
		}
	}

	for i := range multiStepSequences {
		seq := multiStepSequences[i]
		if err := seq.Compile(); err != nil {
			panic(err)
		}
		lib.sequences = append(lib.sequences, &seq)
	}

	return lib
}

// builtinTable dispatches a taxonomy to its pattern table
func builtinTable(t Taxonomy) []entry {
	switch t {
	case PersonalityTakeover:
		return personalityPatterns
	case DestructiveCommand:
		return destructivePatterns
	case ToolAbuse:
		return toolAbusePatterns
	case MultiStep:
		// Sequences live in their own table
		return nil
	case PromptInjection:
		return promptInjectionPatterns
	case XSS:
		return xssPatterns
	case SQLInjection:
		return sqlInjectionPatterns
	case CommandInjection:
		return commandInjectionPatterns
	case FileInclusion:
		return fileInclusionPatterns
	case SSRF:
		return ssrfPatterns
	case XXE:
		return xxePatterns
	}
	return nil
}

func (l *Library) add(sig *Signature) {
	l.byTaxonomy[sig.Taxonomy] = append(l.byTaxonomy[sig.Taxonomy], sig)
	l.byID[sig.ID] = sig
}

// Signatures returns the signatures of a taxonomy in table order.
// Strict signatures are included only when strict is set.
func (l *Library) Signatures(t Taxonomy, strict bool) []*Signature {
	all := l.byTaxonomy[t]
	if strict {
		return all
	}
	basic := make([]*Signature, 0, len(all))
	for _, s := range all {
		if s.Level == LevelBasic {
			basic = append(basic, s)
		}
	}
	return basic
}

// Sequences returns the multi-step pairs in table order
func (l *Library) Sequences(strict bool) []*Sequence {
	if strict {
		return l.sequences
	}
	basic := make([]*Sequence, 0, len(l.sequences))
	for _, s := range l.sequences {
		if s.Level == LevelBasic {
			basic = append(basic, s)
		}
	}
	return basic
}

// Get looks up a signature by ID
func (l *Library) Get(id string) (*Signature, bool) {
	s, ok := l.byID[id]
	return s, ok
}

// Len returns the number of single-pattern signatures
func (l *Library) Len() int {
	return len(l.byID)
}

// Count returns the number of non-overlapping matches of every signature of
// the taxonomy in content. For MultiStep it counts valid step pairs.
func (l *Library) Count(t Taxonomy, content string) int {
	if t == MultiStep {
		n := 0
		for _, seq := range l.sequences {
			n += len(MatchSequence(seq, content))
		}
		return n
	}
	n := 0
	for _, sig := range l.byTaxonomy[t] {
		n += len(FindAll(sig, content))
	}
	return n
}

// Extend returns a new library containing this library's patterns followed
// by the given compiled signatures and sequences. The receiver is not modified.
func (l *Library) Extend(sigs []*Signature, seqs []*Sequence) *Library {
	out := &Library{
		byTaxonomy: make(map[Taxonomy][]*Signature, len(l.byTaxonomy)),
		byID:       make(map[string]*Signature, len(l.byID)+len(sigs)),
		sequences:  append(append([]*Sequence{}, l.sequences...), seqs...),
	}
	for t, list := range l.byTaxonomy {
		out.byTaxonomy[t] = append([]*Signature{}, list...)
	}
	for id, s := range l.byID {
		out.byID[id] = s
	}
	for _, s := range sigs {
		out.add(s)
	}
	return out
}
