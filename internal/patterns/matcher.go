package patterns

import (
	"strings"
	"unicode/utf8"
)

// Match is a single non-overlapping regexp hit
type Match struct {
	Start int
	End   int
	Text  string
}

// FindAll returns every non-overlapping match of the signature, left to right
func FindAll(sig *Signature, content string) []Match {
	if sig.re == nil {
		return nil
	}
	idx := sig.re.FindAllStringIndex(content, -1)
	matches := make([]Match, 0, len(idx))
	for _, m := range idx {
		matches = append(matches, Match{Start: m[0], End: m[1], Text: content[m[0]:m[1]]})
	}
	return matches
}

// SequenceMatch is a valid (step1, step2) pairing
type SequenceMatch struct {
	Step1 Match
	Step2 Match
}

// MatchSequence pairs every step1 match with every step2 match that starts
// after it. All valid pairings are returned, in step1 then step2 order.
func MatchSequence(seq *Sequence, content string) []SequenceMatch {
	if seq.step1 == nil || seq.step2 == nil {
		return nil
	}
	first := seq.step1.FindAllStringIndex(content, -1)
	if len(first) == 0 {
		return nil
	}
	second := seq.step2.FindAllStringIndex(content, -1)

	var pairs []SequenceMatch
	for _, a := range first {
		for _, b := range second {
			if b[0] <= a[0] {
				continue
			}
			pairs = append(pairs, SequenceMatch{
				Step1: Match{Start: a[0], End: a[1], Text: content[a[0]:a[1]]},
				Step2: Match{Start: b[0], End: b[1], Text: content[b[0]:b[1]]},
			})
		}
	}
	return pairs
}

// LineNumber returns the 1-based line containing byte offset pos
func LineNumber(content string, pos int) int {
	if pos > len(content) {
		pos = len(content)
	}
	if pos < 0 {
		pos = 0
	}
	return 1 + strings.Count(content[:pos], "\n")
}

// Fragment extracts a single-line excerpt around pos with a ">>>" marker
func Fragment(content string, pos int, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 100
	}
	if pos > len(content) {
		pos = len(content)
	}
	if pos < 0 {
		pos = 0
	}
	for pos > 0 && pos < len(content) && !utf8.RuneStart(content[pos]) {
		pos--
	}

	// Window edges move inward so no rune is split
	start := pos - maxLen
	if start < 0 {
		start = 0
	}
	for start < pos && !utf8.RuneStart(content[start]) {
		start++
	}
	end := pos + maxLen
	if end > len(content) {
		end = len(content)
	}
	for end > pos && end < len(content) && !utf8.RuneStart(content[end]) {
		end--
	}

	fragment := content[start:pos] + ">>>" + content[pos:end]

	fragment = strings.ReplaceAll(fragment, "\r", "")
	fragment = strings.ReplaceAll(fragment, "\n", " ")
	fragment = strings.ReplaceAll(fragment, "\t", " ")
	return fragment
}
