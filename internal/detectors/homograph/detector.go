package homograph

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/nocsi/drip-api-sub008/internal/detectors"
	"github.com/nocsi/drip-api-sub008/internal/patterns"
	"github.com/nocsi/drip-api-sub008/pkg/models"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/unicode/runenames"
)

// Detector finds look-alike characters used to disguise text: mixed-script
// words, compatibility forms, invisible characters and bidi overrides.
type Detector struct {
	*detectors.BaseDetector
}

// NewDetector creates a new homograph detector
func NewDetector() *Detector {
	return &Detector{
		BaseDetector: detectors.NewBaseDetector("homograph", 40, detectors.CategoryEncoding),
	}
}

const maxNamedRunes = 5

// Detect scans words and invisible runs
func (d *Detector) Detect(ctx context.Context, content string, opts models.Options) ([]*models.Threat, error) {
	var threats []*models.Threat

	for _, w := range words(content) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if t := d.checkWord(content, w); t != nil {
			threats = append(threats, t)
		}
	}

	threats = append(threats, d.invisibleRuns(content)...)
	return threats, nil
}

type word struct {
	start, end int
}

// words splits content into runs of letters and digits, keeping byte offsets
func words(content string) []word {
	var out []word
	start := -1
	for i, r := range content {
		inWord := unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
		switch {
		case inWord && start < 0:
			start = i
		case !inWord && start >= 0:
			out = append(out, word{start, i})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, word{start, len(content)})
	}
	return out
}

func (d *Detector) checkWord(content string, w word) *models.Threat {
	text := content[w.start:w.end]

	var latin, cyrillic, greek bool
	var foreign []rune
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Latin, r):
			latin = true
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic = true
			foreign = append(foreign, r)
		case unicode.Is(unicode.Greek, r):
			greek = true
			foreign = append(foreign, r)
		}
	}

	if latin && (cyrillic || greek) {
		return d.threat(content, w.start, w.end, "mixed_script", models.SeverityHigh, 7, 0.85,
			"Word mixes Latin with Cyrillic or Greek look-alike letters",
			map[string]any{"characters": runeNames(foreign)})
	}

	// Fullwidth and other compatibility forms that fold to plain ASCII
	if !isASCII(text) {
		folded := norm.NFKC.String(text)
		if folded != text && isASCII(folded) {
			return d.threat(content, w.start, w.end, "compatibility_spoof", models.SeverityMedium, 5, 0.75,
				"Word uses compatibility characters that normalize to ASCII",
				map[string]any{"normalized": folded})
		}
	}

	return nil
}

// invisibleRuns groups consecutive zero-width and bidi control characters
func (d *Detector) invisibleRuns(content string) []*models.Threat {
	var threats []*models.Threat

	i := 0
	for i < len(content) {
		r, size := utf8.DecodeRuneInString(content[i:])
		kind := classifyInvisible(r, i)
		if kind == "" {
			i += size
			continue
		}

		start := i
		var runes []rune
		bidi := false
		for i < len(content) {
			r, size = utf8.DecodeRuneInString(content[i:])
			k := classifyInvisible(r, i)
			if k == "" {
				break
			}
			if k == "bidi_override" {
				bidi = true
			}
			runes = append(runes, r)
			i += size
		}

		extra := map[string]any{"characters": runeNames(runes), "count": len(runes)}
		if bidi {
			threats = append(threats, d.threat(content, start, i, "bidi_override", models.SeverityHigh, 8, 0.9,
				"Bidirectional control characters can reorder displayed text", extra))
		} else {
			threats = append(threats, d.threat(content, start, i, "invisible_character", models.SeverityMedium, 5, 0.8,
				"Invisible characters hide or split words", extra))
		}
	}

	return threats
}

func classifyInvisible(r rune, pos int) string {
	switch {
	case r >= 0x202A && r <= 0x202E, r >= 0x2066 && r <= 0x2069:
		return "bidi_override"
	case r == 0xFEFF && pos == 0:
		// Leading byte order mark
		return ""
	case r >= 0x200B && r <= 0x200D, r == 0x2060, r == 0xFEFF, r == 0x00AD:
		return "invisible"
	}
	return ""
}

func (d *Detector) threat(content string, start, end int, category string, sev models.Severity, score int, confidence float64, desc string, extra map[string]any) *models.Threat {
	return &models.Threat{
		Type:          models.ThreatHomographAttack,
		Severity:      sev,
		SeverityScore: score,
		Pattern:       category,
		Location: models.Location{
			Span: models.NewSpan(start, end),
			Line: patterns.LineNumber(content, start),
		},
		MatchedText:    models.MatchedText{Text: content[start:end]},
		Description:    desc,
		Recommendation: "Normalize text (NFKC) and strip invisible and bidi control characters before display",
		Metadata: models.ThreatMetadata{
			AttackCategory: category,
			Confidence:     confidence,
			Mitigation:     "Reject or normalize confusable characters",
			Extra:          extra,
		},
		Detector:   d.Name(),
		DetectedAt: time.Now(),
	}
}

func runeNames(runes []rune) []string {
	names := make([]string, 0, len(runes))
	for i, r := range runes {
		if i == maxNamedRunes {
			names = append(names, fmt.Sprintf("... %d more", len(runes)-maxNamedRunes))
			break
		}
		name := runenames.Name(r)
		if name == "" {
			name = "UNNAMED"
		}
		names = append(names, fmt.Sprintf("U+%04X %s", r, name))
	}
	return names
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// Normalize folds compatibility forms and strips invisible and bidi control
// characters. A leading byte order mark is dropped too.
func Normalize(content string) string {
	folded := norm.NFKC.String(content)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if shouldRemove(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// shouldRemove drops format and private-use runes plus control characters
// other than common whitespace
func shouldRemove(r rune) bool {
	if r == '\n' || r == '\t' || r == '\r' {
		return false
	}
	return unicode.Is(unicode.Cf, r) || unicode.Is(unicode.Co, r) || unicode.Is(unicode.Cc, r)
}
