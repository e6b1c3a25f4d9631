package polyglot

import (
	"bytes"
	"context"
	"encoding/base64"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nocsi/drip-api-sub008/internal/detectors"
	"github.com/nocsi/drip-api-sub008/internal/patterns"
	"github.com/nocsi/drip-api-sub008/pkg/models"
)

// Detector finds binary payloads hidden in markdown: raw magic headers,
// data URIs that decode to binaries and long high-entropy encoded blobs.
type Detector struct {
	*detectors.BaseDetector
}

// Magic bytes for executable and container formats
var magicBytes = []struct {
	name  string
	magic []byte
	// anchored signatures only count at the start of content or a line
	anchored bool
}{
	{"ELF", []byte{0x7f, 0x45, 0x4c, 0x46}, false},
	{"PE", []byte{0x4d, 0x5a, 0x90, 0x00}, false},
	{"MachO32", []byte{0xfe, 0xed, 0xfa, 0xce}, false},
	{"MachO64", []byte{0xfe, 0xed, 0xfa, 0xcf}, false},
	{"MachOFat", []byte{0xca, 0xfe, 0xba, 0xbe}, false},
	{"DEX", []byte("dex\n035"), false},
	{"PNG", []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}, false},
	{"ZIP", []byte{0x50, 0x4b, 0x03, 0x04}, false},
	{"PDF", []byte("%PDF-1."), true},
	{"GIF", []byte("GIF89a"), true},
}

// rawMagic holds the signatures that can appear in valid UTF-8 text. The
// others only turn up in decoded payloads.
var rawMagic = textSignatures()

func textSignatures() []int {
	var idx []int
	for i, m := range magicBytes {
		if utf8.Valid(m.magic) {
			idx = append(idx, i)
		}
	}
	return idx
}

var (
	dataURIRe   = regexp.MustCompile(`(?i)data:([\w.+-]+/[\w.+-]+)?(?:;[\w=.-]+)*;base64,([A-Za-z0-9+/]{16,}={0,2})`)
	base64RunRe = regexp.MustCompile(`[A-Za-z0-9+/]{200,}={0,2}`)
)

// Executable MIME types that never belong in a markdown document
var executableMIME = map[string]bool{
	"application/x-msdownload":                      true,
	"application/x-executable":                      true,
	"application/x-elf":                             true,
	"application/x-mach-binary":                     true,
	"application/x-sh":                              true,
	"application/vnd.microsoft.portable-executable": true,
	"application/java-archive":                      true,
}

// NewDetector creates a new polyglot detector
func NewDetector() *Detector {
	return &Detector{
		BaseDetector: detectors.NewBaseDetector("polyglot", 30, detectors.CategoryPolyglot),
	}
}

// Detect scans for embedded binaries
func (d *Detector) Detect(ctx context.Context, content string, opts models.Options) ([]*models.Threat, error) {
	var threats []*models.Threat
	raw := []byte(content)

	// Raw magic headers
	for _, i := range rawMagic {
		m := magicBytes[i]
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		offset := 0
		for {
			idx := bytes.Index(raw[offset:], m.magic)
			if idx < 0 {
				break
			}
			pos := offset + idx
			offset = pos + len(m.magic)
			if m.anchored && pos > 0 && raw[pos-1] != '\n' {
				continue
			}
			threats = append(threats, d.threat(content, pos, pos+len(m.magic), "embedded_binary",
				models.SeverityHigh, 8, 0.9,
				"Binary "+m.name+" header embedded in text content",
				map[string]any{"format": m.name}))
		}
	}

	// Data URIs carrying binaries
	for _, loc := range dataURIRe.FindAllStringSubmatchIndex(content, -1) {
		mime := ""
		if loc[2] >= 0 {
			mime = strings.ToLower(content[loc[2]:loc[3]])
		}
		payload := content[loc[4]:loc[5]]
		format := sniff(payload)

		switch {
		case executableMIME[mime] || isExecutableFormat(format):
			threats = append(threats, d.threat(content, loc[0], loc[1], "executable_data_uri",
				models.SeverityHigh, 8, 0.9,
				"Data URI decodes to an executable payload",
				map[string]any{"mime": mime, "format": format}))
		case format != "" && mime != "" && !strings.HasPrefix(mime, "image/") && mime != "application/pdf":
			threats = append(threats, d.threat(content, loc[0], loc[1], "mismatched_data_uri",
				models.SeverityMedium, 6, 0.75,
				"Data URI content type does not match its payload",
				map[string]any{"mime": mime, "format": format}))
		}
	}

	// Long encoded blobs outside data URIs
	dataSpans := dataURIRe.FindAllStringIndex(content, -1)
	for _, loc := range base64RunRe.FindAllStringIndex(content, -1) {
		if insideAny(loc, dataSpans) {
			continue
		}
		blob := content[loc[0]:loc[1]]
		entropy := CalculateEntropy(blob)
		if entropy < EntropyEncoded {
			continue
		}
		sev, score := models.SeverityMedium, 5
		format := sniff(blob)
		if isExecutableFormat(format) {
			sev, score = models.SeverityHigh, 8
		}
		threats = append(threats, d.threat(content, loc[0], loc[1], "encoded_payload",
			sev, score, 0.7,
			"Long high-entropy encoded blob",
			map[string]any{"entropy": entropy, "format": format, "length": len(blob)}))
	}

	return threats, nil
}

// sniff decodes the head of a base64 payload and names its magic header
func sniff(payload string) string {
	head := payload
	if len(head) > 64 {
		head = head[:64]
	}
	head = head[:len(head)/4*4]
	decoded, err := base64.StdEncoding.DecodeString(head)
	if err != nil {
		return ""
	}
	for _, m := range magicBytes {
		if bytes.HasPrefix(decoded, m.magic) {
			return m.name
		}
	}
	if bytes.HasPrefix(decoded, []byte("MZ")) {
		return "PE"
	}
	return ""
}

func isExecutableFormat(format string) bool {
	switch format {
	case "ELF", "PE", "MachO32", "MachO64", "MachOFat", "DEX":
		return true
	}
	return false
}

func insideAny(loc []int, spans [][]int) bool {
	for _, s := range spans {
		if loc[0] >= s[0] && loc[1] <= s[1] {
			return true
		}
	}
	return false
}

func (d *Detector) threat(content string, start, end int, category string, sev models.Severity, score int, confidence float64, desc string, extra map[string]any) *models.Threat {
	text := content[start:end]
	if len(text) > 120 {
		text = text[:120]
	}
	return &models.Threat{
		Type:          models.ThreatPolyglotFile,
		Severity:      sev,
		SeverityScore: score,
		Pattern:       category,
		Location: models.Location{
			Span: models.NewSpan(start, end),
			Line: patterns.LineNumber(content, start),
		},
		MatchedText:    models.MatchedText{Text: text},
		Description:    desc,
		Recommendation: "Remove embedded binary content; distribute artifacts separately and verify their checksums",
		Metadata: models.ThreatMetadata{
			AttackCategory: category,
			Confidence:     confidence,
			Mitigation:     "Reject documents that carry executable payloads",
			Extra:          extra,
		},
		Detector:   d.Name(),
		DetectedAt: time.Now(),
	}
}
