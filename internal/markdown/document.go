package markdown

import (
	"bytes"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// WordsPerMinute is the reading speed used for ReadingTimeMinutes
const WordsPerMinute = 200

// Document is the structural summary of a markdown text
type Document struct {
	WordCount          int            `json:"word_count"`
	ReadingTimeMinutes int            `json:"reading_time_minutes"`
	Headings           []Heading      `json:"headings"`
	Links              []Link         `json:"links"`
	Backlinks          []string       `json:"backlinks"`
	CodeBlocks         []CodeBlock    `json:"code_blocks"`
	Tasks              []Task         `json:"tasks"`
	FrontMatter        map[string]any `json:"frontmatter"`
}

// Heading is an ATX or setext heading
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
	Line  int    `json:"line"`
}

// Link is an inline, reference or autolink, or an image. URL is the
// resolved destination.
type Link struct {
	Text  string `json:"text"`
	URL   string `json:"url"`
	Image bool   `json:"image,omitempty"`
	Line  int    `json:"line"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// CodeBlock is a fenced or indented code block. Start and End are byte
// offsets of the whole block including fences. Indented blocks have no
// language.
type CodeBlock struct {
	Language  string `json:"language"`
	Content   string `json:"content"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
}

// Task is a list item checkbox
type Task struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
	Line int    `json:"line"`
}

var (
	wikiLinkRe = regexp.MustCompile(`\[\[([^\]\n|]+)(?:\|[^\]\n]*)?\]\]`)
	fenceRe    = regexp.MustCompile("(?m)^[ \t>]*(`{3,}|~{3,})")
)

var md = goldmark.New(goldmark.WithExtensions(
	extension.Table,
	extension.Strikethrough,
	extension.TaskList,
))

// Analyze parses content into a Document. Structure inside code blocks is
// not reported as headings, links or tasks.
func Analyze(content string) *Document {
	doc := &Document{
		Headings:   []Heading{},
		Links:      []Link{},
		Backlinks:  []string{},
		CodeBlocks: []CodeBlock{},
		Tasks:      []Task{},
	}

	doc.WordCount = len(strings.Fields(content))
	doc.ReadingTimeMinutes = int(math.Ceil(float64(doc.WordCount) / WordsPerMinute))

	body, base := content, 0
	if fm, rest, consumed, ok := splitFrontMatter(content); ok {
		doc.FrontMatter = fm
		body = rest
		base = consumed
	}

	w := &walker{
		doc:     doc,
		content: content,
		src:     []byte(body),
		base:    base,
		starts:  lineStarts(content),
		cursor:  base,
	}
	root := md.Parser().Parse(text.NewReader(w.src))
	_ = ast.Walk(root, w.visit)

	return doc
}

// walker turns a goldmark AST into a Document. Segment offsets are
// relative to src; base shifts them into content.
type walker struct {
	doc     *Document
	content string
	src     []byte
	base    int
	starts  []int
	// cursor is the content offset reached so far, used to place nodes
	// that carry no segment of their own
	cursor int
}

func (w *walker) visit(n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		w.cursor = w.base + n.Lines().At(0).Start
	}

	switch n := n.(type) {
	case *ast.Heading:
		w.doc.Headings = append(w.doc.Headings, Heading{
			Level: n.Level,
			Text:  strings.TrimSpace(w.plainText(n)),
			Line:  w.line(w.cursor),
		})
		w.backlinks(n)
	case *ast.Paragraph, *ast.TextBlock:
		w.backlinks(n)
	case *ast.FencedCodeBlock:
		w.fenced(n)
		return ast.WalkSkipChildren, nil
	case *ast.CodeBlock:
		w.indented(n)
		return ast.WalkSkipChildren, nil
	case *ast.Text:
		w.cursor = max(w.cursor, w.base+n.Segment.Stop)
	case *ast.Link:
		w.link(n, string(n.Destination), false)
	case *ast.Image:
		w.link(n, string(n.Destination), true)
	case *ast.AutoLink:
		w.autoLink(n)
	case *extast.TaskCheckBox:
		w.task(n)
	}
	return ast.WalkContinue, nil
}

func (w *walker) fenced(n *ast.FencedCodeBlock) {
	lines := n.Lines()
	var open int
	switch {
	case lines.Len() > 0:
		l := w.line(w.base + lines.At(0).Start)
		open = w.starts[max(l-2, 0)]
	case n.Info != nil:
		open = w.lineStart(w.base + n.Info.Segment.Start)
	default:
		// Empty block without an info string
		open = w.cursor
		if loc := fenceRe.FindStringIndex(w.content[w.cursor:]); loc != nil {
			open = w.cursor + loc[0]
		}
	}

	last := w.lineEnd(open)
	if lines.Len() > 0 {
		last = w.base + lines.At(lines.Len()-1).Stop
	}
	end := last
	if w.closesFence(open, last) {
		end = w.lineEnd(last)
	}

	lang := ""
	if l := n.Language(w.src); l != nil {
		lang = strings.ToLower(string(l))
	}
	w.addCode(lang, w.linesValue(lines), open, end)
}

func (w *walker) indented(n *ast.CodeBlock) {
	lines := n.Lines()
	if lines.Len() == 0 {
		return
	}
	start := w.lineStart(w.base + lines.At(0).Start)
	end := w.base + lines.At(lines.Len()-1).Stop
	w.addCode("", w.linesValue(lines), start, end)
}

func (w *walker) addCode(lang, body string, start, end int) {
	endLine := w.line(start)
	if end > start {
		endLine = w.line(end - 1)
	}
	w.doc.CodeBlocks = append(w.doc.CodeBlocks, CodeBlock{
		Language:  lang,
		Content:   body,
		StartLine: w.line(start),
		EndLine:   endLine,
		Start:     start,
		End:       end,
	})
	w.cursor = end
}

// closesFence reports whether the line at pos closes the fence opened on
// the line at open
func (w *walker) closesFence(open, pos int) bool {
	if pos >= len(w.content) {
		return false
	}
	opener := strings.TrimLeft(w.content[open:w.lineEnd(open)], " \t>")
	if opener == "" {
		return false
	}
	marker := opener[:len(opener)-len(strings.TrimLeft(opener, opener[:1]))]
	closer := strings.TrimSpace(strings.TrimLeft(w.content[pos:w.lineEnd(pos)], " \t>"))
	return len(marker) > 0 && strings.HasPrefix(closer, marker) && strings.Trim(closer, marker[:1]) == ""
}

func (w *walker) link(n ast.Node, dest string, image bool) {
	start, end := w.linkSpan(n, image)
	w.doc.Links = append(w.doc.Links, Link{
		Text:  strings.TrimSpace(w.plainText(n)),
		URL:   dest,
		Image: image,
		Line:  w.line(start),
		Start: start,
		End:   end,
	})
	w.cursor = max(w.cursor, end)
}

func (w *walker) autoLink(n *ast.AutoLink) {
	label := string(n.Label(w.src))
	start := w.cursor
	if i := strings.Index(w.content[w.cursor:], "<"+label+">"); i >= 0 {
		start = w.cursor + i
	}
	end := min(start+len(label)+2, len(w.content))
	w.doc.Links = append(w.doc.Links, Link{
		Text:  label,
		URL:   string(n.URL(w.src)),
		Line:  w.line(start),
		Start: start,
		End:   end,
	})
	w.cursor = end
}

// linkSpan locates "[text](dest)", "[text][ref]" or "[ref]" in content.
// Inline nodes carry no offsets, so the span is rebuilt from the text
// segments under the link, stepping out through any nested images.
func (w *walker) linkSpan(n ast.Node, image bool) (int, int) {
	var first, last *ast.Text
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := c.(*ast.Text); ok && entering {
			if first == nil {
				first = t
			}
			last = t
		}
		return ast.WalkContinue, nil
	})

	if first == nil {
		// Empty link text
		i := strings.Index(w.content[w.cursor:], "[]")
		if i < 0 {
			return w.cursor, w.cursor
		}
		start := w.cursor + i
		end := w.afterLabel(start + 1)
		if image && start > 0 && w.content[start-1] == '!' {
			start--
		}
		return start, end
	}

	lo, hi := w.base+first.Segment.Start, w.base+last.Segment.Stop
	start := lo
	for i := nesting(first, n); i >= 0; i-- {
		start = strings.LastIndexByte(w.content[:start], '[')
		if start < 0 {
			return lo, hi
		}
		if i > 0 && start > 0 && w.content[start-1] == '!' {
			start--
		}
	}
	if image && start > 0 && w.content[start-1] == '!' {
		start--
	}

	end := hi
	for i := nesting(last, n); i >= 0; i-- {
		rb := strings.IndexByte(w.content[end:], ']')
		if rb < 0 {
			return start, hi
		}
		end = w.afterLabel(end + rb)
	}
	return start, end
}

// nesting counts the links and images between c and the enclosing link n
func nesting(c, n ast.Node) int {
	depth := 0
	for p := c.Parent(); p != nil && p != n; p = p.Parent() {
		switch p.(type) {
		case *ast.Link, *ast.Image:
			depth++
		}
	}
	return depth
}

// afterLabel returns the end of the destination or reference that follows
// the closing bracket at pos
func (w *walker) afterLabel(pos int) int {
	s := w.content
	end := pos + 1
	if end >= len(s) {
		return end
	}
	switch s[end] {
	case '(':
		depth, quote := 0, byte(0)
		for i := end; i < len(s); i++ {
			c := s[i]
			switch {
			case c == '\\':
				i++
			case quote != 0:
				if c == quote {
					quote = 0
				}
			case c == '"':
				quote = c
			case c == '(':
				depth++
			case c == ')':
				depth--
				if depth == 0 {
					return i + 1
				}
			case c == '\n' && i+1 < len(s) && s[i+1] == '\n':
				return end
			}
		}
	case '[':
		if i := strings.IndexByte(s[end:], ']'); i >= 0 {
			return end + i + 1
		}
	}
	return end
}

func (w *walker) task(n *extast.TaskCheckBox) {
	parent := n.Parent()
	line := w.cursor
	if parent != nil && parent.Lines().Len() > 0 {
		line = w.base + parent.Lines().At(0).Start
	}
	w.doc.Tasks = append(w.doc.Tasks, Task{
		Text: strings.TrimSpace(w.plainText(parent)),
		Done: n.IsChecked,
		Line: w.line(line),
	})
}

// backlinks collects [[wiki]] targets from the raw lines of a text block
func (w *walker) backlinks(n ast.Node) {
	raw := w.linesValue(n.Lines())
	for _, m := range wikiLinkRe.FindAllStringSubmatch(raw, -1) {
		w.doc.Backlinks = append(w.doc.Backlinks, strings.TrimSpace(m[1]))
	}
}

// plainText concatenates the text under n
func (w *walker) plainText(n ast.Node) string {
	if n == nil {
		return ""
	}
	var b bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch c := c.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(w.src))
			if c.SoftLineBreak() || c.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(c.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

func (w *walker) linesValue(lines *text.Segments) string {
	var b strings.Builder
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(w.src))
	}
	return b.String()
}

// line returns the 1-based line containing content offset pos
func (w *walker) line(pos int) int {
	return sort.Search(len(w.starts), func(i int) bool { return w.starts[i] > pos })
}

func (w *walker) lineStart(pos int) int {
	return w.starts[max(w.line(pos)-1, 0)]
}

// lineEnd returns the offset just past the newline ending the line at pos
func (w *walker) lineEnd(pos int) int {
	if l := w.line(pos); l < len(w.starts) {
		return w.starts[l]
	}
	return len(w.content)
}

func lineStarts(s string) []int {
	starts := []int{0}
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// splitFrontMatter extracts a leading YAML block delimited by --- lines
func splitFrontMatter(content string) (map[string]any, string, int, bool) {
	if !strings.HasPrefix(content, "---\n") && !strings.HasPrefix(content, "---\r\n") {
		return nil, content, 0, false
	}
	start := strings.Index(content, "\n") + 1
	rest := content[start:]

	end := -1
	var closeLen int
	for i := 0; i < len(rest); {
		nl := strings.IndexByte(rest[i:], '\n')
		line := rest[i:]
		if nl >= 0 {
			line = rest[i : i+nl+1]
		}
		if t := strings.TrimRight(line, "\r\n"); t == "---" || t == "..." {
			end = i
			closeLen = len(line)
			break
		}
		if nl < 0 {
			break
		}
		i += nl + 1
	}
	if end < 0 {
		return nil, content, 0, false
	}

	var fm map[string]any
	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return nil, content, 0, false
	}
	if fm == nil {
		fm = map[string]any{}
	}
	consumed := start + end + closeLen
	return fm, content[consumed:], consumed, true
}
