// Package chunking splits document text into bounded, semantically coherent
// segments for embedding.
package chunking

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"

	"github.com/vcia/knowledge-sync/internal/domain"
)

const (
	// DefaultMaxSize is the maximum chunk size in bytes.
	DefaultMaxSize = 2000

	// DefaultOverlapPercent is the share of MaxSize duplicated at window
	// boundaries to preserve context continuity.
	DefaultOverlapPercent = 10
)

// Config controls how documents are split.
type Config struct {
	// MaxSize is the maximum chunk size in bytes. Structural units larger
	// than this fall back to fixed-size windows.
	MaxSize int

	// MinSize is the minimum chunk size; smaller chunks are merged with a
	// neighbor. Defaults to MaxSize/10.
	MinSize int

	// OverlapPercent is the percentage of MaxSize duplicated at window
	// boundaries when a unit is split.
	OverlapPercent int

	// PreserveStructure splits at markdown H1/H2 boundaries before falling
	// back to paragraph packing.
	PreserveStructure bool
}

func (c Config) withDefaults() Config {
	if c.MaxSize <= 0 {
		c.MaxSize = DefaultMaxSize
	}
	if c.MinSize <= 0 {
		c.MinSize = c.MaxSize / 10
	}
	if c.OverlapPercent < 0 {
		c.OverlapPercent = 0
	}
	if c.OverlapPercent == 0 {
		c.OverlapPercent = DefaultOverlapPercent
	}
	return c
}

// span is a half-open byte range into the source text.
type span struct {
	start, end int
}

func (s span) size() int { return s.end - s.start }

// Chunker splits documents at structural boundaries while enforcing size
// bounds and boundary overlap.
type Chunker struct {
	parser goldmark.Markdown
}

// NewChunker creates a chunker configured with a goldmark parser.
func NewChunker() *Chunker {
	md := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
	return &Chunker{parser: md}
}

// Chunk splits text into an ordered, finite sequence of chunks. Indices are
// contiguous from 0 and every byte of the source is covered by at least one
// chunk. Empty input yields an empty sequence, not an error.
func (c *Chunker) Chunk(source string, cfg Config) ([]domain.Chunk, error) {
	if strings.TrimSpace(source) == "" {
		return nil, nil
	}
	cfg = cfg.withDefaults()

	var units []span
	if cfg.PreserveStructure {
		sections, err := c.headingSections(source)
		if err != nil {
			return nil, err
		}
		units = sections
	}
	if len(units) == 0 {
		units = packParagraphs(source, cfg.MaxSize)
	}

	var spans []span
	for _, u := range units {
		if u.size() <= cfg.MaxSize {
			spans = append(spans, u)
			continue
		}
		spans = append(spans, window(source, u, cfg)...)
	}

	spans = mergeUndersized(spans, cfg.MinSize)

	chunks := make([]domain.Chunk, len(spans))
	for i, s := range spans {
		chunks[i] = domain.Chunk{
			Index:       i,
			Text:        source[s.start:s.end],
			StartOffset: s.start,
			Size:        s.size(),
		}
	}
	return chunks, nil
}

// headingSections parses the source as markdown and returns one span per
// H1/H2 section. The leading preamble before the first heading, if any, is
// its own span. Returns nil when the document has no headings.
func (c *Chunker) headingSections(source string) ([]span, error) {
	src := []byte(source)
	reader := text.NewReader(src)
	doc := c.parser.Parser().Parse(reader)

	tree, err := toc.Inspect(doc, src,
		toc.MinDepth(1),
		toc.MaxDepth(2),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect toc: %w", err)
	}
	if len(tree.Items) == 0 {
		return nil, nil
	}

	var starts []int
	collectHeadingStarts(doc, src, tree.Items, &starts)
	if len(starts) == 0 {
		return nil, nil
	}
	sort.Ints(starts)

	var sections []span
	if starts[0] > 0 {
		sections = append(sections, span{0, starts[0]})
	}
	for i, start := range starts {
		end := len(source)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		sections = append(sections, span{start, end})
	}
	return sections, nil
}

// collectHeadingStarts resolves each TOC item to its heading node and records
// the byte offset of the start of the heading line (including the marker).
func collectHeadingStarts(doc ast.Node, source []byte, items toc.Items, starts *[]int) {
	for _, item := range items {
		if node := findHeadingByID(doc, string(item.ID)); node != nil {
			seg := node.Lines().At(0)
			*starts = append(*starts, lineStart(source, seg.Start))
		}
		if len(item.Items) > 0 {
			collectHeadingStarts(doc, source, item.Items, starts)
		}
	}
}

// findHeadingByID locates a heading node by its auto-generated ID.
func findHeadingByID(node ast.Node, id string) ast.Node {
	var found ast.Node
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Kind() == ast.KindHeading {
			headingID, ok := n.AttributeString("id")
			if ok && string(headingID.([]byte)) == id {
				found = n
				return ast.WalkStop, nil
			}
		}
		return ast.WalkContinue, nil
	})
	return found
}

// lineStart walks back from pos to the beginning of its line. Heading
// segments start after the "#" marker; chunks must include it.
func lineStart(source []byte, pos int) int {
	for pos > 0 && source[pos-1] != '\n' {
		pos--
	}
	return pos
}

// packParagraphs splits the source at blank lines and greedily packs adjacent
// paragraphs into spans of at most maxSize bytes. Oversized single paragraphs
// pass through and are windowed by the caller.
func packParagraphs(source string, maxSize int) []span {
	var paras []span
	start := 0
	for start < len(source) {
		idx := strings.Index(source[start:], "\n\n")
		if idx < 0 {
			paras = append(paras, span{start, len(source)})
			break
		}
		end := start + idx + 2
		// Absorb any further blank lines into the same paragraph span.
		for end < len(source) && source[end] == '\n' {
			end++
		}
		paras = append(paras, span{start, end})
		start = end
	}

	var packed []span
	for _, p := range paras {
		if n := len(packed); n > 0 && packed[n-1].size()+p.size() <= maxSize {
			packed[n-1].end = p.end
			continue
		}
		packed = append(packed, p)
	}
	return packed
}

// window splits an oversized unit into fixed-size windows with overlap.
// Window boundaries are adjusted backwards to rune starts so multi-byte
// characters are never split.
func window(source string, u span, cfg Config) []span {
	overlap := cfg.MaxSize * cfg.OverlapPercent / 100
	step := cfg.MaxSize - overlap
	if step <= 0 {
		step = cfg.MaxSize
	}

	var out []span
	pos := u.start
	for pos < u.end {
		end := pos + cfg.MaxSize
		if end >= u.end {
			out = append(out, span{pos, u.end})
			break
		}
		for end > pos && !utf8.RuneStart(source[end]) {
			end--
		}
		out = append(out, span{pos, end})

		next := pos + step
		for next < u.end && !utf8.RuneStart(source[next]) {
			next--
		}
		if next <= pos {
			next = end
		}
		pos = next
	}
	return out
}

// mergeUndersized folds spans smaller than minSize into a neighbor: the
// previous span when one exists, otherwise the next. Spans are contiguous or
// overlapping in source order, so merging extends the covered range.
func mergeUndersized(spans []span, minSize int) []span {
	if len(spans) <= 1 {
		return spans
	}
	var out []span
	for _, s := range spans {
		if s.size() >= minSize || len(out) == 0 {
			out = append(out, s)
			continue
		}
		if s.end > out[len(out)-1].end {
			out[len(out)-1].end = s.end
		}
	}
	// A leading undersized span merges into its successor.
	if len(out) > 1 && out[0].size() < minSize {
		out[1].start = out[0].start
		out = out[1:]
	}
	return out
}
