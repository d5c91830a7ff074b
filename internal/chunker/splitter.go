package chunker

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
)

var ErrInvalidConfiguration = errors.New("invalid chunker configuration")

// Chunk is one contiguous piece of a document.
type Chunk struct {
	Index   int    // Position in document (0, 1, 2...)
	Content string // Trimmed text, at most maxSize runes
	Offset  int    // Byte offset of Content in the source
	Section string // Heading path in effect at Offset: "Title > Section"
}

// separators are tried coarsest first. Group 1 is the boundary text; a piece
// ends where group 1 ends so the boundary stays attached to the left piece.
var separators = []*regexp.Regexp{
	regexp.MustCompile(`(\n[ \t\r]*\n\s*)`), // blank line
	regexp.MustCompile(`(\r?\n)`),           // line break
	regexp.MustCompile(`[.!?。！？](\s+)`),     // sentence end
	regexp.MustCompile(`(\s+)`),             // whitespace
}

// Splitter cuts text into size-bounded chunks at the coarsest boundary that fits.
type Splitter struct {
	md goldmark.Markdown
}

// NewSplitter creates a splitter whose outline parser generates heading IDs.
func NewSplitter() *Splitter {
	return &Splitter{
		md: goldmark.New(
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
		),
	}
}

type span struct {
	start, end int
	runes      int
}

// Split returns the ordered chunks of text, each at most maxSize runes.
// Whitespace-only input yields no chunks.
func (s *Splitter) Split(text string, maxSize int) ([]Chunk, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: max chunk size must be positive, got %d", ErrInvalidConfiguration, maxSize)
	}
	if strings.TrimSpace(text) == "" {
		return []Chunk{}, nil
	}

	headings, err := s.Outline(text)
	if err != nil {
		return nil, fmt.Errorf("outline: %w", err)
	}

	spans := splitSpan(text, span{start: 0, end: len(text), runes: utf8.RuneCountInString(text)}, maxSize, 0)

	chunks := make([]Chunk, 0, len(spans))
	for _, sp := range spans {
		piece := text[sp.start:sp.end]
		trimmed := strings.TrimSpace(piece)
		if trimmed == "" {
			continue
		}
		offset := sp.start + len(piece) - len(strings.TrimLeftFunc(piece, unicode.IsSpace))
		chunks = append(chunks, Chunk{
			Index:   len(chunks),
			Content: trimmed,
			Offset:  offset,
			Section: sectionAt(headings, offset),
		})
	}
	return chunks, nil
}

func splitSpan(text string, sp span, maxSize, level int) []span {
	if sp.runes <= maxSize {
		return []span{sp}
	}
	if level >= len(separators) {
		return cutRunes(text, sp, maxSize)
	}

	pieces := cutAt(text, sp, separators[level])
	if len(pieces) == 1 {
		return splitSpan(text, sp, maxSize, level+1)
	}

	var out []span
	for _, p := range pieces {
		out = append(out, splitSpan(text, p, maxSize, level+1)...)
	}
	return merge(out, maxSize)
}

// cutAt splits sp after every boundary matched by re.
func cutAt(text string, sp span, re *regexp.Regexp) []span {
	segment := text[sp.start:sp.end]
	var pieces []span
	prev := 0
	for _, m := range re.FindAllStringSubmatchIndex(segment, -1) {
		cut := m[3]
		if cut <= prev || cut >= len(segment) {
			continue
		}
		pieces = append(pieces, newSpan(text, sp.start+prev, sp.start+cut))
		prev = cut
	}
	pieces = append(pieces, newSpan(text, sp.start+prev, sp.end))
	return pieces
}

func cutRunes(text string, sp span, maxSize int) []span {
	var out []span
	start, n := sp.start, 0
	for i := range text[sp.start:sp.end] {
		if n == maxSize {
			out = append(out, span{start: start, end: sp.start + i, runes: n})
			start, n = sp.start+i, 0
		}
		n++
	}
	return append(out, span{start: start, end: sp.end, runes: n})
}

// merge joins neighbouring spans greedily while the result still fits.
func merge(spans []span, maxSize int) []span {
	if len(spans) == 0 {
		return spans
	}
	out := make([]span, 0, len(spans))
	cur := spans[0]
	for _, next := range spans[1:] {
		if cur.end == next.start && cur.runes+next.runes <= maxSize {
			cur.end = next.end
			cur.runes += next.runes
			continue
		}
		out = append(out, cur)
		cur = next
	}
	return append(out, cur)
}

func newSpan(text string, start, end int) span {
	return span{start: start, end: end, runes: utf8.RuneCountInString(text[start:end])}
}
