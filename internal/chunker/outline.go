package chunker

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// Heading is an H1 or H2 with its full path and the byte offset of its line.
type Heading struct {
	Path   string
	Offset int
}

// Outline returns H1 and H2 headings in document order.
func (s *Splitter) Outline(source string) ([]Heading, error) {
	src := []byte(source)
	doc := s.md.Parser().Parse(text.NewReader(src))

	tree, err := toc.Inspect(doc, src,
		toc.MinDepth(1),
		toc.MaxDepth(2),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}

	var headings []Heading
	collectHeadings(doc, source, tree.Items, nil, &headings)
	return headings, nil
}

func collectHeadings(doc ast.Node, source string, items toc.Items, ancestors []string, out *[]Heading) {
	for _, item := range items {
		path := append(append([]string(nil), ancestors...), string(item.Title))

		if node := findHeaderByID(doc, string(item.ID)); node != nil && node.Lines().Len() > 0 {
			*out = append(*out, Heading{
				Path:   strings.Join(path, " > "),
				Offset: lineStart(source, node.Lines().At(0).Start),
			})
		}

		if len(item.Items) > 0 {
			collectHeadings(doc, source, item.Items, path, out)
		}
	}
}

// findHeaderByID locates a heading node by its auto-generated ID.
func findHeaderByID(node ast.Node, id string) ast.Node {
	var found ast.Node
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Kind() == ast.KindHeading {
			headingID, ok := n.AttributeString("id")
			if ok {
				if b, isBytes := headingID.([]byte); isBytes && string(b) == id {
					found = n
					return ast.WalkStop, nil
				}
			}
		}
		return ast.WalkContinue, nil
	})
	return found
}

// lineStart moves a segment offset back over the "## " marker.
func lineStart(source string, offset int) int {
	if offset > len(source) {
		offset = len(source)
	}
	return strings.LastIndexByte(source[:offset], '\n') + 1
}

// sectionAt returns the path of the last heading at or before offset.
func sectionAt(headings []Heading, offset int) string {
	section := ""
	for _, h := range headings {
		if h.Offset > offset {
			break
		}
		section = h.Path
	}
	return section
}
