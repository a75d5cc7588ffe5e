package reader

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownFormat implements Extractor for Markdown files.
type MarkdownFormat struct{}

func init() {
	Register(&MarkdownFormat{})
}

func (f *MarkdownFormat) Format() Format       { return FormatMarkdown }
func (f *MarkdownFormat) Name() string         { return "Markdown" }
func (f *MarkdownFormat) Extensions() []string { return []string{".md", ".markdown"} }

// Extract renders the document as plain text: markup is dropped and every block
// (heading, paragraph, list item, code block) becomes its own paragraph.
func (f *MarkdownFormat) Extract(data []byte) (string, error) {
	return strings.Join(markdownParagraphs(data), "\n\n"), nil
}

// Outline lists the ATX and setext headings of the document.
func (f *MarkdownFormat) Outline(data []byte) ([]Heading, error) {
	doc := goldmark.New().Parser().Parse(text.NewReader(data))

	var out []Heading
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		h, ok := n.(*ast.Heading)
		if !ok || !entering {
			return ast.WalkContinue, nil
		}
		if t := inlineText(h, data); t != "" {
			out = append(out, Heading{Title: t, Level: h.Level - 1})
		}
		return ast.WalkSkipChildren, nil
	})
	return out, nil
}

func markdownParagraphs(src []byte) []string {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var out []string
	var visit func(ast.Node)
	visit = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch b := c.(type) {
			case *ast.List, *ast.ListItem, *ast.Blockquote:
				visit(b)
			case *ast.FencedCodeBlock, *ast.CodeBlock:
				if t := blockLines(b, src); t != "" {
					out = append(out, t)
				}
			case *ast.HTMLBlock, *ast.ThematicBreak:
			default:
				if t := inlineText(b, src); t != "" {
					out = append(out, t)
				}
			}
		}
	}
	visit(doc)
	return out
}

func inlineText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := node.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			switch {
			case t.HardLineBreak():
				sb.WriteString("\n")
			case t.SoftLineBreak():
				sb.WriteString(" ")
			}
		case *ast.String:
			sb.Write(t.Value)
		case *ast.AutoLink:
			sb.Write(t.Label(src))
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

func blockLines(n ast.Node, src []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(src))
	}
	return strings.TrimSpace(sb.String())
}
