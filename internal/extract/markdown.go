package extract

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
)

var (
	versionCommentRe = regexp.MustCompile(`<!--\s*(?:aclarai:)?id=\S+\s+ver=\d+\s*-->`)
	anchorRe         = regexp.MustCompile(`(?m)(^|[ \t])\^[A-Za-z0-9_\-]+[ \t]*$`)
)

// StripMarkers removes block version comments and ^anchors
func StripMarkers(markdown string) string {
	s := versionCommentRe.ReplaceAllString(markdown, "")
	return anchorRe.ReplaceAllString(s, "")
}

// Paragraphs reduces Markdown to plain-text paragraphs, one per prose block.
// Code blocks are dropped, HTML blocks keep only their text.
func Paragraphs(markdown string) []string {
	src := []byte(StripMarkers(markdown))
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var out []string
	var visit func(n ast.Node)
	visit = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch c.Kind() {
			case ast.KindFencedCodeBlock, ast.KindCodeBlock, ast.KindThematicBreak:
				continue
			case ast.KindList, ast.KindListItem, ast.KindBlockquote:
				visit(c)
				continue
			case ast.KindHTMLBlock:
				if t := htmlBlockText(c.(*ast.HTMLBlock), src); t != "" {
					out = append(out, t)
				}
				continue
			}
			if t := inlineText(c, src); t != "" {
				out = append(out, t)
			}
		}
	}
	visit(doc)
	return out
}

// PlainText joins Paragraphs with blank lines
func PlainText(markdown string) string {
	return strings.Join(Paragraphs(markdown), "\n\n")
}

func inlineText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			sb.Write(v.Segment.Value(src))
			if v.SoftLineBreak() || v.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(v.Value)
		case *ast.AutoLink:
			sb.Write(v.Label(src))
		}
		return ast.WalkContinue, nil
	})
	return collapse(sb.String())
}

func htmlBlockText(n *ast.HTMLBlock, src []byte) string {
	var raw strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		raw.Write(seg.Value(src))
	}
	if n.HasClosure() {
		raw.Write(n.ClosureLine.Value(src))
	}
	return HTMLText(raw.String())
}

// HTMLText returns the visible text of an HTML fragment
func HTMLText(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var sb strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapse(sb.String())
		case html.StartTagToken:
			if name, _ := z.TagName(); isInvisibleTag(string(name)) {
				skip++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isInvisibleTag(string(name)) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
				sb.WriteByte(' ')
			}
		}
	}
}

func isInvisibleTag(name string) bool {
	switch name {
	case "script", "style", "noscript", "iframe":
		return true
	}
	return false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
