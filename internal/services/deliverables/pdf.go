package deliverables

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// frontmatter is the optional YAML header a proposal document may carry.
// It is metadata for the renderer, never part of the PDF body.
type frontmatter struct {
	Title   string `yaml:"title"`
	Subject string `yaml:"subject"`
}

// PDFRenderer turns proposal markdown into an A4 PDF. The output is
// validated before it is handed to anyone.
type PDFRenderer struct {
	logger arbor.ILogger
}

// NewPDFRenderer creates a markdown-to-PDF renderer
func NewPDFRenderer(logger arbor.ILogger) *PDFRenderer {
	return &PDFRenderer{logger: logger}
}

// Render converts proposal markdown to PDF bytes. A YAML frontmatter
// block supplies document metadata and is stripped from the body.
func (r *PDFRenderer) Render(markdown, fallbackTitle string) ([]byte, error) {
	meta, body := splitFrontmatter(markdown)
	title := meta.Title
	if title == "" {
		title = fallbackTitle
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.SetTitle(title, true)
	if meta.Subject != "" {
		pdf.SetSubject(meta.Subject, true)
	}
	pdf.AddPage()
	pdf.SetFont("Arial", "", 10)

	md := goldmark.New(
		goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
	source := []byte(body)
	doc := md.Parser().Parse(text.NewReader(source))

	walker := &markdownWalker{
		pdf:    pdf,
		source: source,
		font:   "Arial",
		size:   10,
	}
	if err := ast.Walk(doc, walker.walk); err != nil {
		return nil, fmt.Errorf("failed to render proposal PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write proposal PDF: %w", err)
	}

	if err := api.Validate(bytes.NewReader(buf.Bytes()), model.NewDefaultConfiguration()); err != nil {
		return nil, fmt.Errorf("generated PDF failed validation: %w", err)
	}

	r.logger.Debug().
		Int("markdown_len", len(body)).
		Int("pdf_bytes", buf.Len()).
		Msg("Rendered proposal PDF")

	return buf.Bytes(), nil
}

// splitFrontmatter separates an optional leading YAML block from the
// markdown body. Malformed frontmatter is treated as body text.
func splitFrontmatter(markdown string) (frontmatter, string) {
	var meta frontmatter
	if !strings.HasPrefix(markdown, "---\n") {
		return meta, markdown
	}
	end := strings.Index(markdown[4:], "\n---\n")
	if end < 0 {
		return meta, markdown
	}
	block := markdown[4 : 4+end]
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return frontmatter{}, markdown
	}
	return meta, strings.TrimSpace(markdown[4+end+5:])
}

// markdownWalker renders the goldmark AST into the fpdf document.
// Proposals are prose with headings, emphasis and lists; tables and
// images are out of scope for this document class.
type markdownWalker struct {
	pdf       *fpdf.Fpdf
	source    []byte
	font      string
	size      float64
	bold      bool
	italic    bool
	listLevel int
}

func (w *markdownWalker) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		w.heading(node, entering)
	case *ast.Paragraph:
		if !entering {
			w.pdf.Ln(7)
		}
	case *ast.Text:
		if entering {
			w.pdf.Write(5, string(node.Text(w.source)))
			if node.SoftLineBreak() || node.HardLineBreak() {
				w.pdf.Ln(5)
			}
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			w.bold = entering
		} else {
			w.italic = entering
		}
		w.applyFont()
	case *ast.CodeSpan:
		return w.codeSpan(node, entering)
	case *ast.FencedCodeBlock:
		if entering {
			w.codeBlock(node.Lines())
			return ast.WalkSkipChildren, nil
		}
	case *ast.List:
		if entering {
			w.listLevel++
		} else {
			w.listLevel--
			if w.listLevel == 0 {
				w.pdf.Ln(2)
			}
		}
	case *ast.ListItem:
		if entering {
			w.pdf.Ln(5)
			w.pdf.SetX(12 + float64(w.listLevel)*5)
			w.pdf.Write(5, "- ")
		}
	case *ast.ThematicBreak:
		if entering {
			w.pdf.Ln(3)
			w.pdf.Line(12, w.pdf.GetY(), 198, w.pdf.GetY())
			w.pdf.Ln(3)
		}
	}
	return ast.WalkContinue, nil
}

func (w *markdownWalker) heading(n *ast.Heading, entering bool) {
	if entering {
		w.pdf.Ln(5)
		size := 15.0 - float64(n.Level)
		if size < 10 {
			size = 10
		}
		w.pdf.SetFont(w.font, "B", size)
		return
	}
	w.pdf.Ln(6)
	w.applyFont()
}

func (w *markdownWalker) codeSpan(n *ast.CodeSpan, entering bool) (ast.WalkStatus, error) {
	if !entering {
		w.applyFont()
		return ast.WalkContinue, nil
	}
	w.pdf.SetFont("Courier", "", w.size)
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if textNode, ok := c.(*ast.Text); ok {
			w.pdf.Write(5, string(textNode.Segment.Value(w.source)))
		}
	}
	return ast.WalkSkipChildren, nil
}

func (w *markdownWalker) codeBlock(lines *text.Segments) {
	w.pdf.Ln(2)
	w.pdf.SetFont("Courier", "", 9)
	w.pdf.SetFillColor(245, 245, 245)
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		w.pdf.MultiCell(0, 5, string(segment.Value(w.source)), "", "L", true)
	}
	w.pdf.SetFillColor(255, 255, 255)
	w.applyFont()
	w.pdf.Ln(2)
}

func (w *markdownWalker) applyFont() {
	style := ""
	if w.bold {
		style += "B"
	}
	if w.italic {
		style += "I"
	}
	w.pdf.SetFont(w.font, style, w.size)
}
