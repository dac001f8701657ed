package cliui

import (
	"fmt"
	"io"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/papercomputeco/algoqa/pkg/answer"
)

// AnswerPrinter streams a decoded answer to a terminal. Text fragments are
// written as they arrive unless markdown rendering is enabled, in which case
// the full answer is rendered once the stream completes.
type AnswerPrinter struct {
	w        io.Writer
	diag     io.Writer
	styled   bool
	markdown bool
	width    int

	text strings.Builder
	refs []answer.Reference
	err  error
}

var _ answer.DiagnosticConsumer = (*AnswerPrinter)(nil)

// PrinterOption configures an AnswerPrinter.
type PrinterOption func(*AnswerPrinter)

// WithStyle enables lipgloss styling.
func WithStyle(styled bool) PrinterOption {
	return func(p *AnswerPrinter) { p.styled = styled }
}

// WithMarkdown defers output until the answer is complete and renders it
// with glamour.
func WithMarkdown(markdown bool) PrinterOption {
	return func(p *AnswerPrinter) { p.markdown = markdown }
}

// WithWidth sets the wrap and truncation width.
func WithWidth(width int) PrinterOption {
	return func(p *AnswerPrinter) { p.width = width }
}

// WithDiagnostics writes unrecognized payloads to w.
func WithDiagnostics(w io.Writer) PrinterOption {
	return func(p *AnswerPrinter) { p.diag = w }
}

func NewAnswerPrinter(w io.Writer, opts ...PrinterOption) *AnswerPrinter {
	p := &AnswerPrinter{w: w, width: defaultWidth}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *AnswerPrinter) OnChunk(text string) {
	p.text.WriteString(text)
	if !p.markdown {
		fmt.Fprint(p.w, text)
	}
}

func (p *AnswerPrinter) OnReferences(refs []answer.Reference) {
	p.refs = refs
}

func (p *AnswerPrinter) OnDone() {
	if p.markdown {
		rendered, err := RenderMarkdown(p.text.String(), p.width)
		if err != nil {
			rendered = p.text.String()
		}
		fmt.Fprint(p.w, rendered)
	}
	p.endLine()
	p.printReferences()
}

func (p *AnswerPrinter) OnError(err error) {
	p.err = err
	if p.markdown && p.text.Len() > 0 {
		fmt.Fprint(p.w, p.text.String())
	}
	p.endLine()
	fmt.Fprintf(p.w, "%s %s\n", p.mark(err), p.style(DimStyle, err.Error()))
}

func (p *AnswerPrinter) OnUnrecognized(raw string) {
	if p.diag == nil {
		return
	}
	fmt.Fprintf(p.diag, "%s %s\n", p.style(DimStyle, "unrecognized:"), Truncate(raw, p.width))
}

// Err returns the error the stream ended with, if any.
func (p *AnswerPrinter) Err() error {
	return p.err
}

// Text returns the answer text received so far.
func (p *AnswerPrinter) Text() string {
	return p.text.String()
}

func (p *AnswerPrinter) endLine() {
	if p.text.Len() > 0 && !strings.HasSuffix(p.text.String(), "\n") && !p.markdown {
		fmt.Fprintln(p.w)
	}
}

func (p *AnswerPrinter) printReferences() {
	if len(p.refs) == 0 {
		return
	}

	fmt.Fprintf(p.w, "\n%s\n", p.style(HeaderStyle, "References"))
	for i, ref := range p.refs {
		title := ref.TopicTitle
		if title == "" {
			title = "(untitled)"
		}
		line := fmt.Sprintf("  %d. %s %s", i+1, p.style(KeyStyle, "["+ref.TopicID+"]"), title)
		fmt.Fprintln(p.w, Truncate(line, p.width))
	}
}

func (p *AnswerPrinter) style(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func (p *AnswerPrinter) mark(err error) string {
	if !p.styled {
		if err != nil {
			return "✗"
		}
		return "✓"
	}
	return Mark(err)
}
