package proposal

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/solution-studio/ai-studio/internal/view"
)

const documentTemplate = "proposal.html"

// PDFClient exposes the subset of the report client used by the renderer.
type PDFClient interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Document is the data handed to the proposal template.
type Document struct {
	Proposal
	GeneratedAt time.Time
	Payback     string
}

// Renderer turns proposals into HTML and, when a PDF client is wired, PDF.
type Renderer struct {
	engine *view.Engine
	client PDFClient
	now    func() time.Time
}

// NewRenderer wires the template engine. client may be nil on processes
// that only serve HTML.
func NewRenderer(engine *view.Engine, client PDFClient) (*Renderer, error) {
	if engine == nil {
		return nil, fmt.Errorf("proposal renderer: template engine required")
	}
	return &Renderer{engine: engine, client: client, now: time.Now}, nil
}

// HTML executes the proposal template.
func (r *Renderer) HTML(p Proposal) (string, error) {
	buf := &bytes.Buffer{}
	if err := r.engine.Execute(buf, documentTemplate, r.document(p)); err != nil {
		return "", fmt.Errorf("proposal: render html: %w", err)
	}
	return buf.String(), nil
}

// PDF renders the HTML and converts it through the PDF client.
func (r *Renderer) PDF(ctx context.Context, p Proposal) ([]byte, error) {
	if r.client == nil {
		return nil, ErrRendererUnavailable
	}
	html, err := r.HTML(p)
	if err != nil {
		return nil, err
	}
	pdf, err := r.client.RenderHTML(ctx, html)
	if err != nil {
		return nil, fmt.Errorf("proposal: convert pdf: %w", err)
	}
	return pdf, nil
}

func (r *Renderer) document(p Proposal) Document {
	payback := "Not reached"
	if m := p.Estimate.PaybackMonths; m != nil {
		payback = view.Number(*m) + " months"
	}
	return Document{Proposal: p, GeneratedAt: r.now(), Payback: payback}
}
