// Package proposal turns a completed wizard into a customer-facing proposal
// document with its bill of materials, financials and simulation figures.
package proposal

import (
	"time"

	"github.com/solution-studio/ai-studio/internal/bom"
	"github.com/solution-studio/ai-studio/internal/estimate"
	"github.com/solution-studio/ai-studio/internal/twin"
)

// Status captures the document lifecycle of a proposal.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusRendering Status = "rendering"
	StatusReady     Status = "ready"
	StatusFailed    Status = "failed"
)

// UseCase is the slice of the catalog use case printed on the proposal.
type UseCase struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Industry    string `json:"industry"`
	Description string `json:"description"`
}

// Proposal is a generated proposal. Revision increases on every content
// change so a render started before an edit cannot publish a stale PDF.
type Proposal struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Customer      string          `json:"customer"`
	PreparedBy    string          `json:"preparedBy"`
	UseCase       UseCase         `json:"useCase"`
	BOM           bom.BOM         `json:"bom"`
	Subtotals     []bom.Subtotal  `json:"subtotals"`
	Total         float64         `json:"total"`
	Estimate      estimate.Result `json:"estimate"`
	PipelineOrder []string        `json:"pipelineOrder"`
	Simulation    twin.Results    `json:"simulation"`
	Status        Status          `json:"status"`
	Error         string          `json:"error,omitempty"`
	Revision      int             `json:"revision"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// GenerateRequest names the audience of a new proposal. An empty title is
// derived from the use case and customer.
type GenerateRequest struct {
	Title      string `json:"title" validate:"max=120"`
	Customer   string `json:"customer" validate:"required,max=120"`
	PreparedBy string `json:"preparedBy" validate:"required,max=80"`
}

// refresh recomputes every figure derived from the bill of materials.
func (p *Proposal) refresh() {
	if p.BOM.Items == nil {
		p.BOM.Items = []bom.Item{}
	}
	p.Subtotals = p.BOM.Subtotals()
	p.Total = p.BOM.Total()
	p.Estimate = estimate.Calculate(&p.BOM, p.Estimate.Assumptions)
}
