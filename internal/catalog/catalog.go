// Package catalog serves the read-only use case and SKU catalog.
package catalog

import (
	_ "embed"
	"fmt"
	"maps"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/solution-studio/ai-studio/internal/platform/httpx"
	"github.com/solution-studio/ai-studio/internal/shared"
)

//go:embed catalog.yaml
var catalogYAML []byte

// ErrNotFound indicates an unknown use case or SKU.
var ErrNotFound = fmt.Errorf("catalog: %w", httpx.ErrNotFound)

// SKUFilters narrows ListSKUs.
type SKUFilters struct {
	shared.ListFilters
	Category string
	Type     string
}

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	useCases []UseCase
	skus     []SKU
	skuByID  map[string]int
}

// New validates references between use cases and SKUs.
func New(useCases []UseCase, skus []SKU) (*Catalog, error) {
	c := &Catalog{useCases: useCases, skus: skus, skuByID: make(map[string]int, len(skus))}
	for i, s := range skus {
		if _, dup := c.skuByID[s.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate sku %s", s.ID)
		}
		c.skuByID[s.ID] = i
	}
	for _, uc := range useCases {
		for _, id := range uc.RecommendedSKUs {
			if _, ok := c.skuByID[id]; !ok {
				return nil, fmt.Errorf("catalog: use case %s recommends unknown sku %s", uc.ID, id)
			}
		}
	}
	return c, nil
}

// Load builds the catalog from the embedded seed.
func Load() (*Catalog, error) {
	var data struct {
		UseCases []UseCase `yaml:"useCases"`
		SKUs     []SKU     `yaml:"skus"`
	}
	if err := yaml.Unmarshal(catalogYAML, &data); err != nil {
		return nil, fmt.Errorf("catalog: parse seed: %w", err)
	}
	return New(data.UseCases, data.SKUs)
}

// ListUseCases filters by industry and searches name, description and industry.
func (c *Catalog) ListUseCases(f UseCaseFilters) []UseCase {
	out := make([]UseCase, 0, len(c.useCases))
	for _, uc := range c.useCases {
		if f.Industry != "" && !strings.EqualFold(uc.Industry, f.Industry) {
			continue
		}
		if shared.MatchesSearch(f.Search, uc.Name, uc.Description, uc.Industry) {
			out = append(out, cloneUseCase(uc))
		}
	}
	return out
}

// GetUseCase returns one use case.
func (c *Catalog) GetUseCase(id string) (UseCase, error) {
	for _, uc := range c.useCases {
		if uc.ID == id {
			return cloneUseCase(uc), nil
		}
	}
	return UseCase{}, fmt.Errorf("%w: use case %s", ErrNotFound, id)
}

// Industries returns the distinct industries, sorted.
func (c *Catalog) Industries() []string {
	out := make([]string, 0, len(c.useCases))
	for _, uc := range c.useCases {
		out = append(out, uc.Industry)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

var skuSortKeys = shared.SortKeys[SKU]{
	"name":     shared.ByText(func(s SKU) string { return s.Name }),
	"price":    shared.ByNumber(func(s SKU) float64 { return s.Price }),
	"category": shared.ByText(func(s SKU) string { return s.Category }),
}

// ListSKUs filters by category and type, searches name, description and vendor.
func (c *Catalog) ListSKUs(f SKUFilters) []SKU {
	out := make([]SKU, 0, len(c.skus))
	for _, s := range c.skus {
		if f.Category != "" && !strings.EqualFold(s.Category, f.Category) {
			continue
		}
		if f.Type != "" && !strings.EqualFold(s.Type, f.Type) {
			continue
		}
		if shared.MatchesSearch(f.Search, s.Name, s.Description, s.Vendor) {
			out = append(out, cloneSKU(s))
		}
	}
	shared.SortItems(out, skuSortKeys, f.SortBy, "name", f.Descending())
	return out
}

// GetSKU returns one SKU.
func (c *Catalog) GetSKU(id string) (SKU, error) {
	i, ok := c.skuByID[id]
	if !ok {
		return SKU{}, fmt.Errorf("%w: sku %s", ErrNotFound, id)
	}
	return cloneSKU(c.skus[i]), nil
}

// Recommend lists the use case's recommended SKUs in declared order, followed
// by the other SKUs of the same categories from cheapest to most expensive.
func (c *Catalog) Recommend(useCaseID string) ([]Recommendation, error) {
	uc, err := c.GetUseCase(useCaseID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(uc.RecommendedSKUs))
	categories := make(map[string]bool)
	out := make([]Recommendation, 0, len(c.skus))
	for _, id := range uc.RecommendedSKUs {
		s := c.skus[c.skuByID[id]]
		seen[id] = true
		categories[s.Category] = true
		out = append(out, Recommendation{SKU: cloneSKU(s), Reason: "recommended for " + uc.Name})
	}
	var alternatives []SKU
	for _, s := range c.skus {
		if !seen[s.ID] && categories[s.Category] {
			alternatives = append(alternatives, cloneSKU(s))
		}
	}
	shared.SortItems(alternatives, skuSortKeys, "price", "price", false)
	for _, s := range alternatives {
		out = append(out, Recommendation{SKU: s, Reason: "alternative"})
	}
	return out, nil
}

// MarkSelected sets Selected on every SKU present in selected.
func MarkSelected(skus []SKU, selected map[string]int) {
	for i := range skus {
		skus[i].Selected = selected[skus[i].ID] > 0
	}
}

func cloneUseCase(uc UseCase) UseCase {
	uc.RecommendedSKUs = slices.Clone(uc.RecommendedSKUs)
	uc.PipelineTemplate = slices.Clone(uc.PipelineTemplate)
	return uc
}

func cloneSKU(s SKU) SKU {
	s.Specs = maps.Clone(s.Specs)
	return s
}
