// Package bom builds and edits a proposal's bill of materials.
package bom

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/solution-studio/ai-studio/internal/catalog"
	"github.com/solution-studio/ai-studio/internal/platform/httpx"
)

var (
	// ErrItemNotFound indicates an unknown line.
	ErrItemNotFound = fmt.Errorf("bom: item %w", httpx.ErrNotFound)
	// ErrInvalid wraps rejected quantities and prices.
	ErrInvalid = fmt.Errorf("bom: %w", httpx.ErrValidation)
)

var categoryRank = map[string]int{
	catalog.CategoryCompute:    0,
	catalog.CategoryStorage:    1,
	catalog.CategoryNetworking: 2,
	catalog.CategorySoftware:   3,
	catalog.CategoryServices:   4,
}

// Item is one bill of materials line. TotalPrice always equals
// Quantity × UnitPrice rounded to cents.
type Item struct {
	ID         string  `json:"id"`
	SKUID      string  `json:"skuId,omitempty"`
	Category   string  `json:"category"`
	ItemName   string  `json:"itemName"`
	Vendor     string  `json:"vendor"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unitPrice"`
	TotalPrice float64 `json:"totalPrice"`
	PowerKW    float64 `json:"powerKw"`
}

// Recalculate refreshes TotalPrice.
func (i *Item) Recalculate() {
	i.TotalPrice = Round(float64(i.Quantity) * i.UnitPrice)
}

// Line is a SKU selection fed to Build.
type Line struct {
	SKU      catalog.SKU
	Quantity int
}

// Patch changes quantity and/or unit price of a line.
type Patch struct {
	Quantity  *int     `json:"quantity,omitempty" validate:"omitempty,min=1"`
	UnitPrice *float64 `json:"unitPrice,omitempty" validate:"omitempty,min=0"`
}

// Subtotal is the sum of one category.
type Subtotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

// BOM holds the lines and the counter used to name new ones.
type BOM struct {
	Items []Item `json:"items"`
	Seq   int    `json:"seq"`
}

// Build creates one line per SKU, ordered by category then name.
// Lines with a non-positive quantity are skipped.
func Build(lines []Line) *BOM {
	b := &BOM{Items: make([]Item, 0, len(lines))}
	sorted := slices.Clone(lines)
	slices.SortStableFunc(sorted, func(a, c Line) int {
		if r := cmp.Compare(rank(a.SKU.Category), rank(c.SKU.Category)); r != 0 {
			return r
		}
		return cmp.Compare(a.SKU.Name, c.SKU.Name)
	})
	for _, l := range sorted {
		if l.Quantity <= 0 {
			continue
		}
		b.append(Item{
			SKUID:     l.SKU.ID,
			Category:  l.SKU.Category,
			ItemName:  l.SKU.Name,
			Vendor:    l.SKU.Vendor,
			Quantity:  l.Quantity,
			UnitPrice: l.SKU.Price,
			PowerKW:   l.SKU.PowerKW,
		})
	}
	return b
}

// Get returns a copy of the line.
func (b *BOM) Get(id string) (Item, error) {
	i := b.index(id)
	if i < 0 {
		return Item{}, ErrItemNotFound
	}
	return b.Items[i], nil
}

// Update applies patch to the line.
func (b *BOM) Update(id string, patch Patch) (Item, error) {
	i := b.index(id)
	if i < 0 {
		return Item{}, ErrItemNotFound
	}
	if patch.Quantity != nil && *patch.Quantity < 1 {
		return Item{}, fmt.Errorf("%w: quantity must be at least 1", ErrInvalid)
	}
	if patch.UnitPrice != nil && (*patch.UnitPrice < 0 || math.IsNaN(*patch.UnitPrice) || math.IsInf(*patch.UnitPrice, 0)) {
		return Item{}, fmt.Errorf("%w: unit price must be a non-negative number", ErrInvalid)
	}
	item := &b.Items[i]
	if patch.Quantity != nil {
		item.Quantity = *patch.Quantity
	}
	if patch.UnitPrice != nil {
		item.UnitPrice = *patch.UnitPrice
	}
	item.Recalculate()
	return *item, nil
}

// Add appends a custom line.
func (b *BOM) Add(item Item) (Item, error) {
	if item.ItemName == "" {
		return Item{}, fmt.Errorf("%w: item name required", ErrInvalid)
	}
	if item.Quantity < 1 {
		return Item{}, fmt.Errorf("%w: quantity must be at least 1", ErrInvalid)
	}
	if item.UnitPrice < 0 || math.IsNaN(item.UnitPrice) || math.IsInf(item.UnitPrice, 0) {
		return Item{}, fmt.Errorf("%w: unit price must be a non-negative number", ErrInvalid)
	}
	return b.append(item), nil
}

// Remove deletes the line.
func (b *BOM) Remove(id string) error {
	i := b.index(id)
	if i < 0 {
		return ErrItemNotFound
	}
	b.Items = slices.Delete(b.Items, i, i+1)
	return nil
}

// Subtotals sums each category present, in catalog category order.
func (b *BOM) Subtotals() []Subtotal {
	sums := make(map[string]float64)
	var order []string
	for _, it := range b.Items {
		if _, ok := sums[it.Category]; !ok {
			order = append(order, it.Category)
		}
		sums[it.Category] += it.TotalPrice
	}
	slices.SortStableFunc(order, func(a, c string) int {
		if r := cmp.Compare(rank(a), rank(c)); r != 0 {
			return r
		}
		return cmp.Compare(a, c)
	})
	out := make([]Subtotal, len(order))
	for i, c := range order {
		out[i] = Subtotal{Category: c, Total: Round(sums[c])}
	}
	return out
}

// Total sums every line.
func (b *BOM) Total() float64 {
	var sum float64
	for _, it := range b.Items {
		sum += it.TotalPrice
	}
	return Round(sum)
}

// CategoryTotal sums the lines of one category.
func (b *BOM) CategoryTotal(category string) float64 {
	var sum float64
	for _, it := range b.Items {
		if it.Category == category {
			sum += it.TotalPrice
		}
	}
	return Round(sum)
}

// PowerKW is the combined draw of every line.
func (b *BOM) PowerKW() float64 {
	var kw float64
	for _, it := range b.Items {
		kw += it.PowerKW * float64(it.Quantity)
	}
	return kw
}

func (b *BOM) append(item Item) Item {
	b.Seq++
	item.ID = "line-" + strconv.Itoa(b.Seq)
	item.Recalculate()
	b.Items = append(b.Items, item)
	return item
}

func (b *BOM) index(id string) int {
	return slices.IndexFunc(b.Items, func(it Item) bool { return it.ID == id })
}

func rank(category string) int {
	if r, ok := categoryRank[category]; ok {
		return r
	}
	return len(categoryRank)
}

// Round rounds to cents, half away from zero.
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}
