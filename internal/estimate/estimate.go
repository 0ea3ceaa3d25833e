// Package estimate computes cost, TCO and ROI figures from a bill of materials.
package estimate

import (
	"fmt"
	"math"

	"github.com/solution-studio/ai-studio/internal/bom"
	"github.com/solution-studio/ai-studio/internal/catalog"
	"github.com/solution-studio/ai-studio/internal/platform/httpx"
)

const hoursPerYear = 8760

// Defaults applied to zero-valued inputs.
const (
	DefaultYears            = 3
	DefaultServicesRate     = 0.15
	DefaultSupportRate      = 0.10
	DefaultEnergyRatePerKWh = 0.12
	DefaultPUE              = 1.5
	DefaultDiscountRate     = 0.08
)

// ErrInvalid wraps rejected inputs.
var ErrInvalid = fmt.Errorf("estimate: %w", httpx.ErrValidation)

// Input holds the tunable assumptions. Pointer fields distinguish "unset"
// from an explicit zero.
type Input struct {
	Years             int      `json:"years,omitempty" validate:"omitempty,min=1,max=10"`
	ServicesRate      *float64 `json:"servicesRate,omitempty" validate:"omitempty,min=0,max=1"`
	SupportRate       *float64 `json:"supportRate,omitempty" validate:"omitempty,min=0,max=1"`
	EnergyRatePerKWh  *float64 `json:"energyRatePerKwh,omitempty" validate:"omitempty,min=0,max=5"`
	PUE               *float64 `json:"pue,omitempty" validate:"omitempty,min=1,max=3"`
	DiscountRate      *float64 `json:"discountRate,omitempty" validate:"omitempty,min=0,max=1"`
	Users             *int     `json:"users,omitempty" validate:"omitempty,min=0"`
	HoursSavedPerWeek *float64 `json:"hoursSavedPerWeek,omitempty" validate:"omitempty,min=0,max=168"`
	HourlyRate        *float64 `json:"hourlyRate,omitempty" validate:"omitempty,min=0"`
	RevenueUplift     *float64 `json:"revenueUplift,omitempty" validate:"omitempty,min=0"`
}

// Assumptions is Input with every default resolved.
type Assumptions struct {
	Years             int     `json:"years"`
	ServicesRate      float64 `json:"servicesRate"`
	SupportRate       float64 `json:"supportRate"`
	EnergyRatePerKWh  float64 `json:"energyRatePerKwh"`
	PUE               float64 `json:"pue"`
	DiscountRate      float64 `json:"discountRate"`
	Users             int     `json:"users"`
	HoursSavedPerWeek float64 `json:"hoursSavedPerWeek"`
	HourlyRate        float64 `json:"hourlyRate"`
	RevenueUplift     float64 `json:"revenueUplift"`
}

// Resolve fills defaults, taking benefit inputs from the use case.
func (in Input) Resolve(benefit catalog.Benefit) (Assumptions, error) {
	a := Assumptions{
		Years:             in.Years,
		ServicesRate:      orDefault(in.ServicesRate, DefaultServicesRate),
		SupportRate:       orDefault(in.SupportRate, DefaultSupportRate),
		EnergyRatePerKWh:  orDefault(in.EnergyRatePerKWh, DefaultEnergyRatePerKWh),
		PUE:               orDefault(in.PUE, DefaultPUE),
		DiscountRate:      orDefault(in.DiscountRate, DefaultDiscountRate),
		Users:             benefit.Users,
		HoursSavedPerWeek: orDefault(in.HoursSavedPerWeek, benefit.HoursSavedPerWeek),
		HourlyRate:        orDefault(in.HourlyRate, benefit.HourlyRate),
		RevenueUplift:     orDefault(in.RevenueUplift, benefit.RevenueUplift),
	}
	if a.Years == 0 {
		a.Years = DefaultYears
	}
	if in.Users != nil {
		a.Users = *in.Users
	}
	if err := httpx.Validate(in); err != nil {
		return Assumptions{}, err
	}
	if a.Years < 1 || a.Years > 10 {
		return Assumptions{}, fmt.Errorf("%w: years must be between 1 and 10", ErrInvalid)
	}
	if a.PUE < 1 {
		return Assumptions{}, fmt.Errorf("%w: pue must be at least 1", ErrInvalid)
	}
	return a, nil
}

// YearFlow is one row of the cash-flow table.
type YearFlow struct {
	Year       int     `json:"year"`
	Cost       float64 `json:"cost"`
	Benefit    float64 `json:"benefit"`
	Net        float64 `json:"net"`
	Cumulative float64 `json:"cumulative"`
}

// Result is the full estimate.
type Result struct {
	Assumptions   Assumptions `json:"assumptions"`
	Hardware      float64     `json:"hardware"`
	Software      float64     `json:"softwareAnnual"`
	Services      float64     `json:"services"`
	Upfront       float64     `json:"upfront"`
	PowerKW       float64     `json:"powerKw"`
	Energy        float64     `json:"energyAnnual"`
	Support       float64     `json:"supportAnnual"`
	Opex          float64     `json:"opexAnnual"`
	TCO           float64     `json:"tco"`
	Benefit       float64     `json:"benefitAnnual"`
	ROIPercent    float64     `json:"roiPercent"`
	PaybackMonths *float64    `json:"paybackMonths"`
	NPV           float64     `json:"npv"`
	CashFlow      []YearFlow  `json:"cashFlow"`
}

// Calculate applies the closed-form cost model to b.
func Calculate(b *bom.BOM, a Assumptions) Result {
	var hardware, software, servicesItems float64
	for _, it := range b.Items {
		switch it.Category {
		case catalog.CategorySoftware:
			software += it.TotalPrice
		case catalog.CategoryServices:
			servicesItems += it.TotalPrice
		default:
			hardware += it.TotalPrice
		}
	}
	services := servicesItems + hardware*a.ServicesRate
	upfront := hardware + services
	powerKW := b.PowerKW()
	energy := powerKW * hoursPerYear * a.PUE * a.EnergyRatePerKWh
	support := hardware * a.SupportRate
	opex := software + energy + support
	years := float64(a.Years)
	tco := upfront + years*opex
	benefit := float64(a.Users)*a.HoursSavedPerWeek*52*a.HourlyRate + a.RevenueUplift

	r := Result{
		Assumptions: a,
		Hardware:    bom.Round(hardware),
		Software:    bom.Round(software),
		Services:    bom.Round(services),
		Upfront:     bom.Round(upfront),
		PowerKW:     math.Round(powerKW*1000) / 1000,
		Energy:      bom.Round(energy),
		Support:     bom.Round(support),
		Opex:        bom.Round(opex),
		TCO:         bom.Round(tco),
		Benefit:     bom.Round(benefit),
	}
	if tco > 0 {
		r.ROIPercent = math.Round((benefit*years-tco)/tco*100*100) / 100
	}
	if net := benefit - opex; net > 0 {
		months := math.Round(upfront/(net/12)*10) / 10
		r.PaybackMonths = &months
	}

	npv := -upfront
	cumulative := -upfront
	r.CashFlow = make([]YearFlow, 0, a.Years+1)
	r.CashFlow = append(r.CashFlow, YearFlow{Year: 0, Cost: bom.Round(upfront), Net: bom.Round(-upfront), Cumulative: bom.Round(cumulative)})
	for t := 1; t <= a.Years; t++ {
		net := benefit - opex
		npv += net / math.Pow(1+a.DiscountRate, float64(t))
		cumulative += net
		r.CashFlow = append(r.CashFlow, YearFlow{
			Year:       t,
			Cost:       bom.Round(opex),
			Benefit:    bom.Round(benefit),
			Net:        bom.Round(net),
			Cumulative: bom.Round(cumulative),
		})
	}
	r.NPV = bom.Round(npv)
	return r
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
