package catalog

// SKU categories.
const (
	CategoryCompute    = "compute"
	CategoryStorage    = "storage"
	CategoryNetworking = "networking"
	CategorySoftware   = "software"
	CategoryServices   = "services"
)

// Benefit carries the default ROI inputs of a use case.
type Benefit struct {
	Users             int     `json:"users" yaml:"users"`
	HoursSavedPerWeek float64 `json:"hoursSavedPerWeek" yaml:"hoursSavedPerWeek"`
	HourlyRate        float64 `json:"hourlyRate" yaml:"hourlyRate"`
	RevenueUplift     float64 `json:"revenueUplift" yaml:"revenueUplift"`
}

// UseCase is a packaged AI scenario the sales engineer starts from.
type UseCase struct {
	ID               string   `json:"id" yaml:"id"`
	Name             string   `json:"name" yaml:"name"`
	Industry         string   `json:"industry" yaml:"industry"`
	Description      string   `json:"description" yaml:"description"`
	Complexity       string   `json:"complexity" yaml:"complexity"`
	RecommendedSKUs  []string `json:"recommendedSkus" yaml:"recommendedSkus"`
	PipelineTemplate []string `json:"pipelineTemplate" yaml:"pipelineTemplate"`
	Benefit          Benefit  `json:"benefit" yaml:"benefit"`
}

// SKU is a sellable hardware, software or services item.
type SKU struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description" yaml:"description"`
	Category    string            `json:"category" yaml:"category"`
	Type        string            `json:"type" yaml:"type"`
	Vendor      string            `json:"vendor" yaml:"vendor"`
	Specs       map[string]string `json:"specs" yaml:"specs"`
	Price       float64           `json:"price" yaml:"price"`
	PowerKW     float64           `json:"powerKw" yaml:"powerKw"`
	Selected    bool              `json:"selected" yaml:"-"`
}

// Recommendation pairs a SKU with why it was suggested.
type Recommendation struct {
	SKU    SKU    `json:"sku"`
	Reason string `json:"reason"`
}

// UseCaseFilters narrows ListUseCases.
type UseCaseFilters struct {
	Industry string
	Search   string
}
