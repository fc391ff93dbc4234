package models

// BrandStatistics summarises the prices of one brand in one reference month.
type BrandStatistics struct {
	BrandName   string  `json:"brand_name"`
	MonthDate   string  `json:"month_date"`
	TotalModels int     `json:"total_models"`
	AvgPrice    float64 `json:"avg_price"`
	MinPrice    float64 `json:"min_price"`
	MaxPrice    float64 `json:"max_price"`
	PriceRange  float64 `json:"price_range"`
}

type PricedVehicle struct {
	ModelYearID     uint    `json:"model_year_id"`
	BrandName       string  `json:"brand_name"`
	ModelName       string  `json:"model_name"`
	YearDescription string  `json:"year_description"`
	Price           float64 `json:"price"`
	FipeCode        string  `json:"fipe_code,omitempty"`
}

type PriceBucket struct {
	PriceRange string  `json:"price_range"`
	PriceMin   float64 `json:"price_min"`
	PriceMax   float64 `json:"price_max"`
	Count      int     `json:"count"`
}

type FuelTypeStat struct {
	FuelType string  `json:"fuel_type"`
	AvgPrice float64 `json:"avg_price"`
	Count    int     `json:"count"`
}

type MarketLeader struct {
	BrandName  string  `json:"brand_name"`
	ModelCount int     `json:"model_count"`
	AvgPrice   float64 `json:"avg_price"`
}

type SearchResult struct {
	ModelYearID     uint     `json:"model_year_id"`
	BrandName       string   `json:"brand_name"`
	ModelName       string   `json:"model_name"`
	YearDescription string   `json:"year_description"`
	Price           *float64 `json:"price"`
	FipeCode        *string  `json:"fipe_code"`
}
