package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices are plotted by the chart client, which expects JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Brand is a vehicle manufacturer, the root of the catalogue hierarchy.
type Brand struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	BrandCode string     `gorm:"size:50;not null;uniqueIndex" json:"brand_code"`
	Name      string     `gorm:"column:brand_name;size:100;not null;uniqueIndex" json:"name"`
	Models    []CarModel `gorm:"foreignKey:BrandID" json:"-"`
}

func (Brand) TableName() string { return "brands" }

// CarModel belongs to exactly one Brand.
type CarModel struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	BrandID   uint        `gorm:"not null;index;uniqueIndex:idx_brand_model_code" json:"brand_id"`
	ModelCode string      `gorm:"size:50;not null;uniqueIndex:idx_brand_model_code" json:"model_code"`
	Name      string      `gorm:"column:model_name;size:200;not null" json:"name"`
	Years     []ModelYear `gorm:"foreignKey:CarModelID" json:"-"`
}

func (CarModel) TableName() string { return "car_models" }

// ModelYear is a (model, year + fuel) combination, the unit a price is attached to.
// YearDescription is not unique across models.
type ModelYear struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	CarModelID      uint   `gorm:"not null;index;uniqueIndex:idx_model_year_code" json:"car_model_id"`
	YearCode        string `gorm:"size:50;not null;uniqueIndex:idx_model_year_code" json:"year_code"`
	YearDescription string `gorm:"size:100;not null;index" json:"year_description"`
	FipeCode        string `gorm:"size:50" json:"fipe_code"`
}

func (ModelYear) TableName() string { return "model_years" }

// ReferenceMonth is a published month of the FIPE table. MonthDate is the first day of the month.
type ReferenceMonth struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MonthCode string    `gorm:"size:50;not null;uniqueIndex" json:"month_code"`
	MonthDate time.Time `gorm:"not null;uniqueIndex" json:"month_date"`
}

func (ReferenceMonth) TableName() string { return "reference_months" }

// CarPrice is the fact table: at most one row per (model year, reference month).
type CarPrice struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	ReferenceMonthID uint            `gorm:"not null;uniqueIndex:idx_month_model_year" json:"reference_month_id"`
	ModelYearID      uint            `gorm:"not null;index;uniqueIndex:idx_month_model_year" json:"model_year_id"`
	Price            decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	FipeCode         string          `gorm:"size:50" json:"fipe_code"`
	VehicleType      string          `gorm:"size:50" json:"vehicle_type"`
	FuelType         string          `gorm:"size:50" json:"fuel_type"`
}

func (CarPrice) TableName() string { return "car_prices" }

// AllTables lists the schema in dependency order.
func AllTables() []interface{} {
	return []interface{}{&Brand{}, &CarModel{}, &ModelYear{}, &ReferenceMonth{}, &CarPrice{}}
}

type BrandOption struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type ModelOption struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type YearOption struct {
	ID          uint   `json:"id"`
	Description string `json:"description"`
}

type MonthOption struct {
	Date  string `json:"date"`
	Label string `json:"label"`
}

// VehicleInfo describes one ModelYear with its catalogue names.
type VehicleInfo struct {
	ModelYearID     uint   `json:"model_year_id"`
	BrandID         uint   `json:"brand_id"`
	BrandName       string `json:"brand"`
	ModelID         uint   `json:"model_id"`
	ModelName       string `json:"model"`
	YearDescription string `json:"year"`
	FipeCode        string `json:"fipe_code,omitempty"`
}

// OptionRow is one (model, model year) pair of a brand, the input of the option index.
type OptionRow struct {
	ModelID         uint
	ModelName       string
	ModelYearID     uint
	YearDescription string
}

// SelectedVehicle is a vehicle picked for comparison within one session.
type SelectedVehicle struct {
	ModelYearID     uint   `json:"model_year_id"`
	BrandName       string `json:"brand_name"`
	ModelName       string `json:"model_name"`
	YearDescription string `json:"year_description"`
	DisplayColor    string `json:"display_color"`
}

// DefaultVehicle is the best-effort initial selection of the UI.
type DefaultVehicle struct {
	BrandID     uint `json:"brand_id"`
	ModelID     uint `json:"model_id"`
	ModelYearID uint `json:"year_id"`
}
