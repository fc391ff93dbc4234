// Package options builds the per-brand lookup that lets a user pick a model
// or a year first and narrows the other axis accordingly.
package options

import (
	"fmt"
	"sort"

	"fipetracker/server/internal/models"
)

// Index is the bidirectional model/year lookup of one brand.
//
// Every (model, year description) pair present in ModelToYears has exactly
// one entry in ModelYearLookup and the other way around. Both are filled by
// Build in the same loop.
type Index struct {
	BrandID          uint                     `json:"brand_id"`
	ReferenceMonth   string                   `json:"reference_month,omitempty"`
	Models           []models.ModelOption     `json:"models"`
	YearDescriptions []string                 `json:"year_descriptions"`
	ModelToYears     map[uint][]string        `json:"model_to_years"`
	YearToModels     map[string][]uint        `json:"year_to_models"`
	ModelYearLookup  map[uint]map[string]uint `json:"model_year_lookup"`
}

// Build derives the index from the (model, model year) rows of a brand.
// Rows keep their order: models appear in first-seen order and each model's
// years in row order. A repeated (model, year description) pair keeps its
// first model year id.
func Build(brandID uint, rows []models.OptionRow) *Index {
	idx := &Index{
		BrandID:          brandID,
		Models:           make([]models.ModelOption, 0),
		YearDescriptions: make([]string, 0),
		ModelToYears:     make(map[uint][]string),
		YearToModels:     make(map[string][]uint),
		ModelYearLookup:  make(map[uint]map[string]uint),
	}

	seenYear := make(map[string]bool)
	for _, r := range rows {
		byYear, known := idx.ModelYearLookup[r.ModelID]
		if !known {
			byYear = make(map[string]uint)
			idx.ModelYearLookup[r.ModelID] = byYear
			idx.Models = append(idx.Models, models.ModelOption{ID: r.ModelID, Name: r.ModelName})
		}
		if _, dup := byYear[r.YearDescription]; dup {
			continue
		}

		byYear[r.YearDescription] = r.ModelYearID
		idx.ModelToYears[r.ModelID] = append(idx.ModelToYears[r.ModelID], r.YearDescription)
		idx.YearToModels[r.YearDescription] = append(idx.YearToModels[r.YearDescription], r.ModelID)

		if !seenYear[r.YearDescription] {
			seenYear[r.YearDescription] = true
			idx.YearDescriptions = append(idx.YearDescriptions, r.YearDescription)
		}
	}

	// Newest first, matching the year dropdown
	sort.Sort(sort.Reverse(sort.StringSlice(idx.YearDescriptions)))
	return idx
}

// YearsForModel returns the year descriptions offered by a model.
func (idx *Index) YearsForModel(modelID uint) []string {
	return idx.ModelToYears[modelID]
}

// ModelsForYear returns the models offering a year description, in index order.
func (idx *Index) ModelsForYear(year string) []models.ModelOption {
	ids := idx.YearToModels[year]
	allowed := make(map[uint]bool, len(ids))
	for _, id := range ids {
		allowed[id] = true
	}

	out := make([]models.ModelOption, 0, len(ids))
	for _, m := range idx.Models {
		if allowed[m.ID] {
			out = append(out, m)
		}
	}
	return out
}

// Resolve returns the model year id of a (model, year description) pair.
func (idx *Index) Resolve(modelID uint, year string) (uint, error) {
	id, ok := idx.ModelYearLookup[modelID][year]
	if !ok {
		return 0, fmt.Errorf("%w: model %d has no year %q", models.ErrNotFound, modelID, year)
	}
	return id, nil
}

// Validate checks that ModelToYears, YearToModels and ModelYearLookup
// describe the same set of pairs.
func (idx *Index) Validate() error {
	pairs := 0
	for modelID, years := range idx.ModelToYears {
		for _, y := range years {
			if _, ok := idx.ModelYearLookup[modelID][y]; !ok {
				return fmt.Errorf("pair (%d, %q) missing from lookup", modelID, y)
			}
			if !containsUint(idx.YearToModels[y], modelID) {
				return fmt.Errorf("pair (%d, %q) missing from year_to_models", modelID, y)
			}
			pairs++
		}
	}

	lookupPairs := 0
	for modelID, byYear := range idx.ModelYearLookup {
		for y := range byYear {
			if !containsString(idx.ModelToYears[modelID], y) {
				return fmt.Errorf("lookup pair (%d, %q) missing from model_to_years", modelID, y)
			}
			lookupPairs++
		}
	}

	yearPairs := 0
	for _, ids := range idx.YearToModels {
		yearPairs += len(ids)
	}

	if pairs != lookupPairs || pairs != yearPairs {
		return fmt.Errorf("pair counts differ: model_to_years=%d lookup=%d year_to_models=%d",
			pairs, lookupPairs, yearPairs)
	}
	return nil
}

// Selection is the current state of the two dropdowns. Zero values mean
// "nothing selected".
type Selection struct {
	ModelID uint   `json:"model_id,omitempty"`
	Year    string `json:"year,omitempty"`
}

// Choices is what the dropdowns may offer given a Selection. ModelYearID is
// zero unless both axes are selected and the model is sold in that year; a
// model and a year that are each selectable but never paired narrow the
// lists without resolving a vehicle.
type Choices struct {
	Models      []models.ModelOption `json:"models"`
	Years       []string             `json:"years"`
	ModelYearID uint                 `json:"model_year_id,omitempty"`
}

// Filter narrows each axis by the selection on the other one. When both
// axes are selected and the pair exists, ModelYearID is resolved. A
// selection that is not part of the index is InvalidRequest.
func (idx *Index) Filter(sel Selection) (Choices, error) {
	if sel.ModelID != 0 {
		if _, ok := idx.ModelYearLookup[sel.ModelID]; !ok {
			return Choices{}, fmt.Errorf("%w: model %d is not selectable", models.ErrInvalidRequest, sel.ModelID)
		}
	}
	if sel.Year != "" {
		if _, ok := idx.YearToModels[sel.Year]; !ok {
			return Choices{}, fmt.Errorf("%w: year %q is not selectable", models.ErrInvalidRequest, sel.Year)
		}
	}

	choices := Choices{Models: idx.Models, Years: idx.YearDescriptions}
	if sel.Year != "" {
		choices.Models = idx.ModelsForYear(sel.Year)
	}
	if sel.ModelID != 0 {
		choices.Years = idx.YearsForModel(sel.ModelID)
	}
	if sel.ModelID != 0 && sel.Year != "" {
		if id, ok := idx.ModelYearLookup[sel.ModelID][sel.Year]; ok {
			choices.ModelYearID = id
		}
	}
	return choices, nil
}

func containsUint(xs []uint, v uint) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func containsString(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
