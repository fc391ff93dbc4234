package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidRange        = errors.New("invalid date range")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInsufficientData    = errors.New("insufficient data")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// VehicleError ties a failure to the model year that caused it.
type VehicleError struct {
	ModelYearID uint
	Err         error
}

func (e *VehicleError) Error() string {
	return fmt.Sprintf("vehicle %d: %v", e.ModelYearID, e.Err)
}

func (e *VehicleError) Unwrap() error {
	return e.Err
}
