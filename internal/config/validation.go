package config

import (
	"github.com/go-playground/validator/v10"

	"fuelpanel/internal/dataprocessing"
)

// newValidator returns a validator with the domain rules registered.
func newValidator() *validator.Validate {
	v := validator.New()

	// Register custom validators
	v.RegisterValidation("binwidth", isBinWidth)
	v.RegisterValidation("aggregation", isAggregation)

	return v
}

// Custom validators

// isBinWidth accepts every width ParseBinWidth understands
func isBinWidth(fl validator.FieldLevel) bool {
	_, err := dataprocessing.ParseBinWidth(fl.Field().String())
	return err == nil
}

// isAggregation validates an aggregation function name
func isAggregation(fl validator.FieldLevel) bool {
	_, err := dataprocessing.ParseAggregation(fl.Field().String())
	return err == nil
}
