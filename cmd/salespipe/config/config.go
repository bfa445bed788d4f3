package config

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/salespipe/salespipe/internal/catalog"
	"github.com/salespipe/salespipe/internal/enrichment"
	"github.com/salespipe/salespipe/internal/parsers"
	"github.com/salespipe/salespipe/internal/reporter"
	"github.com/salespipe/salespipe/internal/validator"
)

// CreateParserConfig creates a parser configuration from CLI values
func CreateParserConfig(delimiter string, hasHeader bool) (*parsers.Config, error) {
	config := parsers.DefaultConfig()
	config.HasHeader = hasHeader

	if delimiter != "" {
		runes := []rune(delimiter)
		if len(runes) != 1 {
			return nil, fmt.Errorf("delimiter must be a single character, got %q", delimiter)
		}
		config.Delimiter = runes[0]
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// CreateValidatorConfig creates a validator configuration with the
// specified amount tolerance
func CreateValidatorConfig(amountTolerance float64) (*validator.Config, error) {
	config := validator.DefaultConfig()
	if amountTolerance >= 0 {
		config.AmountTolerance = decimal.NewFromFloat(amountTolerance)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// CreateEnrichmentConfig creates an enrichment configuration from CLI values
func CreateEnrichmentConfig(maxConcurrency int) (*enrichment.Config, error) {
	config := enrichment.DefaultConfig()
	if maxConcurrency > 0 {
		config.MaxConcurrency = maxConcurrency
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// CreateCatalogConfig creates a catalog client configuration for the
// given base URL; empty keeps the default endpoint
func CreateCatalogConfig(baseURL string) (*catalog.HTTPConfig, error) {
	config := catalog.DefaultHTTPConfig()
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// CreateReportConfig creates a report configuration from CLI values.
// A lowUnits of zero disables the low-performers listing.
func CreateReportConfig(topN, lowUnits int) (*reporter.Config, error) {
	config := reporter.DefaultConfig()
	if topN > 0 {
		config.TopN = topN
	}
	if lowUnits >= 0 {
		config.LowUnitsThreshold = lowUnits
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
