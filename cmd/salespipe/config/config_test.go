package config

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCreateParserConfig(t *testing.T) {
	config, err := CreateParserConfig("|", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Delimiter != '|' || !config.HasHeader {
		t.Errorf("unexpected config: %+v", config)
	}

	config, err = CreateParserConfig(";", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Delimiter != ';' || config.HasHeader {
		t.Errorf("unexpected config: %+v", config)
	}

	if _, err := CreateParserConfig("||", true); err == nil {
		t.Error("expected error for multi-character delimiter")
	}
}

func TestCreateValidatorConfig(t *testing.T) {
	config, err := CreateValidatorConfig(0.05)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !config.AmountTolerance.Equal(decimal.NewFromFloat(0.05)) {
		t.Errorf("expected tolerance 0.05, got %s", config.AmountTolerance)
	}
}

func TestCreateEnrichmentConfig(t *testing.T) {
	config, err := CreateEnrichmentConfig(8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.MaxConcurrency != 8 {
		t.Errorf("expected concurrency 8, got %d", config.MaxConcurrency)
	}

	// Zero falls back to the default.
	config, err = CreateEnrichmentConfig(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.MaxConcurrency != 4 {
		t.Errorf("expected default concurrency 4, got %d", config.MaxConcurrency)
	}
}

func TestCreateCatalogConfig(t *testing.T) {
	config, err := CreateCatalogConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.BaseURL == "" {
		t.Error("expected default base URL")
	}

	config, err = CreateCatalogConfig("http://localhost:9999")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.BaseURL != "http://localhost:9999" {
		t.Errorf("expected override, got %s", config.BaseURL)
	}
}

func TestCreateReportConfig(t *testing.T) {
	config, err := CreateReportConfig(10, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.TopN != 10 {
		t.Errorf("expected TopN 10, got %d", config.TopN)
	}
	if config.LowUnitsThreshold != 3 {
		t.Errorf("expected low units threshold 3, got %d", config.LowUnitsThreshold)
	}

	// Zero disables the low-performers listing.
	config, err = CreateReportConfig(5, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.LowUnitsThreshold != 0 {
		t.Errorf("expected threshold 0, got %d", config.LowUnitsThreshold)
	}
}
