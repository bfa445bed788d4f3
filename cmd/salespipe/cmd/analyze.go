package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/salespipe/salespipe/cmd/salespipe/config"
	"github.com/salespipe/salespipe/internal/catalog"
	"github.com/salespipe/salespipe/internal/enrichment"
	"github.com/salespipe/salespipe/internal/models"
	"github.com/salespipe/salespipe/internal/parsers"
	"github.com/salespipe/salespipe/internal/pipeline"
	"github.com/salespipe/salespipe/internal/reporter"
	"github.com/salespipe/salespipe/internal/validator"
)

// Flags for the analyze command
var (
	inputFile       string
	outputFile      string
	regionFilter    string
	minAmount       string
	maxAmount       string
	delimiter       string
	noHeader        bool
	amountTolerance float64
	catalogURL      string
	noEnrich        bool
	maxConcurrency  int
	topN            int
	lowUnits        int

	// Amount bounds parsed once by PreRunE and reused by the run, so
	// validation and execution cannot disagree on the values.
	minAmountValue *decimal.Decimal
	maxAmountValue *decimal.Decimal
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a sales transaction feed",
	Long: `Analyze reads a pipe-delimited sales transaction feed, validates each
record, aggregates revenue metrics, enriches products against the catalog
service, and writes a text report.

Examples:
  # Basic analysis to stdout
  salespipe analyze --input sales.txt

  # Filter by region and amount range, write report to a file
  salespipe analyze --input sales.txt --region West \
    --min-amount 10.00 --max-amount 500.00 --output report.txt

  # Custom catalog endpoint with higher lookup concurrency
  salespipe analyze --input sales.txt \
    --catalog-url https://dummyjson.com --max-concurrency 8

  # Skip catalog enrichment entirely
  salespipe analyze --input sales.txt --no-enrich`,

	PreRunE: validateAnalyzeFlags,
	RunE:    runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	// Required flags
	analyzeCmd.Flags().StringVarP(&inputFile, "input", "i", "", "path to sales transaction feed (required)")

	// Output flags
	analyzeCmd.Flags().StringVarP(&outputFile, "output", "o", "", "report file path (default: stdout)")

	// Filtering flags
	analyzeCmd.Flags().StringVar(&regionFilter, "region", "", "keep only records from this region")
	analyzeCmd.Flags().StringVar(&minAmount, "min-amount", "", "minimum accepted amount, inclusive")
	analyzeCmd.Flags().StringVar(&maxAmount, "max-amount", "", "maximum accepted amount, inclusive")

	// Parsing flags
	analyzeCmd.Flags().StringVar(&delimiter, "delimiter", "|", "field delimiter")
	analyzeCmd.Flags().BoolVar(&noHeader, "no-header", false, "treat the first line as data, not a header")

	// Validation flags
	analyzeCmd.Flags().Float64VarP(&amountTolerance, "amount-tolerance", "a", 0.01, "absolute tolerance before amounts are reconciled")

	// Enrichment flags
	analyzeCmd.Flags().StringVar(&catalogURL, "catalog-url", "", "catalog service base URL")
	analyzeCmd.Flags().BoolVar(&noEnrich, "no-enrich", false, "skip catalog enrichment")
	analyzeCmd.Flags().IntVar(&maxConcurrency, "max-concurrency", 4, "parallel catalog lookups")

	// Report flags
	analyzeCmd.Flags().IntVar(&topN, "top-n", 5, "entries in top products/customers tables")
	analyzeCmd.Flags().IntVar(&lowUnits, "low-units", 5, "list products selling fewer units than this (0 disables)")

	// Mark required flags
	analyzeCmd.MarkFlagRequired("input")

	// Bind flags to viper
	viper.BindPFlag("input", analyzeCmd.Flags().Lookup("input"))
	viper.BindPFlag("output", analyzeCmd.Flags().Lookup("output"))
	viper.BindPFlag("region", analyzeCmd.Flags().Lookup("region"))
	viper.BindPFlag("min-amount", analyzeCmd.Flags().Lookup("min-amount"))
	viper.BindPFlag("max-amount", analyzeCmd.Flags().Lookup("max-amount"))
	viper.BindPFlag("delimiter", analyzeCmd.Flags().Lookup("delimiter"))
	viper.BindPFlag("no-header", analyzeCmd.Flags().Lookup("no-header"))
	viper.BindPFlag("amount-tolerance", analyzeCmd.Flags().Lookup("amount-tolerance"))
	viper.BindPFlag("catalog-url", analyzeCmd.Flags().Lookup("catalog-url"))
	viper.BindPFlag("no-enrich", analyzeCmd.Flags().Lookup("no-enrich"))
	viper.BindPFlag("max-concurrency", analyzeCmd.Flags().Lookup("max-concurrency"))
	viper.BindPFlag("top-n", analyzeCmd.Flags().Lookup("top-n"))
	viper.BindPFlag("low-units", analyzeCmd.Flags().Lookup("low-units"))
}

func validateAnalyzeFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file)
	inputFile = viper.GetString("input")
	outputFile = viper.GetString("output")
	regionFilter = viper.GetString("region")
	minAmount = viper.GetString("min-amount")
	maxAmount = viper.GetString("max-amount")
	delimiter = viper.GetString("delimiter")
	noHeader = viper.GetBool("no-header")
	amountTolerance = viper.GetFloat64("amount-tolerance")
	catalogURL = viper.GetString("catalog-url")
	noEnrich = viper.GetBool("no-enrich")
	maxConcurrency = viper.GetInt("max-concurrency")
	topN = viper.GetInt("top-n")
	lowUnits = viper.GetInt("low-units")

	// Validate required flags
	if inputFile == "" {
		return fmt.Errorf("input is required")
	}

	if err := validateFileExists(inputFile, "sales transaction feed"); err != nil {
		return err
	}

	// Parse amount bounds once; the run reuses the parsed values
	minAmountValue, maxAmountValue = nil, nil
	if minAmount != "" {
		d, err := decimal.NewFromString(minAmount)
		if err != nil {
			return fmt.Errorf("invalid min-amount %q: %w", minAmount, err)
		}
		minAmountValue = &d
	}
	if maxAmount != "" {
		d, err := decimal.NewFromString(maxAmount)
		if err != nil {
			return fmt.Errorf("invalid max-amount %q: %w", maxAmount, err)
		}
		maxAmountValue = &d
	}
	if minAmountValue != nil && maxAmountValue != nil && minAmountValue.GreaterThan(*maxAmountValue) {
		return fmt.Errorf("min-amount cannot exceed max-amount")
	}

	// Validate tolerances
	if amountTolerance < 0 {
		return fmt.Errorf("amount tolerance cannot be negative")
	}
	if maxConcurrency < 1 {
		return fmt.Errorf("max-concurrency must be at least 1")
	}
	if topN < 1 {
		return fmt.Errorf("top-n must be at least 1")
	}
	if lowUnits < 0 {
		return fmt.Errorf("low-units cannot be negative")
	}

	// Validate output file directory exists if specified
	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s is not readable: %w", description, err)
	}
	file.Close()

	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	errorHandler := NewCLIErrorHandler()

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting analysis...\n")
		fmt.Fprintf(os.Stderr, "Input file: %s\n", inputFile)
		if regionFilter != "" {
			fmt.Fprintf(os.Stderr, "Region filter: %s\n", regionFilter)
		}
		if outputFile != "" {
			fmt.Fprintf(os.Stderr, "Output file: %s\n", outputFile)
		}
	}

	// Create configurations
	parserConfig, err := config.CreateParserConfig(delimiter, !noHeader)
	if err != nil {
		return fmt.Errorf("failed to create parser config: %w", err)
	}

	validatorConfig, err := config.CreateValidatorConfig(amountTolerance)
	if err != nil {
		return fmt.Errorf("failed to create validator config: %w", err)
	}

	reportConfig, err := config.CreateReportConfig(topN, lowUnits)
	if err != nil {
		return fmt.Errorf("failed to create report config: %w", err)
	}

	// Create pipeline components
	parser, err := parsers.NewRecordParser(parserConfig)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	v, err := validator.NewValidator(validatorConfig)
	if err != nil {
		return fmt.Errorf("failed to create validator: %w", err)
	}

	composer, err := reporter.NewComposer(reportConfig)
	if err != nil {
		return fmt.Errorf("failed to create report composer: %w", err)
	}

	var merger *enrichment.Merger
	if !noEnrich {
		catalogConfig, err := config.CreateCatalogConfig(catalogURL)
		if err != nil {
			return fmt.Errorf("failed to create catalog config: %w", err)
		}
		enrichmentConfig, err := config.CreateEnrichmentConfig(maxConcurrency)
		if err != nil {
			return fmt.Errorf("failed to create enrichment config: %w", err)
		}

		client, err := catalog.NewHTTPClient(catalogConfig)
		if err != nil {
			return fmt.Errorf("failed to create catalog client: %w", err)
		}
		merger, err = enrichment.NewMerger(client, enrichmentConfig)
		if err != nil {
			return fmt.Errorf("failed to create enrichment merger: %w", err)
		}
	}

	service, err := pipeline.NewService(parser, v, merger, composer)
	if err != nil {
		return fmt.Errorf("failed to create pipeline service: %w", err)
	}

	// Build the request
	request := &pipeline.Request{
		InputPath:    inputFile,
		RegionFilter: regionFilter,
		MinAmount:    minAmountValue,
		MaxAmount:    maxAmountValue,
	}

	// Determine output destination
	var output *os.File
	if outputFile != "" {
		output, err = os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer output.Close()
	} else {
		output = os.Stdout
	}

	// Run the pipeline
	summary, err := service.Run(ctx, request, output)
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}

	// Show completion message
	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "\nAnalysis completed successfully.\n")
		fmt.Fprintf(os.Stderr, "Processed %d candidate records: %d accepted, %d filtered out.\n",
			summary.CandidateCount, summary.AcceptedCount, summary.FilteredCount)
		for _, reason := range models.AllRejectReasons() {
			if n := summary.RejectedByReason[reason]; n > 0 {
				fmt.Fprintf(os.Stderr, "Rejected %d as %s.\n", n, reason)
			}
		}
		if summary.AdjustmentCount > 0 {
			fmt.Fprintf(os.Stderr, "Reconciled %d stated amounts.\n", summary.AdjustmentCount)
		}
		if merger != nil {
			fmt.Fprintf(os.Stderr, "Enriched %d records, %d unmatched.\n",
				summary.EnrichedCount, summary.UnmatchedCount)
		}
		fmt.Fprintf(os.Stderr, "Processing time: %v\n", summary.Duration)
	}

	return nil
}
