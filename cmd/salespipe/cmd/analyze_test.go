package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func TestValidateFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	validFile := filepath.Join(tmpDir, "sales.txt")
	if err := os.WriteFile(validFile, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	tests := []struct {
		name        string
		filePath    string
		description string
		expectError bool
	}{
		{
			name:        "valid file",
			filePath:    validFile,
			description: "test file",
			expectError: false,
		},
		{
			name:        "empty path",
			filePath:    "",
			description: "test file",
			expectError: true,
		},
		{
			name:        "non-existent file",
			filePath:    "/non/existent/sales.txt",
			description: "test file",
			expectError: true,
		},
		{
			name:        "directory instead of file",
			filePath:    tmpDir,
			description: "test file",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFileExists(tt.filePath, tt.description)

			if tt.expectError && err == nil {
				t.Errorf("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateAnalyzeFlags(t *testing.T) {
	tmpDir := t.TempDir()
	feedFile := filepath.Join(tmpDir, "sales.txt")
	if err := os.WriteFile(feedFile, []byte("T1|2024-01-01|West|P1|C1|2|10.00|20.00"), 0644); err != nil {
		t.Fatalf("failed to create feed file: %v", err)
	}

	baseFlags := func() {
		viper.Set("input", feedFile)
		viper.Set("amount-tolerance", 0.01)
		viper.Set("max-concurrency", 4)
		viper.Set("top-n", 5)
	}

	tests := []struct {
		name          string
		setupFlags    func()
		expectError   bool
		errorContains string
	}{
		{
			name:        "valid flags",
			setupFlags:  baseFlags,
			expectError: false,
		},
		{
			name: "missing input",
			setupFlags: func() {
				viper.Set("input", "")
			},
			expectError:   true,
			errorContains: "input is required",
		},
		{
			name: "non-existent input",
			setupFlags: func() {
				baseFlags()
				viper.Set("input", "/non/existent/sales.txt")
			},
			expectError:   true,
			errorContains: "does not exist",
		},
		{
			name: "invalid min amount",
			setupFlags: func() {
				baseFlags()
				viper.Set("min-amount", "abc")
			},
			expectError:   true,
			errorContains: "invalid min-amount",
		},
		{
			name: "min amount above max amount",
			setupFlags: func() {
				baseFlags()
				viper.Set("min-amount", "100.00")
				viper.Set("max-amount", "10.00")
			},
			expectError:   true,
			errorContains: "min-amount cannot exceed max-amount",
		},
		{
			name: "negative amount tolerance",
			setupFlags: func() {
				baseFlags()
				viper.Set("amount-tolerance", -0.5)
			},
			expectError:   true,
			errorContains: "amount tolerance cannot be negative",
		},
		{
			name: "zero max concurrency",
			setupFlags: func() {
				baseFlags()
				viper.Set("max-concurrency", 0)
			},
			expectError:   true,
			errorContains: "max-concurrency must be at least 1",
		},
		{
			name: "negative low units",
			setupFlags: func() {
				baseFlags()
				viper.Set("low-units", -1)
			},
			expectError:   true,
			errorContains: "low-units cannot be negative",
		},
		{
			name: "zero top n",
			setupFlags: func() {
				baseFlags()
				viper.Set("top-n", 0)
			},
			expectError:   true,
			errorContains: "top-n must be at least 1",
		},
		{
			name: "missing output directory",
			setupFlags: func() {
				baseFlags()
				viper.Set("output", "/non/existent/dir/report.txt")
			},
			expectError:   true,
			errorContains: "output directory does not exist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Reset viper
			viper.Reset()
			tt.setupFlags()

			cmd := &cobra.Command{}
			err := validateAnalyzeFlags(cmd, []string{})

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				} else if tt.errorContains != "" && !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("expected error to contain '%s', got: %v", tt.errorContains, err)
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		})
	}
}

func TestValidateAnalyzeFlagsParsesAmountBounds(t *testing.T) {
	tmpDir := t.TempDir()
	feedFile := filepath.Join(tmpDir, "sales.txt")
	if err := os.WriteFile(feedFile, []byte("T1|2024-01-01|West|P1|C1|2|10.00|20.00"), 0644); err != nil {
		t.Fatalf("failed to create feed file: %v", err)
	}

	setFlags := func() {
		viper.Reset()
		viper.Set("input", feedFile)
		viper.Set("max-concurrency", 4)
		viper.Set("top-n", 5)
	}

	setFlags()
	viper.Set("min-amount", "12.50")
	viper.Set("max-amount", "99.99")

	if err := validateAnalyzeFlags(&cobra.Command{}, []string{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if minAmountValue == nil || minAmountValue.String() != "12.5" {
		t.Errorf("expected parsed min amount 12.5, got %v", minAmountValue)
	}
	if maxAmountValue == nil || maxAmountValue.String() != "99.99" {
		t.Errorf("expected parsed max amount 99.99, got %v", maxAmountValue)
	}

	// Re-validating without bounds clears the stored values.
	setFlags()
	if err := validateAnalyzeFlags(&cobra.Command{}, []string{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if minAmountValue != nil || maxAmountValue != nil {
		t.Error("expected amount bounds to reset when flags are unset")
	}
}

func TestAnalyzeCommandFlags(t *testing.T) {
	cmd := analyzeCmd

	for _, name := range []string{"input", "output", "region", "min-amount", "max-amount", "catalog-url", "no-enrich", "amount-tolerance", "max-concurrency", "top-n", "low-units"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("%s flag not found", name)
		}
	}
}
