package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/salespipe/salespipe/internal/models"
	"github.com/salespipe/salespipe/pkg/errors"
	"github.com/salespipe/salespipe/pkg/logger"
)

// HTTPConfig holds configuration for the HTTP catalog client
type HTTPConfig struct {
	// BaseURL is the catalog service root, e.g. https://dummyjson.com
	BaseURL string
	// Timeout bounds each HTTP request
	Timeout time.Duration
	// RequestsPerSecond throttles outbound calls
	RequestsPerSecond float64
	// PageSize is the number of products fetched per catalog page
	PageSize int
}

// DefaultHTTPConfig returns a configuration with sensible defaults
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		BaseURL:           "https://dummyjson.com",
		Timeout:           10 * time.Second,
		RequestsPerSecond: 5,
		PageSize:          100,
	}
}

// Validate validates the HTTP client configuration
func (c *HTTPConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	return nil
}

type productPayload struct {
	ID       int     `json:"id"`
	Title    string  `json:"title"`
	Category string  `json:"category"`
	Brand    string  `json:"brand"`
	Rating   float64 `json:"rating"`
}

type productsPage struct {
	Products []productPayload `json:"products"`
	Total    int              `json:"total"`
	Skip     int              `json:"skip"`
	Limit    int              `json:"limit"`
}

// HTTPClient fetches the product catalog over HTTP and serves lookups
// from the loaded snapshot. The catalog is loaded lazily on first
// lookup and cached for the lifetime of the client.
type HTTPClient struct {
	config  *HTTPConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  logger.Logger

	mu      sync.Mutex
	loaded  bool
	loadErr error
	entries map[int]*models.CatalogEntry
}

// NewHTTPClient creates a catalog client with the given configuration
func NewHTTPClient(config *HTTPConfig) (*HTTPClient, error) {
	if config == nil {
		config = DefaultHTTPConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "catalog", config.BaseURL, err)
	}

	return &HTTPClient{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
		logger:  logger.GetGlobalLogger().WithComponent("catalog"),
	}, nil
}

// Get returns the catalog entry for a feed product ID. Product IDs
// carry a numeric part (P<digits>) that maps onto upstream catalog IDs.
func (c *HTTPClient) Get(ctx context.Context, productID string) (*models.CatalogEntry, error) {
	numericID, ok := models.ProductNumericID(productID)
	if !ok {
		return nil, ErrNotFound
	}

	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	entry, ok := c.entries[numericID]
	c.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	// Re-key under the feed's product ID so the entry carries the
	// identifier the caller asked about.
	return &models.CatalogEntry{
		ProductID: productID,
		Title:     entry.Title,
		Category:  entry.Category,
		Brand:     entry.Brand,
		Rating:    entry.Rating,
	}, nil
}

func (c *HTTPClient) ensureLoaded(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return c.loadErr
	}

	entries, err := c.fetchAll(ctx)
	c.loaded = true
	if err != nil {
		c.loadErr = errors.EnrichmentError(errors.CodeCatalogUnloaded, "", err)
		return c.loadErr
	}

	c.entries = entries
	c.logger.WithField("products", len(entries)).Info("Loaded product catalog")
	return nil
}

func (c *HTTPClient) fetchAll(ctx context.Context) (map[int]*models.CatalogEntry, error) {
	entries := make(map[int]*models.CatalogEntry)

	skip := 0
	for {
		page, err := c.fetchPage(ctx, skip)
		if err != nil {
			return nil, err
		}
		for _, p := range page.Products {
			entries[p.ID] = &models.CatalogEntry{
				ProductID: fmt.Sprintf("P%d", p.ID),
				Title:     p.Title,
				Category:  p.Category,
				Brand:     p.Brand,
				Rating:    decimal.NewFromFloat(p.Rating),
			}
		}

		skip += len(page.Products)
		if len(page.Products) == 0 || skip >= page.Total {
			return entries, nil
		}
	}
}

func (c *HTTPClient) fetchPage(ctx context.Context, skip int) (*productsPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/products?limit=%d&skip=%d", c.config.BaseURL, c.config.PageSize, skip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.InternalError(errors.CodeUnexpectedError, "building catalog request", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.WithFields(logger.Fields{"url": url, "skip": skip}).Debug("Fetching catalog page")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.NetworkError(errors.CodeConnectionFailed, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NetworkError(errors.CodeServiceUnavailable, url,
			fmt.Errorf("catalog service returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NetworkError(errors.CodeConnectionFailed, url, err)
	}

	var page productsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, url, 0, "body", "", err)
	}
	return &page, nil
}
