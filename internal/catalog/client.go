// Package catalog is the HTTP client of the product catalog service.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kicksvault/storefront/internal/config"
	"github.com/kicksvault/storefront/internal/domain"
	apperrors "github.com/kicksvault/storefront/pkg/errors"
)

const serviceName = "catalog service"

type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new catalog client
func NewClient(cfg config.CatalogAPIConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.Token,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// GetProduct fetches the live product, including variant prices and stock
func (c *Client) GetProduct(ctx context.Context, id domain.ProductID) (*domain.Product, error) {
	var product domain.Product
	err := c.get(ctx, "/products/"+url.PathEscape(id.String()), &product)
	if err != nil {
		var upstream *apperrors.ErrUpstream
		if errors.As(err, &upstream) && upstream.StatusCode == http.StatusNotFound {
			return nil, &apperrors.ErrNotFound{Resource: "product", ID: id.String()}
		}
		return nil, err
	}
	if product.ID == "" {
		product.ID = id
	}
	return &product, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Catalog request failed", zap.String("path", path), zap.Error(err))
		return &apperrors.ErrUpstream{Service: serviceName, Err: errors.Wrap(err, "failed to execute request")}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &apperrors.ErrUpstream{Service: serviceName, StatusCode: resp.StatusCode, Err: errors.Wrap(err, "failed to read response")}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode != http.StatusNotFound {
			c.logger.Warn("Catalog returned an error",
				zap.String("path", path),
				zap.Int("status", resp.StatusCode),
			)
		}
		return &apperrors.ErrUpstream{
			Service:    serviceName,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("catalog error: status %d, body: %s", resp.StatusCode, string(body)),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &apperrors.ErrUpstream{Service: serviceName, StatusCode: resp.StatusCode, Err: errors.Wrap(err, "failed to unmarshal response")}
	}
	return nil
}
