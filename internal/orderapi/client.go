// Package orderapi is the HTTP client of the order-placement service.
package orderapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kicksvault/storefront/internal/config"
	"github.com/kicksvault/storefront/internal/domain"
	apperrors "github.com/kicksvault/storefront/pkg/errors"
)

const serviceName = "order service"

type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new order service client
func NewClient(cfg config.OrderAPIConfig, logger *zap.Logger) *Client {
	// Normalize base URL - remove trailing slashes
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		token:   cfg.Token,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// CreateOrder submits an order. The request id is sent as Idempotency-Key so
// a retried submission cannot create a second order.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error) {
	var order domain.Order
	headers := map[string]string{"Idempotency-Key": req.RequestID.String()}
	if err := c.do(ctx, http.MethodPost, "/orders", req, headers, &order); err != nil {
		return nil, asPlacement(err)
	}
	return &order, nil
}

// CancelOrder asks the service to cancel an order
func (c *Client) CancelOrder(ctx context.Context, orderID uuid.UUID, reason string) error {
	path := fmt.Sprintf("/orders/%s/cancel", orderID)
	if err := c.do(ctx, http.MethodPut, path, CancelOrderRequest{CancelReason: reason}, nil, nil); err != nil {
		return orderNotFound(err, orderID)
	}
	return nil
}

// GetOrder fetches an order
func (c *Client) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	var order domain.Order
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/orders/%s", orderID), nil, nil, &order); err != nil {
		return nil, orderNotFound(err, orderID)
	}
	return &order, nil
}

// asPlacement reports a failed create as an order placement error
func asPlacement(err error) error {
	var upstream *apperrors.ErrUpstream
	if errors.As(err, &upstream) {
		return &apperrors.ErrOrderPlacement{
			StatusCode:    upstream.StatusCode,
			ServerMessage: upstream.ServerMessage,
			Err:           upstream.Err,
		}
	}
	return err
}

// orderNotFound maps an upstream 404 onto ErrNotFound
func orderNotFound(err error, orderID uuid.UUID) error {
	var upstream *apperrors.ErrUpstream
	if errors.As(err, &upstream) && upstream.StatusCode == http.StatusNotFound {
		return &apperrors.ErrNotFound{Resource: "order", ID: orderID.String()}
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, headers map[string]string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request")
		}
		reader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Order service request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return &apperrors.ErrUpstream{Service: serviceName, Err: errors.Wrap(err, "failed to execute request")}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &apperrors.ErrUpstream{Service: serviceName, StatusCode: resp.StatusCode, Err: errors.Wrap(err, "failed to read response")}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp errorResponse
		_ = json.Unmarshal(respBody, &errResp)
		message := errResp.Message
		if message == "" {
			message = errResp.Error
		}
		c.logger.Warn("Order service returned an error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", message),
		)
		return &apperrors.ErrUpstream{
			Service:       serviceName,
			StatusCode:    resp.StatusCode,
			ServerMessage: message,
			Err:           errors.Errorf("order service error: status %d, body: %s", resp.StatusCode, string(respBody)),
		}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &apperrors.ErrUpstream{Service: serviceName, StatusCode: resp.StatusCode, Err: errors.Wrap(err, "failed to unmarshal response")}
	}
	return nil
}
