package provisioning

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"wisefido-telemetry/internal/models"
)

// DeviceRegistration body posted for a newly paired device
type DeviceRegistration struct {
	DeviceID string           `json:"device_id"`
	Name     string           `json:"name"`
	Category models.Category  `json:"category"`
	Location *models.Location `json:"location,omitempty"`
	PairedAt int64            `json:"paired_at"`
}

// Client registers paired devices with the provisioning backend
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient creates a client for baseURL
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && r.StatusCode() >= http.StatusInternalServerError
		})

	return &Client{
		httpClient: client,
		logger:     logger,
	}
}

// RegisterDevice posts d to /devices; any non-2xx answer is an error
func (c *Client) RegisterDevice(ctx context.Context, d models.Device) error {
	body := DeviceRegistration{
		DeviceID: d.ID,
		Name:     d.Name,
		Category: d.Category,
		Location: d.Location,
		PairedAt: time.Now().UnixMilli(),
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		Post("/devices")
	if err != nil {
		return fmt.Errorf("failed to call provisioning API: %w", err)
	}
	if resp.IsError() {
		c.logger.Warn("Provisioning API returned error",
			zap.String("device_id", d.ID),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("body", resp.String()),
		)
		return fmt.Errorf("provisioning API error: status %d", resp.StatusCode())
	}

	c.logger.Info("Device provisioned", zap.String("device_id", d.ID))
	return nil
}
