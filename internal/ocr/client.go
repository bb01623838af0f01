// Package ocr talks to the receipt extraction service over HTTP.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"tresor/internal/receipt"
)

// Client calls the extraction service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config holds configuration for the OCR client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a client for the extraction service. Extraction on
// a phone photo can take a while, so the default timeout is generous.
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = 120 * time.Second
	}
	return &Client{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// ProcessTicket uploads a receipt image and returns the detected line
// items or flat fields.
func (c *Client) ProcessTicket(ctx context.Context, filename, contentType string, image io.Reader) (receipt.Detection, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return receipt.Detection{}, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return receipt.Detection{}, fmt.Errorf("failed to read image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return receipt.Detection{}, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	url := fmt.Sprintf("%s/ocr/process-ticket", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return receipt.Detection{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return receipt.Detection{}, fmt.Errorf("failed to call extraction service: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return receipt.Detection{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return receipt.Detection{}, fmt.Errorf("extraction service error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var det receipt.Detection
	if err := json.Unmarshal(respBody, &det); err != nil {
		return receipt.Detection{}, fmt.Errorf("failed to parse response: %w", err)
	}
	return det, nil
}

// HealthCheck checks if the extraction service is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	url := fmt.Sprintf("%s/health", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("health check failed (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}
