// Package pixelboard provides a client for the pixelboard canvas server.
package pixelboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"
)

// DefaultURL is used when no base URL is given and PIXELBOARD_URL is unset.
const DefaultURL = "http://localhost:3000"

// Client is a pixelboard API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("PIXELBOARD_URL")
	}
	if baseURL == "" {
		baseURL = DefaultURL
	}

	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration // set on 429
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pixelboard error %d: %s", e.StatusCode, e.Message)
}

// IsCooldown reports whether err is a placement rejected by the cooldown.
func IsCooldown(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests && apiErr.Message == "cooldown"
}

// doRequest performs an HTTP request.
func (c *Client) doRequest(method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequest(method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)

		apiErr := &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
		return nil, apiErr
	}

	return respBody, nil
}

// Pixel is one painted cell.
type Pixel struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Color string `json:"color"`
}

// CanvasConfig describes the canvas.
type CanvasConfig struct {
	Width      int   `json:"width"`
	Height     int   `json:"height"`
	CooldownMs int64 `json:"cooldownMs"`
}

// Config returns the canvas dimensions and cooldown.
func (c *Client) Config() (*CanvasConfig, error) {
	respBody, err := c.doRequest("GET", "/api/config", nil)
	if err != nil {
		return nil, err
	}

	var resp CanvasConfig
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetPixels returns every painted cell.
func (c *Client) GetPixels() ([]Pixel, error) {
	respBody, err := c.doRequest("GET", "/api/pixels", nil)
	if err != nil {
		return nil, err
	}

	var pixels []Pixel
	if err := json.Unmarshal(respBody, &pixels); err != nil {
		return nil, err
	}
	return pixels, nil
}

// Place paints one cell. A cooldown rejection is an *APIError for which
// IsCooldown returns true.
func (c *Client) Place(x, y int, color string) error {
	body, _ := json.Marshal(Pixel{X: x, Y: y, Color: color})
	_, err := c.doRequest("POST", "/api/place", body)
	return err
}

// HealthResponse is the response from the health endpoint.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Instance  string                 `json:"instance,omitempty"`
	Observers int                    `json:"observers"`
	Checks    map[string]interface{} `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// Health checks server health. A degraded server is reported as an *APIError
// with status 503.
func (c *Client) Health() (*HealthResponse, error) {
	respBody, err := c.doRequest("GET", "/health", nil)
	if err != nil {
		return nil, err
	}

	var resp HealthResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
