package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"finlink/src/helpers"
	"finlink/src/logger"
	"finlink/src/models"
)

type Manager struct {
	Config *models.MConfig
	Client *http.Client
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewManager(cfg *models.MConfig, log *logger.Logger) *Manager {
	nm := &Manager{
		Config: cfg,
		Logger: log,
	}
	nm.Client = nm.createClient()
	return nm
}

// -----------------------------------------------------------------------------

func (nm *Manager) createClient() *http.Client {
	return &http.Client{
		Timeout: time.Duration(nm.Config.API.RequestTimeout) * time.Second,
	}
}

// -----------------------------------------------------------------------------

// NewRequest builds a request with the configured headers. The streaming
// path uses it directly and owns the response body.
func (nm *Manager) NewRequest(ctx context.Context, method, url string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if nm.Config.API.UserAgent != "" {
		req.Header.Set("User-Agent", nm.Config.API.UserAgent)
	}
	return req, nil
}

// -----------------------------------------------------------------------------

// StreamClient returns a client without a global timeout, for requests whose
// body is read incrementally. Cancellation comes from the request context.
func (nm *Manager) StreamClient() *http.Client {
	return &http.Client{}
}

// -----------------------------------------------------------------------------

// PostJSON sends a JSON payload and decodes the JSON response into out
// (skipped when out is nil).
func (nm *Manager) PostJSON(ctx context.Context, url string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return helpers.NewProtocolError("failed to encode request body", err)
	}

	req, err := nm.NewRequest(ctx, http.MethodPost, url, body)
	if err != nil {
		return err
	}

	return nm.do(req, out)
}

// -----------------------------------------------------------------------------

// GetJSON fetches a URL and decodes the JSON response into out.
func (nm *Manager) GetJSON(ctx context.Context, url string, out interface{}) error {
	req, err := nm.NewRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	return nm.do(req, out)
}

// -----------------------------------------------------------------------------

func (nm *Manager) do(req *http.Request, out interface{}) error {
	resp, err := nm.Client.Do(req)
	if err != nil {
		return helpers.NewTransportError("request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused
		io.Copy(io.Discard, resp.Body)
		return helpers.NewTransportError(fmt.Sprintf("bad status: %d", resp.StatusCode), nil)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return helpers.NewProtocolError("failed to decode response body", err)
	}
	return nil
}
