package hubapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/signware/hubsync/internal/models"
)

// APIError is a non-2xx response decoded from the {"error": ...} body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hub api: %d %s", e.StatusCode, e.Message)
}

// Client talks the hub sync wire contract to the service tier. Every call
// is bounded by the underlying client timeout so no caller can block
// forever holding the sync lock.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	logger     zerolog.Logger
}

// NewClient creates a Client with a finite request timeout.
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// SetToken installs the hub api token used on authenticated calls.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Register submits POST /register and returns the created hub record,
// including the one-time api token.
func (c *Client) Register(req models.HubRegistration) (*models.Hub, error) {
	var h models.Hub
	if err := c.doJSON(http.MethodPost, "/register", req, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// GetManifest fetches the versioned playlist manifest for this hub.
func (c *Client) GetManifest(hubIDOrCode string) (*models.Manifest, error) {
	var m models.Manifest
	path := fmt.Sprintf("/hubs/%s/playlists", hubIDOrCode)
	if err := c.doJSON(http.MethodGet, path, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// SendHeartbeats flushes a device status batch upstream.
func (c *Client) SendHeartbeats(hubID string, batch models.HeartbeatBatch) (*models.HeartbeatResult, error) {
	var res models.HeartbeatResult
	path := fmt.Sprintf("/hubs/%s/heartbeats", hubID)
	if err := c.doJSON(http.MethodPost, path, batch, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Ping probes service reachability; used by the network monitor.
func (c *Client) Ping() error {
	return c.doJSON(http.MethodGet, "/healthz", nil, nil)
}

// ContentURL builds the download URL for one content id.
func (c *Client) ContentURL(contentID string) string {
	return fmt.Sprintf("%s/content/%s/file", c.baseURL, contentID)
}

// DownloadToFile streams a content URL to outputPath, creating parent
// directories as needed. Callers own temp-path placement and renames.
func (c *Client) DownloadToFile(url, outputPath string) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: readErrorBody(resp.Body)}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", outputPath, err)
	}

	outFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", outputPath, err)
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, resp.Body); err != nil {
		return fmt.Errorf("failed to write file content to %s: %w", outputPath, err)
	}
	return nil
}

// doJSON performs one JSON round trip, decoding the response into out when
// out is non-nil.
func (c *Client) doJSON(method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to serialize request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: readErrorBody(resp.Body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func readErrorBody(r io.Reader) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil || body.Error == "" {
		return "request failed"
	}
	return body.Error
}
