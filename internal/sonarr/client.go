package sonarr

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultTimeout = 120 * time.Second
	//nolint:gosec // header name constant, not a credential
	apiKeyHeader = "X-Api-Key"
	userAgent    = "Seekarr/1.0 (https://github.com/seekarr/seekarr)"

	retriesPerPage = 2
	retryDelay     = 3 * time.Second
)

// Client provides HTTP communication with a Sonarr server (API v3).
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zerolog.Logger

	// Overridable in tests to avoid real sleeps.
	pageRetryDelay time.Duration
}

// ClientConfig contains configuration for creating a new Sonarr client.
type ClientConfig struct {
	URL           string
	APIKey        string
	Timeout       int // seconds
	SkipSSLVerify bool
	Logger        *zerolog.Logger
}

// NewClient creates a new Sonarr HTTP client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("sonarr URL is required")
	}
	if !strings.HasPrefix(cfg.URL, "http://") && !strings.HasPrefix(cfg.URL, "https://") {
		return nil, fmt.Errorf("invalid sonarr URL %q: must start with http:// or https://", cfg.URL)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("sonarr API key is required")
	}

	baseURL := strings.TrimSuffix(cfg.URL, "/")

	timeout := defaultTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	transport := &http.Transport{}
	if cfg.SkipSSLVerify {
		//nolint:gosec // admin-configured endpoint, TLS verification optional
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	logger := cfg.Logger.With().
		Str("component", "sonarr-client").
		Str("url", baseURL).
		Logger()

	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger:         &logger,
		pageRetryDelay: retryDelay,
	}, nil
}

// do executes an HTTP request against an /api/v3 path with the API key and
// client identification headers.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	reqURL := c.baseURL + "/api/v3/" + strings.TrimPrefix(path, "/")

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Msg("executing request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).
			Str("method", method).
			Str("path", path).
			Msg("request failed")
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}

// doJSON executes an HTTP request, optionally with a JSON body, and decodes
// the JSON response into result.
func (c *Client) doJSON(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	resp, err := c.do(ctx, method, path, reader)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error().
			Int("status", resp.StatusCode).
			Str("path", path).
			Str("body", string(bodyBytes)).
			Msg("request returned error status")
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if result != nil {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		if len(data) == 0 {
			return fmt.Errorf("empty response body from %s", path)
		}
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}

	return nil
}

// get is shorthand for a GET request decoded into result.
func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, result)
}

// SystemStatus fetches the Sonarr system status.
func (c *Client) SystemStatus(ctx context.Context) (*SystemStatus, error) {
	var status SystemStatus
	if err := c.get(ctx, "system/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// CheckConnection verifies connectivity by fetching system status.
func (c *Client) CheckConnection(ctx context.Context) error {
	status, err := c.SystemStatus(ctx)
	if err != nil {
		return fmt.Errorf("connection check failed: %w", err)
	}
	if status.Version == "" {
		return fmt.Errorf("connection check returned no version")
	}

	c.logger.Debug().
		Str("version", status.Version).
		Msg("connection check successful")

	return nil
}

// Series fetches the full series list.
func (c *Client) Series(ctx context.Context) ([]Series, error) {
	var series []Series
	if err := c.get(ctx, "series", &series); err != nil {
		return nil, err
	}
	return series, nil
}

// SeriesByID fetches one series.
func (c *Client) SeriesByID(ctx context.Context, seriesID int64) (*Series, error) {
	var series Series
	if err := c.get(ctx, fmt.Sprintf("series/%d", seriesID), &series); err != nil {
		return nil, err
	}
	return &series, nil
}

// Episode fetches one episode by id.
func (c *Client) Episode(ctx context.Context, episodeID int64) (*Episode, error) {
	var episode Episode
	if err := c.get(ctx, fmt.Sprintf("episode/%d", episodeID), &episode); err != nil {
		return nil, err
	}
	return &episode, nil
}

// EpisodesBySeries fetches all episodes of a series.
func (c *Client) EpisodesBySeries(ctx context.Context, seriesID int64) ([]Episode, error) {
	var episodes []Episode
	if err := c.get(ctx, fmt.Sprintf("episode?seriesId=%d", seriesID), &episodes); err != nil {
		return nil, err
	}
	return episodes, nil
}

// QueueSize returns the number of items in the download queue, or -1 when
// the queue could not be fetched.
func (c *Client) QueueSize(ctx context.Context) (int, error) {
	var page queuePage
	if err := c.get(ctx, "queue?page=1&pageSize=1&includeSeries=false", &page); err != nil {
		return -1, err
	}
	return page.TotalRecords, nil
}

// Calendar fetches calendar entries for a date range. Either bound may be
// empty.
func (c *Client) Calendar(ctx context.Context, start, end string) ([]Episode, error) {
	params := url.Values{}
	if start != "" {
		params.Set("start", start)
	}
	if end != "" {
		params.Set("end", end)
	}

	path := "calendar"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var episodes []Episode
	if err := c.get(ctx, path, &episodes); err != nil {
		return nil, err
	}
	return episodes, nil
}

// QualityProfiles fetches the quality profiles configured in Sonarr.
func (c *Client) QualityProfiles(ctx context.Context) ([]QualityProfile, error) {
	var profiles []QualityProfile
	if err := c.get(ctx, "qualityProfile", &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// sleep waits for d or until ctx is cancelled. It reports whether the full
// delay elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
