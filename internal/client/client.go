package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ichiro17/CwaWeather-backend/internal/observability"
)

// WeatherClient fetches the raw 36-hour forecast document for a location.
type WeatherClient interface {
	GetForecast(ctx context.Context, locationName string) (CWAResponse, error)
}

var (
	ErrMissingAPIKey     = errors.New("weather API key not configured")
	ErrInvalidAPIKey     = errors.New("invalid API key")
	ErrRateLimited       = errors.New("rate limited by upstream")
	ErrUpstreamTimeout   = errors.New("upstream timeout")
	ErrMalformedResponse = errors.New("malformed upstream response")
)

// UpstreamStatusError carries a non-2xx upstream status that has no more
// specific classification; the handler passes the code through.
type UpstreamStatusError struct {
	Code int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream returned HTTP %d", e.Code)
}

// CWAResponse mirrors the F-C0032-001 open-data document shape.
type CWAResponse struct {
	Records struct {
		DatasetDescription string     `json:"datasetDescription"`
		Location           []Location `json:"location"`
	} `json:"records"`
}

// Location is one city record with its ordered weather elements.
type Location struct {
	LocationName   string           `json:"locationName"`
	WeatherElement []WeatherElement `json:"weatherElement"`
}

// WeatherElement is one coded time series (Wx, PoP, MinT, MaxT, CI, WS).
type WeatherElement struct {
	ElementName string        `json:"elementName"`
	Time        []ElementTime `json:"time"`
}

// ElementTime is one slot of an element's time series.
type ElementTime struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Parameter struct {
		ParameterName string `json:"parameterName"`
		ParameterUnit string `json:"parameterUnit"`
	} `json:"parameter"`
}

// CWAClient calls the Central Weather Administration open-data API.
type CWAClient struct {
	apiKey  string
	apiURL  string
	timeout time.Duration
	client  *http.Client
}

// NewCWAClient creates a client for the given base URL and credential. An
// empty apiKey is allowed here; GetForecast reports ErrMissingAPIKey per
// call so cache hits keep working on a misconfigured deployment.
func NewCWAClient(apiKey, apiURL string, timeout time.Duration) *CWAClient {
	return &CWAClient{
		apiKey:  apiKey,
		apiURL:  apiURL,
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetForecast performs one upstream call. No retries: a failure is mapped
// to the error taxonomy and returned as-is.
func (c *CWAClient) GetForecast(ctx context.Context, locationName string) (CWAResponse, error) {
	if c.apiKey == "" {
		return CWAResponse{}, ErrMissingAPIKey
	}

	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, locationName)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		return CWAResponse{}, fmt.Errorf("build request: %w", err)
	}

	corrID := extractCorrelationID(ctx)
	if corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIDuration.WithLabelValues("error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) {
			return CWAResponse{}, fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
		}
		var ue *url.Error
		if errors.As(err, &ue) && ue.Timeout() {
			return CWAResponse{}, fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
		}
		return CWAResponse{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(duration)

	if err := c.handleErrorResponse(resp); err != nil {
		return CWAResponse{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return CWAResponse{}, fmt.Errorf("read response body: %w", err)
	}

	var apiResp CWAResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return CWAResponse{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return apiResp, nil
}

func (c *CWAClient) buildRequest(ctx context.Context, locationName string) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("Authorization", c.apiKey)
	params.Set("locationName", locationName)
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *CWAClient) handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrInvalidAPIKey, resp.StatusCode)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UpstreamStatusError{Code: resp.StatusCode}
	}

	return nil
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
