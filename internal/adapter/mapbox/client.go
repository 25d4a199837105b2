package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/quake-hazard-etl/internal/domain"
	"github.com/couchcryptid/quake-hazard-etl/internal/observability"
)

// Client implements domain.Geocoder using the Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://api.mapbox.com/geocoding/v5/mapbox.places",
		metrics: metrics,
		logger:  logger,
	}
}

// APIError is returned when Mapbox answers with a non-200 status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mapbox API error: status %d: %s", e.StatusCode, e.Body)
}

// ForwardGeocode converts a city name and optional state to coordinates.
func (c *Client) ForwardGeocode(ctx context.Context, name, state string) (domain.GeocodingResult, error) {
	query := name
	if state != "" {
		query = name + ", " + state
	}
	return c.doRequest(ctx, "forward", url.PathEscape(query), url.Values{"types": {"place,locality"}})
}

// ReverseGeocode converts coordinates to place details.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	// Mapbox expects lon,lat.
	return c.doRequest(ctx, "reverse", fmt.Sprintf("%.6f,%.6f", lon, lat), url.Values{})
}

// endpoint builds the request URL for a search term, adding the token and
// the single-result limit shared by both lookups.
func (c *Client) endpoint(term string, params url.Values) string {
	params.Set("access_token", c.token)
	params.Set("limit", "1")
	return c.baseURL + "/" + term + ".json?" + params.Encode()
}

func (c *Client) doRequest(ctx context.Context, method, term string, params url.Values) (domain.GeocodingResult, error) {
	start := time.Now()
	result, err := c.fetch(ctx, method, c.endpoint(term, params))
	c.metrics.GeocodeAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	c.metrics.GeocodeRequests.WithLabelValues(method, outcome(result, err)).Inc()

	if err != nil {
		c.logger.Debug("mapbox request failed", "method", method, "error", err)
	}
	return result, err
}

func outcome(result domain.GeocodingResult, err error) string {
	switch {
	case err != nil:
		return "error"
	case !result.Found():
		return "empty"
	default:
		return "success"
	}
}

func (c *Client) fetch(ctx context.Context, method, fullURL string) (domain.GeocodingResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("%s geocode request: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return domain.GeocodingResult{}, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("decode response: %w", err)
	}
	if len(payload.Features) == 0 {
		return domain.GeocodingResult{}, nil
	}
	return payload.Features[0].result(), nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	Relevance float64   `json:"relevance"`
}

func (f feature) result() domain.GeocodingResult {
	result := domain.GeocodingResult{
		FormattedAddress: f.PlaceName,
		PlaceName:        f.Text,
		Confidence:       f.Relevance,
	}
	if len(f.Center) == 2 {
		result.Lon, result.Lat = f.Center[0], f.Center[1]
	}
	return result
}
