// Package nominatim calls the OpenStreetMap Nominatim reverse geocoding API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/quickbite/quickbite-backend/pkg/errors"
)

const (
	DefaultBaseURL             = "https://nominatim.openstreetmap.org"
	defaultUserAgent           = "quickbite-backend/1.0"
	requestBodyReadLimit int64 = 1024
)

// Client issues reverse lookups. Nominatim rejects requests without a User-Agent.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(ua); trimmed != "" {
			c.userAgent = trimmed
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    DefaultBaseURL,
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Place is a normalized reverse geocoding result.
type Place struct {
	Latitude    float64
	Longitude   float64
	DisplayName string
	Road        string
	Area        string
	City        string
	State       string
	Postcode    string
	Country     string
	CountryCode string
}

type reverseResponse struct {
	Lat         string            `json:"lat"`
	Lon         string            `json:"lon"`
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
	Error       string            `json:"error"`
}

// Reverse returns the place at lat/lng.
func (c *Client) Reverse(ctx context.Context, lat, lng float64) (*Place, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "nominatim client not configured")
	}

	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	query.Set("format", "json")
	query.Set("addressdetails", "1")
	endpoint := fmt.Sprintf("%s/reverse?%s", strings.TrimRight(c.baseURL, "/"), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build nominatim request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute nominatim request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, pkgerrors.New(pkgerrors.CodeRateLimit, "nominatim rate limit exceeded")
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "nominatim request failed")
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode nominatim response")
	}
	if body.Error != "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, body.Error)
	}

	parsedLat, _ := strconv.ParseFloat(body.Lat, 64)
	parsedLng, _ := strconv.ParseFloat(body.Lon, 64)
	if body.Lat == "" {
		parsedLat, parsedLng = lat, lng
	}

	return &Place{
		Latitude:    parsedLat,
		Longitude:   parsedLng,
		DisplayName: body.DisplayName,
		Road:        firstOf(body.Address, "road", "pedestrian", "footway"),
		Area:        firstOf(body.Address, "suburb", "neighbourhood", "quarter", "city_district"),
		City:        firstOf(body.Address, "city", "town", "village", "municipality", "locality", "county"),
		State:       firstOf(body.Address, "state", "region", "state_district"),
		Postcode:    body.Address["postcode"],
		Country:     body.Address["country"],
		CountryCode: strings.ToLower(body.Address["country_code"]),
	}, nil
}

func firstOf(address map[string]string, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(address[key]); v != "" {
			return v
		}
	}
	return ""
}
