package maps

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	pkgerrors "github.com/quickbite/quickbite-backend/pkg/errors"
)

const indoreResponse = `{
  "status": "OK",
  "results": [{
    "formatted_address": "12 MG Road, Indore, Madhya Pradesh 452001, India",
    "geometry": {"location": {"lat": 22.71, "lng": 75.86}},
    "address_components": [
      {"long_name": "MG Road", "short_name": "MG Rd", "types": ["route"]},
      {"long_name": "Rajwada", "short_name": "Rajwada", "types": ["sublocality_level_1", "sublocality"]},
      {"long_name": "Indore", "short_name": "Indore", "types": ["locality", "political"]},
      {"long_name": "Madhya Pradesh", "short_name": "MP", "types": ["administrative_area_level_1"]},
      {"long_name": "India", "short_name": "IN", "types": ["country"]},
      {"long_name": "452001", "short_name": "452001", "types": ["postal_code"]}
    ]
  }]
}`

func TestClientReverseGeocodeRequest(t *testing.T) {
	var capturedURL string

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(indoreResponse)),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient("test-key", WithBaseURL("http://maps.test/api"), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	result, err := client.ReverseGeocode(context.Background(), 22.71, 75.86)
	if err != nil {
		t.Fatalf("reverse geocode: %v", err)
	}
	if !strings.HasPrefix(capturedURL, "http://maps.test/api/geocode/json?") {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if !strings.Contains(capturedURL, "latlng=22.71%2C75.86") || !strings.Contains(capturedURL, "key=test-key") {
		t.Fatalf("missing query params in %q", capturedURL)
	}
	if result.FormattedAddress != "12 MG Road, Indore, Madhya Pradesh 452001, India" {
		t.Fatalf("unexpected address %q", result.FormattedAddress)
	}
	if got := result.Component("locality", "administrative_area_level_2"); got != "Indore" {
		t.Fatalf("unexpected city %q", got)
	}
	if got := result.Component("administrative_area_level_1"); got != "Madhya Pradesh" {
		t.Fatalf("unexpected state %q", got)
	}
	if got := result.Component("premise"); got != "" {
		t.Fatalf("expected empty component, got %q", got)
	}
}

func TestClientReverseGeocodeZeroResults(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"status":"ZERO_RESULTS","results":[]}`)),
			Header:     http.Header{},
		}, nil
	})
	client, _ := NewClient("k", WithHTTPClient(&http.Client{Transport: rt}))

	_, err := client.ReverseGeocode(context.Background(), 0, 0)
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestClientReverseGeocodeDenied(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"status":"REQUEST_DENIED","error_message":"bad key"}`)),
			Header:     http.Header{},
		}, nil
	})
	client, _ := NewClient("k", WithHTTPClient(&http.Client{Transport: rt}))

	_, err := client.ReverseGeocode(context.Background(), 1, 1)
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if !strings.Contains(err.Error(), "bad key") {
		t.Fatalf("expected provider message in error, got %v", err)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient("  "); err == nil {
		t.Fatalf("expected api key error")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
