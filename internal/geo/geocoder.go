package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/taxi-dispatch/internal/models"
)

// Geocoder resolves free-text addresses to coordinates.
type Geocoder interface {
	Forward(ctx context.Context, address string) (models.Coordinate, error)
}

// ForwardGeocoder queries a positionstack-compatible forward geocoding API
// (GET {endpoint}/v1/forward?access_key=...&query=...) and returns the top
// prediction.
type ForwardGeocoder struct {
	Endpoint  string
	AccessKey string
	Client    *http.Client
}

func NewForwardGeocoder(endpoint, accessKey string, timeout time.Duration) *ForwardGeocoder {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &ForwardGeocoder{Endpoint: endpoint, AccessKey: accessKey, Client: &http.Client{Timeout: timeout}}
}

func (g *ForwardGeocoder) Forward(ctx context.Context, address string) (models.Coordinate, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return models.Coordinate{}, fmt.Errorf("empty address: %w", models.ErrInvalidInput)
	}
	q := url.Values{}
	q.Set("access_key", g.AccessKey)
	q.Set("query", address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.Endpoint+"/v1/forward?"+q.Encode(), nil)
	if err != nil {
		return models.Coordinate{}, err
	}
	resp, err := g.Client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return models.Coordinate{}, fmt.Errorf("geocode %q: %w", address, models.ErrGeocodingTimeout)
		}
		return models.Coordinate{}, fmt.Errorf("geocode %q: %w", address, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.Coordinate{}, fmt.Errorf("geocode %q: status %d", address, resp.StatusCode)
	}
	var out struct {
		Data []struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.Coordinate{}, fmt.Errorf("geocode %q: %w", address, err)
	}
	if len(out.Data) == 0 {
		return models.Coordinate{}, fmt.Errorf("geocode %q: %w", address, models.ErrAddressNotFound)
	}
	return models.Coordinate{Lat: out.Data[0].Latitude, Lon: out.Data[0].Longitude}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
