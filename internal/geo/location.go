// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// =============================================================================
// LOCATION
// =============================================================================

// Location is the approximate user position sent with search requests. Any
// field may be missing; an empty Location adds nothing to a request.
type Location struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Country   string   `json:"country,omitempty"`
}

// HasCoordinates reports whether both coordinates are known.
func (l Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// IsZero reports whether nothing is known.
func (l Location) IsZero() bool {
	return l.Latitude == nil && l.Longitude == nil && l.Country == ""
}

// String formats the location for display.
func (l Location) String() string {
	switch {
	case l.HasCoordinates() && l.Country != "":
		return fmt.Sprintf("%s (%.4f, %.4f)", l.Country, *l.Latitude, *l.Longitude)
	case l.HasCoordinates():
		return fmt.Sprintf("%.4f, %.4f", *l.Latitude, *l.Longitude)
	case l.Country != "":
		return l.Country
	default:
		return "unknown"
	}
}

// At builds a Location from coordinates.
func At(lat, lon float64) Location {
	return Location{Latitude: &lat, Longitude: &lon}
}

// =============================================================================
// DEVICE SOURCE
// =============================================================================

// ErrNoFix means the device cannot provide a position.
var ErrNoFix = errors.New("no device position available")

// DeviceSource provides a position from the local device.
type DeviceSource interface {
	Position(ctx context.Context) (lat, lon float64, err error)
}

// StaticSource returns fixed coordinates. A nil *StaticSource has no fix.
type StaticSource struct {
	Latitude  float64
	Longitude float64
}

// Position returns the configured coordinates.
func (s *StaticSource) Position(context.Context) (float64, float64, error) {
	if s == nil {
		return 0, 0, ErrNoFix
	}
	return s.Latitude, s.Longitude, nil
}

// =============================================================================
// LOCATOR
// =============================================================================

// Default service endpoints.
const (
	DefaultReverseGeocodeURL = "https://api.bigdatacloud.net/data/reverse-geocode-client"
	DefaultTimeout           = 10 * time.Second
)

// Provider is an IP geolocation service returning JSON with latitude and
// longitude fields plus a country name under CountryField.
type Provider struct {
	Name         string
	URL          string
	CountryField string
}

// DefaultProviders are tried in order when no device fix is available.
func DefaultProviders() []Provider {
	return []Provider{
		{Name: "ipapi", URL: "https://ipapi.co/json/", CountryField: "country_name"},
		{Name: "freeipapi", URL: "https://freeipapi.com/api/json", CountryField: "countryName"},
	}
}

// Locator resolves the user's approximate location. It never fails: every
// failure falls through to the next source and finally to an empty Location.
type Locator struct {
	Device            DeviceSource
	ReverseGeocodeURL string
	Providers         []Provider
	HTTPClient        *http.Client
	Log               zerolog.Logger
}

// NewLocator creates a Locator with the default services.
func NewLocator(device DeviceSource, log zerolog.Logger) *Locator {
	return &Locator{
		Device:            device,
		ReverseGeocodeURL: DefaultReverseGeocodeURL,
		Providers:         DefaultProviders(),
		HTTPClient:        &http.Client{Timeout: DefaultTimeout},
		Log:               log,
	}
}

// Locate resolves the location: device fix plus reverse geocoded country,
// else the first IP provider that returns both coordinates, else empty.
func (l *Locator) Locate(ctx context.Context) Location {
	if l.Device != nil {
		lat, lon, err := l.Device.Position(ctx)
		if err == nil {
			loc := At(lat, lon)
			country, err := l.reverseGeocode(ctx, lat, lon)
			if err != nil {
				l.Log.Debug().Err(err).Msg("reverse geocode failed")
				return loc
			}
			loc.Country = country
			return loc
		}
		l.Log.Debug().Err(err).Msg("device position unavailable")
	}

	for _, p := range l.Providers {
		loc, err := l.fromProvider(ctx, p)
		if err == nil {
			return loc
		}
		l.Log.Debug().Err(err).Str("provider", p.Name).Msg("ip location failed")
		if ctx.Err() != nil {
			break
		}
	}
	return Location{}
}

func (l *Locator) reverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	if l.ReverseGeocodeURL == "" {
		return "", errors.New("reverse geocoding disabled")
	}
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("localityLanguage", "en")

	var data map[string]interface{}
	if err := l.getJSON(ctx, l.ReverseGeocodeURL+"?"+q.Encode(), &data); err != nil {
		return "", err
	}
	country, _ := data["countryName"].(string)
	return country, nil
}

func (l *Locator) fromProvider(ctx context.Context, p Provider) (Location, error) {
	var data map[string]interface{}
	if err := l.getJSON(ctx, p.URL, &data); err != nil {
		return Location{}, err
	}

	lat, okLat := number(data["latitude"])
	lon, okLon := number(data["longitude"])
	if !okLat || !okLon || lat == 0 || lon == 0 {
		return Location{}, fmt.Errorf("%s: response has no coordinates", p.Name)
	}

	loc := At(lat, lon)
	if p.CountryField != "" {
		loc.Country, _ = data[p.CountryField].(string)
	}
	return loc, nil
}

func (l *Locator) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	hc := l.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// number accepts JSON numbers and numeric strings.
func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
