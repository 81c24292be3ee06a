// Package yandex is a client for the Yandex Maps HTTP geocoder.
package yandex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/dispatch/internal/config"
	"github.com/smallbiznis/dispatch/internal/geocode/domain"
)

const (
	defaultBaseURL = "https://geocode-maps.yandex.ru"
	defaultTimeout = 5 * time.Second
	maxErrorBody   = 512
)

var ErrMissingAPIKey = errors.New("geocoder_api_key_missing")

type geocodeResponse struct {
	Response struct {
		GeoObjectCollection struct {
			FeatureMember []struct {
				GeoObject struct {
					Point struct {
						Pos string `json:"pos"`
					} `json:"Point"`
				} `json:"GeoObject"`
			} `json:"featureMember"`
		} `json:"GeoObjectCollection"`
	} `json:"response"`
}

type errorResponse struct {
	Message string `json:"message"`
}

type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// New builds a client from explicit geocoder settings.
func New(cfg config.GeocoderConfig) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func Provide(cfg config.Config) domain.Provider {
	return New(cfg.Geocoder)
}

// Geocode returns the position of the first candidate the geocoder ranks
// for address.
func (c *Client) Geocode(ctx context.Context, address string) (domain.Coordinate, error) {
	if c.apiKey == "" {
		return domain.Coordinate{}, ErrMissingAPIKey
	}

	values := url.Values{}
	values.Set("geocode", address)
	values.Set("apikey", c.apiKey)
	values.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/1.x?"+values.Encode(), nil)
	if err != nil {
		return domain.Coordinate{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Coordinate{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return domain.Coordinate{}, statusError(resp)
	}

	var payload geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.Coordinate{}, fmt.Errorf("decode geocoder response: %w", err)
	}

	members := payload.Response.GeoObjectCollection.FeatureMember
	if len(members) == 0 {
		return domain.Coordinate{}, domain.ErrNoCandidates
	}
	return ParsePos(members[0].GeoObject.Point.Pos)
}

// ParsePos parses a "<lon> <lat>" position string.
func ParsePos(pos string) (domain.Coordinate, error) {
	fields := strings.Fields(pos)
	if len(fields) != 2 {
		return domain.Coordinate{}, fmt.Errorf("invalid position %q", pos)
	}
	lon, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("invalid longitude %q: %w", fields[0], err)
	}
	lat, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("invalid latitude %q: %w", fields[1], err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return domain.Coordinate{}, fmt.Errorf("position %q out of range", pos)
	}
	return domain.Coordinate{Lat: lat, Lon: lon}, nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	message := strings.TrimSpace(string(body))

	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && strings.TrimSpace(parsed.Message) != "" {
		message = strings.TrimSpace(parsed.Message)
	}
	return &domain.StatusError{StatusCode: resp.StatusCode, Body: message}
}
