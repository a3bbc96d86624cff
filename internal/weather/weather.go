// Package weather fetches the current conditions shown alongside the vendor feed. It is strictly best-effort.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultEndpoint = "https://api.open-meteo.com/v1/forecast"
	DefaultTimeout  = 10 * time.Second
)

// Payload is what consumers display. When Available is false the other fields are meaningless.
type Payload struct {
	Available    bool      `json:"available"`
	Description  string    `json:"description"`
	TemperatureC float64   `json:"temperature_c,omitempty"`
	WindKmh      float64   `json:"wind_kmh,omitempty"`
	Code         int       `json:"code,omitempty"`
	FetchedAt    time.Time `json:"fetched_at,omitempty"`
}

// Unavailable is the fixed payload used whenever the weather couldn't be fetched.
var Unavailable = Payload{Available: false, Description: "Weather unavailable"}

type Config struct {
	Endpoint  string
	Latitude  float64
	Longitude float64
	Timeout   time.Duration
	Client    *http.Client
}

type Client struct {
	config Config
	log    *zap.SugaredLogger
}

func New(config Config) *Client {
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Client == nil {
		config.Client = http.DefaultClient
	}
	return &Client{config: config, log: zap.S().Named("weather")}
}

// Current never fails; any error degrades to Unavailable.
func (c *Client) Current(ctx context.Context) Payload {
	p, err := c.Fetch(ctx)
	if err != nil {
		c.log.Warnf("weather unavailable: %v", err)
		return Unavailable
	}
	return p
}

type forecastResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		WeatherCode int     `json:"weather_code"`
		WindSpeed   float64 `json:"wind_speed_10m"`
	} `json:"current"`
}

func (c *Client) Fetch(ctx context.Context) (Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	u, err := url.Parse(c.config.Endpoint)
	if err != nil {
		return Payload{}, err
	}
	q := u.Query()
	q.Set("latitude", strconv.FormatFloat(c.config.Latitude, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(c.config.Longitude, 'f', 4, 64))
	q.Set("current", "temperature_2m,weather_code,wind_speed_10m")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Payload{}, err
	}
	resp, err := c.config.Client.Do(req)
	if err != nil {
		return Payload{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Payload{}, fmt.Errorf("weather endpoint returned %d", resp.StatusCode)
	}
	var body forecastResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return Payload{}, fmt.Errorf("decode weather: %w", err)
	}
	return Payload{
		Available:    true,
		Description:  Describe(body.Current.WeatherCode),
		TemperatureC: body.Current.Temperature,
		WindKmh:      body.Current.WindSpeed,
		Code:         body.Current.WeatherCode,
		FetchedAt:    time.Now(),
	}, nil
}

// Describe maps a WMO weather code to a short description.
func Describe(code int) string {
	switch {
	case code == 0:
		return "Clear sky"
	case code <= 3:
		return "Partly cloudy"
	case code == 45 || code == 48:
		return "Fog"
	case code >= 51 && code <= 57:
		return "Drizzle"
	case code >= 61 && code <= 67:
		return "Rain"
	case code >= 71 && code <= 77:
		return "Snow"
	case code >= 80 && code <= 82:
		return "Rain showers"
	case code == 85 || code == 86:
		return "Snow showers"
	case code >= 95:
		return "Thunderstorm"
	default:
		return "Unknown"
	}
}
