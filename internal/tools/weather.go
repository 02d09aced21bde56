package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultGeocodingURL = "https://api.openweathermap.org/geo/1.0/direct"
	defaultOneCallURL   = "https://api.openweathermap.org/data/3.0/onecall"
)

// ErrLocationNotFound is returned when a location cannot be geocoded.
var ErrLocationNotFound = errors.New("tools: location not found") //nolint:gochecknoglobals // sentinel error

// Weather looks up current conditions via the OpenWeatherMap APIs:
// geocoding first, then the One Call endpoint for the coordinates.
type Weather struct {
	apiKey       string
	geocodingURL string
	oneCallURL   string
	client       *http.Client
}

func NewWeather(apiKey string) *Weather {
	return newWeather(apiKey, defaultGeocodingURL, defaultOneCallURL, &http.Client{Timeout: 10 * time.Second})
}

func newWeather(apiKey, geocodingURL, oneCallURL string, client *http.Client) *Weather {
	return &Weather{
		apiKey:       apiKey,
		geocodingURL: geocodingURL,
		oneCallURL:   oneCallURL,
		client:       client,
	}
}

func (w *Weather) Name() string { return "weather" }

func (w *Weather) Description() string {
	return "Get current weather for a location, e.g. \"Denver, Colorado\" or \"London, UK\"."
}

func (w *Weather) Run(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		Location string `json:"location"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("tools.Weather.Run: decoding input: %w", err)
	}
	if args.Location == "" {
		return "", fmt.Errorf("tools.Weather.Run: location is required")
	}

	lat, lon, err := w.geocode(ctx, args.Location)
	if err != nil {
		return "", fmt.Errorf("tools.Weather.Run: %w", err)
	}

	report, err := w.current(ctx, args.Location, lat, lon)
	if err != nil {
		return "", fmt.Errorf("tools.Weather.Run: %w", err)
	}

	out, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("tools.Weather.Run: %w", err)
	}
	return string(out), nil
}

// geocode resolves a location name to coordinates. Voice input often arrives
// as "Denver Colorado" instead of "Denver, Colorado", so a comma-inserted
// variant is tried when the first lookup misses.
func (w *Weather) geocode(ctx context.Context, location string) (lat, lon float64, err error) {
	variants := []string{location}
	if !strings.Contains(location, ",") && strings.Contains(location, " ") {
		parts := strings.Fields(location)
		if len(parts) >= 2 {
			variants = append(variants, parts[0]+", "+strings.Join(parts[1:], " "))
		}
	}

	for _, variant := range variants {
		q := url.Values{
			"q":     {variant},
			"limit": {"1"},
			"appid": {w.apiKey},
		}

		var results []struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		}
		status, err := w.getJSON(ctx, w.geocodingURL+"?"+q.Encode(), &results)
		if err != nil {
			continue
		}
		if status == http.StatusUnauthorized {
			// API key problem, not a location format problem.
			return 0, 0, errors.New("weather API key rejected")
		}
		if status != http.StatusOK || len(results) == 0 {
			continue
		}

		return results[0].Lat, results[0].Lon, nil
	}

	return 0, 0, fmt.Errorf("%w: %q", ErrLocationNotFound, location)
}

// Report is the weather summary returned to the model.
type Report struct {
	Location    string  `json:"location"`
	Temperature float64 `json:"temperature"`
	FeelsLike   float64 `json:"feels_like"`
	Humidity    int     `json:"humidity"`
	Description string  `json:"description"`
	WindSpeed   float64 `json:"wind_speed"`
}

func (w *Weather) current(ctx context.Context, location string, lat, lon float64) (*Report, error) {
	q := url.Values{
		"lat":     {fmt.Sprintf("%.4f", lat)},
		"lon":     {fmt.Sprintf("%.4f", lon)},
		"units":   {"metric"},
		"exclude": {"minutely,hourly,daily,alerts"},
		"appid":   {w.apiKey},
	}

	var payload struct {
		Current struct {
			Temp      float64 `json:"temp"`
			FeelsLike float64 `json:"feels_like"`
			Humidity  int     `json:"humidity"`
			WindSpeed float64 `json:"wind_speed"`
			Weather   []struct {
				Description string `json:"description"`
			} `json:"weather"`
		} `json:"current"`
	}
	status, err := w.getJSON(ctx, w.oneCallURL+"?"+q.Encode(), &payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("weather API returned %d", status)
	}

	report := &Report{
		Location:    location,
		Temperature: payload.Current.Temp,
		FeelsLike:   payload.Current.FeelsLike,
		Humidity:    payload.Current.Humidity,
		WindSpeed:   payload.Current.WindSpeed,
	}
	if len(payload.Current.Weather) > 0 {
		report.Description = payload.Current.Weather[0].Description
	}
	return report, nil
}

func (w *Weather) getJSON(ctx context.Context, rawURL string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, err
	}
	return resp.StatusCode, nil
}
