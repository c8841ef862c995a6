package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultWeatherURL = "https://wttr.in"

type WeatherTool struct {
	Client  *http.Client
	BaseURL string
}

func NewWeatherTool() *WeatherTool {
	return &WeatherTool{
		Client:  &http.Client{Timeout: 10 * time.Second},
		BaseURL: defaultWeatherURL,
	}
}

type wttrReport struct {
	CurrentCondition []struct {
		TempC         string `json:"temp_C"`
		TempF         string `json:"temp_F"`
		FeelsLikeC    string `json:"FeelsLikeC"`
		FeelsLikeF    string `json:"FeelsLikeF"`
		Humidity      string `json:"humidity"`
		WindspeedKmph string `json:"windspeedKmph"`
		WeatherDesc   []struct {
			Value string `json:"value"`
		} `json:"weatherDesc"`
	} `json:"current_condition"`
}

// Current returns the current conditions for a location as reported by wttr.in.
func (w *WeatherTool) Current(ctx context.Context, location string) (map[string]any, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("empty location")
	}

	endpoint := fmt.Sprintf("%s/%s?format=j1", strings.TrimRight(w.BaseURL, "/"), url.PathEscape(location))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}

	resp, err := w.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather lookup failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather lookup failed: status code %d", resp.StatusCode)
	}

	var report wttrReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("invalid weather response: %v", err)
	}
	if len(report.CurrentCondition) == 0 {
		return nil, fmt.Errorf("no current conditions for %q", location)
	}

	cur := report.CurrentCondition[0]
	condition := ""
	if len(cur.WeatherDesc) > 0 {
		condition = strings.TrimSpace(cur.WeatherDesc[0].Value)
	}

	return map[string]any{
		"location":        location,
		"temperature_c":   cur.TempC,
		"temperature_f":   cur.TempF,
		"condition":       condition,
		"feels_like_c":    cur.FeelsLikeC,
		"feels_like_f":    cur.FeelsLikeF,
		"humidity":        cur.Humidity,
		"wind_speed_kmph": cur.WindspeedKmph,
	}, nil
}

func (w *WeatherTool) Capabilities() Set {
	return Set{{
		Name:        "get_weather",
		Description: "Get current weather (temperature, condition, humidity, wind) for a city or place.",
		Params:      []string{"location"},
		Fn: func(ctx context.Context, args []any) (any, error) {
			if err := wantArgs(args, 1, 1); err != nil {
				return nil, err
			}
			loc, err := stringArg(args, 0)
			if err != nil {
				return nil, err
			}
			return w.Current(ctx, loc)
		},
	}}
}
