package tools

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Weather is a canned forecast lookup. It stands in for a real weather API
// and answers within half a second.
type Weather struct {
	// Latency simulates the upstream API round trip. Zero means the
	// default of 500ms; tests set it to something tiny.
	Latency time.Duration
}

var _ Tool = (*Weather)(nil)

type forecast struct {
	weather  string
	temp     string
	humidity string
}

var cityForecasts = map[string]forecast{
	"tokyo":   {"sunny", "25", "60"},
	"osaka":   {"cloudy", "23", "65"},
	"sapporo": {"rainy", "18", "75"},
	"fukuoka": {"sunny", "26", "55"},
}

var defaultForecast = forecast{"sunny then cloudy", "24", "62"}

func (w *Weather) Name() string {
	return "get_weather"
}

func (w *Weather) Description() string {
	return "Returns the weather forecast for a location. Use this whenever the user asks about the weather."
}

func (w *Weather) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"location": map[string]any{
				"type":        "string",
				"description": "Name of the location to look up (e.g. Tokyo, Osaka, Sapporo)",
			},
			"date": map[string]any{
				"type":        "string",
				"description": "Date to look up (e.g. today, tomorrow, 2025-10-05). Defaults to today.",
			},
		},
		"required": []string{"location"},
	}
}

func (w *Weather) Call(ctx context.Context, args map[string]any) (any, error) {
	location, _ := args["location"].(string)
	date, _ := args["date"].(string)
	if date == "" {
		date = "today"
	}

	latency := w.Latency
	if latency == 0 {
		latency = 500 * time.Millisecond
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(latency):
	}

	fc, ok := cityForecasts[strings.ToLower(strings.TrimSpace(location))]
	if !ok {
		fc = defaultForecast
	}
	return map[string]any{
		"location":    location,
		"date":        date,
		"weather":     fc.weather,
		"temperature": fc.temp,
		"humidity":    fc.humidity,
		"forecast": fmt.Sprintf(
			"The forecast for %s on %s is %s, %s degrees, %s%% humidity.",
			location, date, fc.weather, fc.temp, fc.humidity,
		),
	}, nil
}
