package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// WeatherForecast is the daily snapshot stored next to outfit requests
// and trips.
type WeatherForecast struct {
	TempC         float64 `json:"temp_c"`
	Precipitation float64 `json:"precipitation"`
	Summary       string  `json:"summary"`
}

type WeatherServiceProvider interface {
	GetForecast(ctx context.Context, location string, date time.Time) (*WeatherForecast, error)
}

// OpenMeteoService talks to the free open-meteo.com endpoints, no API key
// needed.
type OpenMeteoService struct {
}

type geocodingResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

type forecastResponse struct {
	Daily struct {
		Time             []string  `json:"time"`
		Temperature2mMax []float64 `json:"temperature_2m_max"`
		Temperature2mMin []float64 `json:"temperature_2m_min"`
		PrecipitationSum []float64 `json:"precipitation_sum"`
	} `json:"daily"`
}

func openMeteoRequest(ctx context.Context, requestURL string, out interface{}) error {
	client := &http.Client{Timeout: 30 * time.Second}
	req, err := http.NewRequestWithContext(ctx, "GET", requestURL, nil)
	if err != nil {
		return err
	}

	res, err := client.Do(req)
	if err != nil {
		fmt.Println("Error calling open-meteo:", err)
		return err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("open-meteo returned status %d: %s", res.StatusCode, string(body))
	}

	return json.Unmarshal(body, out)
}

func summarizeWeather(tempC float64, precipitation float64) string {
	switch {
	case precipitation > 5:
		return "rainy"
	case precipitation > 0.5:
		return "light rain"
	case tempC >= 28:
		return "hot and dry"
	case tempC >= 18:
		return "warm"
	case tempC >= 8:
		return "cool"
	default:
		return "cold"
	}
}

// GetForecast geocodes the location and reads the daily forecast for the
// given date. Dates outside the 16 day horizon come back as an error and
// the caller just skips the snapshot.
func (ws OpenMeteoService) GetForecast(ctx context.Context, location string, date time.Time) (*WeatherForecast, error) {
	geoURL := fmt.Sprintf("https://geocoding-api.open-meteo.com/v1/search?name=%s&count=1", url.QueryEscape(location))
	var geo geocodingResponse
	if err := openMeteoRequest(ctx, geoURL, &geo); err != nil {
		return nil, fmt.Errorf("geocoding failed for %q: %v", location, err)
	}
	if len(geo.Results) == 0 {
		return nil, fmt.Errorf("no geocoding result for %q", location)
	}

	day := date.Format("2006-01-02")
	forecastURL := fmt.Sprintf(
		"https://api.open-meteo.com/v1/forecast?latitude=%v&longitude=%v&daily=temperature_2m_max,temperature_2m_min,precipitation_sum&timezone=auto&start_date=%s&end_date=%s",
		geo.Results[0].Latitude, geo.Results[0].Longitude, day, day,
	)
	var forecast forecastResponse
	if err := openMeteoRequest(ctx, forecastURL, &forecast); err != nil {
		return nil, fmt.Errorf("forecast failed for %q: %v", location, err)
	}
	if len(forecast.Daily.Temperature2mMax) == 0 || len(forecast.Daily.PrecipitationSum) == 0 {
		return nil, fmt.Errorf("no forecast data for %q on %s", location, day)
	}

	tempC := forecast.Daily.Temperature2mMax[0]
	if len(forecast.Daily.Temperature2mMin) > 0 {
		tempC = (forecast.Daily.Temperature2mMax[0] + forecast.Daily.Temperature2mMin[0]) / 2
	}
	precipitation := forecast.Daily.PrecipitationSum[0]

	return &WeatherForecast{
		TempC:         tempC,
		Precipitation: precipitation,
		Summary:       summarizeWeather(tempC, precipitation),
	}, nil
}
