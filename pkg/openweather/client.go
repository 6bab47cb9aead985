// Package openweather fetches the OpenWeather 5 day / 3 hour forecast and
// rolls it up into daily rows.
package openweather

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kheti-labs/irrigation-advisor/internal/model"
	"github.com/kheti-labs/irrigation-advisor/internal/resilience"
)

const (
	defaultBaseURL = "https://api.openweathermap.org/data/2.5"

	// The free forecast endpoint returns at most 40 three-hour slots.
	slotsPerDay = 8
	maxSlots    = 40

	// Confidence assigned to every aggregated day.
	DailyConfidence = 0.8
)

// Client fetches forecasts.
type Client interface {
	// Forecast returns up to days daily rows in ascending date order. It
	// returns (nil, nil) when no API key is configured.
	Forecast(ctx context.Context, loc model.Location, days int) ([]model.WeatherDayForecast, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithGuard wraps every request in retries and a circuit breaker.
func WithGuard(g resilience.Guard) Option {
	return func(c *httpClient) {
		c.guard = g
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	guard   resilience.Guard
}

// NewClient creates an OpenWeather client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ForecastResponse is the subset of the /forecast body the client reads.
type ForecastResponse struct {
	List []Slot `json:"list"`
	City City   `json:"city"`
}

// City carries the forecast location. Timezone is seconds east of UTC.
type City struct {
	Name     string `json:"name"`
	Timezone int    `json:"timezone"`
}

// Slot is one three-hour forecast entry.
type Slot struct {
	Dt    int64    `json:"dt"`
	DtTxt string   `json:"dt_txt"`
	Main  SlotMain `json:"main"`
	Rain  SlotRain `json:"rain"`
	Wind  SlotWind `json:"wind"`
}

type SlotMain struct {
	Temp     float64 `json:"temp"`
	TempMin  float64 `json:"temp_min"`
	TempMax  float64 `json:"temp_max"`
	Humidity float64 `json:"humidity"`
}

type SlotRain struct {
	ThreeHour float64 `json:"3h"`
}

type SlotWind struct {
	Speed float64 `json:"speed"`
}

func (c *httpClient) Forecast(ctx context.Context, loc model.Location, days int) ([]model.WeatherDayForecast, error) {
	if c.apiKey == "" {
		zap.L().Debug("openweather: no api key configured, skipping forecast")
		return nil, nil
	}
	if days <= 0 {
		return nil, nil
	}

	params := url.Values{}
	if name := strings.TrimSpace(loc.Name); name != "" {
		params.Set("q", name)
	} else {
		params.Set("lat", strconv.FormatFloat(loc.Latitude, 'f', 4, 64))
		params.Set("lon", strconv.FormatFloat(loc.Longitude, 'f', 4, 64))
	}
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	params.Set("cnt", strconv.Itoa(min(days*slotsPerDay, maxSlots)))
	reqURL := c.baseURL + "/forecast?" + params.Encode()

	resp, err := resilience.Call(ctx, c.guard, func(ctx context.Context) (*ForecastResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "openweather: create request")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "openweather: send request")
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "openweather: read response")
		}
		if err := resilience.CheckStatus("openweather", resp.StatusCode, body); err != nil {
			return nil, err
		}

		var out ForecastResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, eris.Wrap(err, "openweather: unmarshal response")
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}

	daily := Aggregate(resp)
	if len(daily) > days {
		daily = daily[:days]
	}
	return daily, nil
}

type dayAcc struct {
	date                 time.Time
	minT, maxT           float64
	humidity, wind, rain float64
	n                    int
}

// Aggregate groups slots by local calendar day: min/max temperature, mean
// humidity and wind, summed rain. ET0 is left for the caller to derive.
func Aggregate(resp *ForecastResponse) []model.WeatherDayForecast {
	if resp == nil || len(resp.List) == 0 {
		return nil
	}
	zone := time.FixedZone("local", resp.City.Timezone)

	byDay := make(map[string]*dayAcc)
	for _, s := range resp.List {
		local := time.Unix(s.Dt, 0).In(zone)
		key := local.Format(time.DateOnly)
		acc, ok := byDay[key]
		if !ok {
			acc = &dayAcc{
				date: time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC),
				minT: math.Inf(1),
				maxT: math.Inf(-1),
			}
			byDay[key] = acc
		}
		lo, hi := s.Main.TempMin, s.Main.TempMax
		if lo == 0 && hi == 0 {
			lo, hi = s.Main.Temp, s.Main.Temp
		}
		acc.minT = math.Min(acc.minT, lo)
		acc.maxT = math.Max(acc.maxT, hi)
		acc.humidity += s.Main.Humidity
		acc.wind += s.Wind.Speed
		acc.rain += s.Rain.ThreeHour
		acc.n++
	}

	out := make([]model.WeatherDayForecast, 0, len(byDay))
	for _, acc := range byDay {
		n := float64(acc.n)
		out = append(out, model.WeatherDayForecast{
			Date:            acc.date,
			TemperatureMin:  acc.minT,
			TemperatureMax:  acc.maxT,
			Humidity:        acc.humidity / n,
			PrecipitationMM: acc.rain,
			WindSpeed:       acc.wind / n,
			Confidence:      DailyConfidence,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
