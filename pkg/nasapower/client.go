// Package nasapower reads satellite-derived soil wetness from the NASA POWER
// daily point API.
package nasapower

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
	"golang.org/x/time/rate"

	"github.com/kheti-labs/irrigation-advisor/internal/model"
	"github.com/kheti-labs/irrigation-advisor/internal/resilience"
)

const (
	defaultBaseURL      = "https://power.larc.nasa.gov/api/temporal/daily/point"
	defaultLookbackDays = 3
	dateLayout          = "20060102"

	// Source tags readings produced by this client.
	Source = "nasa_power"

	// FillValue marks a day POWER has no data for yet.
	FillValue = -999.0

	defaultSoilTempC = 25.0
	deepRootRatio    = 0.9
)

// Parameters requested from POWER.
var Parameters = []string{"T2M", "T2M_MIN", "T2M_MAX", "RH2M", "PRECTOTCORR", "WS2M", "GWETROOT", "GWETTOP"}

// Client fetches POWER data.
type Client interface {
	// Daily returns raw daily parameter series for the point between start
	// and end inclusive.
	Daily(ctx context.Context, lat, lon float64, start, end time.Time) (*DailyResponse, error)

	// SoilMoisture returns the most recent complete soil reading, or nil
	// when the lookback window has no usable day.
	SoilMoisture(ctx context.Context, lat, lon float64) (*model.SoilMoistureReading, error)
}

// DailyResponse is the GeoJSON body POWER returns. Parameter maps a parameter
// name to values keyed by YYYYMMDD.
type DailyResponse struct {
	Properties struct {
		Parameter map[string]map[string]float64 `json:"parameter"`
	} `json:"properties"`
}

// Value returns the parameter's value on day, treating fill values as missing.
func (r *DailyResponse) Value(param, day string) (float64, bool) {
	v, ok := r.Properties.Parameter[param][day]
	if !ok || v <= FillValue || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets the requests-per-second limit. POWER throttles
// aggressive callers.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
		}
	}
}

// WithLookbackDays sets how many days before today SoilMoisture requests.
func WithLookbackDays(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.lookback = n
		}
	}
}

// WithGuard wraps every request in retries and a circuit breaker.
func WithGuard(g resilience.Guard) Option {
	return func(c *httpClient) {
		c.guard = g
	}
}

// WithClock injects the time source used to pick the request window.
func WithClock(now func() time.Time) Option {
	return func(c *httpClient) {
		c.now = now
	}
}

type httpClient struct {
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	guard    resilience.Guard
	lookback int
	now      func() time.Time
}

// NewClient creates a POWER client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:  defaultBaseURL,
		http:     &http.Client{Timeout: 15 * time.Second},
		limiter:  rate.NewLimiter(2, 2),
		lookback: defaultLookbackDays,
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Daily(ctx context.Context, lat, lon float64, start, end time.Time) (*DailyResponse, error) {
	params := url.Values{}
	params.Set("parameters", strings.Join(Parameters, ","))
	params.Set("community", "AG")
	params.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	params.Set("start", start.Format(dateLayout))
	params.Set("end", end.Format(dateLayout))
	params.Set("format", "JSON")
	reqURL := c.baseURL + "?" + params.Encode()

	return resilience.Call(ctx, c.guard, func(ctx context.Context) (*DailyResponse, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "nasapower: rate limit wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "nasapower: create request")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "nasapower: send request")
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "nasapower: read response")
		}
		if err := resilience.CheckStatus("nasapower", resp.StatusCode, body); err != nil {
			return nil, err
		}

		var out DailyResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, eris.Wrap(err, "nasapower: unmarshal response")
		}
		return &out, nil
	})
}

func (c *httpClient) SoilMoisture(ctx context.Context, lat, lon float64) (*model.SoilMoistureReading, error) {
	end := c.now().UTC()
	start := end.AddDate(0, 0, -c.lookback)

	resp, err := c.Daily(ctx, lat, lon, start, end)
	if err != nil {
		return nil, err
	}

	reading := LatestReading(resp)
	if reading == nil {
		zap.L().Debug("nasapower: no complete soil day in window",
			zap.Float64("lat", lat), zap.Float64("lon", lon),
			zap.String("start", start.Format(dateLayout)), zap.String("end", end.Format(dateLayout)))
	}
	return reading, nil
}

// LatestReading converts the newest day with both surface and root-zone
// wetness into a reading. Wetness fractions become percentages; deep
// moisture is estimated from the root zone.
func LatestReading(resp *DailyResponse) *model.SoilMoistureReading {
	if resp == nil {
		return nil
	}
	days := make([]string, 0, len(resp.Properties.Parameter["GWETTOP"]))
	for day := range resp.Properties.Parameter["GWETTOP"] {
		days = append(days, day)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))

	for _, day := range days {
		top, okTop := resp.Value("GWETTOP", day)
		root, okRoot := resp.Value("GWETROOT", day)
		if !okTop || !okRoot {
			continue
		}
		ts, err := time.Parse(dateLayout, day)
		if err != nil {
			continue
		}
		temp, ok := resp.Value("T2M", day)
		if !ok {
			temp = defaultSoilTempC
		}
		return &model.SoilMoistureReading{
			SurfaceMoisture:  top * 100,
			RootZoneMoisture: root * 100,
			DeepMoisture:     root * 100 * deepRootRatio,
			Temperature:      temp,
			Timestamp:        ts,
			Source:           Source,
		}
	}
	return nil
}
