package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/sirupsen/logrus"

	"github.com/yvy-orbital/yvy-field-service/internal/cache"
	"github.com/yvy-orbital/yvy-field-service/internal/imagery"
	"github.com/yvy-orbital/yvy-field-service/internal/logger"
)

var ErrNoData = errors.New("no weather data for window")

const (
	DefaultArchiveURL = "https://archive-api.open-meteo.com/v1/archive"
	historyCacheTTL   = 24 * time.Hour
)

type hourlyData struct {
	Time             []string   `json:"time"`
	RelativeHumidity []*float64 `json:"relative_humidity_2m"`
}

type dailyData struct {
	Time          []string   `json:"time"`
	Temperature   []*float64 `json:"temperature_2m_mean"`
	Precipitation []*float64 `json:"precipitation_sum"`
}

type weatherResponse struct {
	Hourly hourlyData `json:"hourly"`
	Daily  dailyData  `json:"daily"`
}

// Day is the weather of one calendar day. Fields are NaN-free; days without
// a temperature reading are dropped.
type Day struct {
	Date          time.Time `json:"date"`
	Temperature   float64   `json:"temperature"`
	Precipitation float64   `json:"precipitation"`
	Humidity      float64   `json:"humidity"`
}

// Summary aggregates the days of a window.
type Summary struct {
	Days               int     `json:"days"`
	MeanTemperature    float64 `json:"mean_temperature"`
	TotalPrecipitation float64 `json:"total_precipitation"`
	MeanHumidity       float64 `json:"mean_humidity"`
}

// Client reads historical daily weather from the Open-Meteo archive.
type Client struct {
	ArchiveURL string
	HTTP       *http.Client
	Retries    int
	RetryDelay time.Duration
	cache      *cache.FileCache[[]Day]
}

// NewClient caches responses under cacheDir when it is not empty.
func NewClient(cacheDir string) *Client {
	c := &Client{
		ArchiveURL: DefaultArchiveURL,
		HTTP:       &http.Client{Timeout: 30 * time.Second},
		Retries:    3,
		RetryDelay: 10 * time.Second,
	}
	if cacheDir != "" {
		c.cache = cache.NewFileCache[[]Day](cacheDir, historyCacheTTL)
	}
	return c
}

func calculateMeanHumidity(hourly hourlyData) map[string]float64 {
	daily := make(map[string][]float64)
	for i, t := range hourly.Time {
		if i >= len(hourly.RelativeHumidity) || hourly.RelativeHumidity[i] == nil || len(t) < 10 {
			continue
		}
		date := t[:10]
		daily[date] = append(daily[date], *hourly.RelativeHumidity[i])
	}

	mean := make(map[string]float64, len(daily))
	for date, values := range daily {
		if m, err := stats.Mean(values); err == nil {
			mean[date] = m
		}
	}
	return mean
}

// History returns the daily weather at a location over the window.
func (c *Client) History(ctx context.Context, lat, lon float64, window imagery.TimeWindow) ([]Day, error) {
	start := window.Start.Format(imagery.DateLayout)
	end := window.End.Format(imagery.DateLayout)

	var key string
	if c.cache != nil {
		key = c.cache.GenerateKey(fmt.Sprintf("%.4f", lat), fmt.Sprintf("%.4f", lon), start, end)
		if days, ok := c.cache.Get(key); ok {
			return days, nil
		}
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("start_date", start)
	q.Set("end_date", end)
	q.Set("daily", "temperature_2m_mean,precipitation_sum")
	q.Set("hourly", "relative_humidity_2m")
	q.Set("timezone", "UTC")

	retries := max(c.Retries, 1)
	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		var resp weatherResponse
		resp, lastErr = c.get(ctx, c.ArchiveURL+"?"+q.Encode())
		if lastErr == nil {
			days, err := parseDays(resp)
			if err != nil {
				return nil, err
			}
			if c.cache != nil {
				if err := c.cache.Set(key, days); err != nil {
					logger.Log.WithError(err).Warn("failed to cache weather history")
				}
			}
			return days, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Log.WithFields(logrus.Fields{"attempt": attempt, "error": lastErr}).Warn("weather request failed")
		if attempt < retries && c.RetryDelay > 0 {
			select {
			case <-time.After(c.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("failed to retrieve weather after %d attempts: %w", retries, lastErr)
}

func (c *Client) get(ctx context.Context, u string) (weatherResponse, error) {
	var out weatherResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return out, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return out, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("failed to parse response: %w", err)
	}
	return out, nil
}

func parseDays(resp weatherResponse) ([]Day, error) {
	humidity := calculateMeanHumidity(resp.Hourly)
	days := make([]Day, 0, len(resp.Daily.Time))
	for i, date := range resp.Daily.Time {
		if i >= len(resp.Daily.Temperature) || resp.Daily.Temperature[i] == nil {
			continue
		}
		parsed, err := time.Parse(imagery.DateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse date: %w", err)
		}
		d := Day{Date: parsed, Temperature: *resp.Daily.Temperature[i], Humidity: humidity[date]}
		if i < len(resp.Daily.Precipitation) && resp.Daily.Precipitation[i] != nil {
			d.Precipitation = *resp.Daily.Precipitation[i]
		}
		days = append(days, d)
	}
	return days, nil
}

// Summarize averages temperature and humidity and sums precipitation.
func Summarize(days []Day) (Summary, error) {
	if len(days) == 0 {
		return Summary{}, ErrNoData
	}
	temps := make([]float64, len(days))
	rain := make([]float64, len(days))
	hum := make([]float64, len(days))
	for i, d := range days {
		temps[i], rain[i], hum[i] = d.Temperature, d.Precipitation, d.Humidity
	}
	s := Summary{Days: len(days)}
	s.MeanTemperature, _ = stats.Mean(temps)
	s.TotalPrecipitation, _ = stats.Sum(rain)
	s.MeanHumidity, _ = stats.Mean(hum)
	return s, nil
}

// WindowSummary fetches and summarises the weather of a window.
func (c *Client) WindowSummary(ctx context.Context, lat, lon float64, window imagery.TimeWindow) (*Summary, error) {
	days, err := c.History(ctx, lat, lon, window)
	if err != nil {
		return nil, err
	}
	s, err := Summarize(days)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
