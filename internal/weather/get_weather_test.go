package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yvy-orbital/yvy-field-service/internal/imagery"
)

const archiveBody = `{
  "daily": {
    "time": ["2024-03-01", "2024-03-02", "2024-03-03"],
    "temperature_2m_mean": [24.0, null, 26.0],
    "precipitation_sum": [5.5, 1.0, null]
  },
  "hourly": {
    "time": ["2024-03-01T00:00", "2024-03-01T12:00", "2024-03-03T00:00", "2024-03-03T12:00"],
    "relative_humidity_2m": [80, 60, null, 50]
  }
}`

var march = imagery.TimeWindow{
	Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC),
}

func archive(t *testing.T, failures int32, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(hits, 1)
		if n <= failures {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		assert.Equal(t, "-15.0000", r.URL.Query().Get("latitude"))
		assert.Equal(t, "2024-03-01", r.URL.Query().Get("start_date"))
		assert.Equal(t, "2024-03-03", r.URL.Query().Get("end_date"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(archiveBody))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testClient(url, cacheDir string) *Client {
	c := NewClient(cacheDir)
	c.ArchiveURL = url
	c.RetryDelay = 0
	return c
}

func TestHistorySkipsMissingTemperatures(t *testing.T) {
	var hits int32
	c := testClient(archive(t, 0, &hits).URL, "")

	days, err := c.History(context.Background(), -15, -47, march)
	require.NoError(t, err)
	require.Len(t, days, 2)

	assert.Equal(t, "2024-03-01", days[0].Date.Format(imagery.DateLayout))
	assert.Equal(t, 24.0, days[0].Temperature)
	assert.Equal(t, 5.5, days[0].Precipitation)
	assert.InDelta(t, 70.0, days[0].Humidity, 1e-9)

	assert.Equal(t, "2024-03-03", days[1].Date.Format(imagery.DateLayout))
	assert.Equal(t, 0.0, days[1].Precipitation)
	assert.InDelta(t, 50.0, days[1].Humidity, 1e-9)
}

func TestHistoryRetries(t *testing.T) {
	var hits int32
	c := testClient(archive(t, 2, &hits).URL, "")

	days, err := c.History(context.Background(), -15, -47, march)
	require.NoError(t, err)
	assert.Len(t, days, 2)
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
}

func TestHistoryGivesUp(t *testing.T) {
	var hits int32
	c := testClient(archive(t, 10, &hits).URL, "")
	c.Retries = 2

	_, err := c.History(context.Background(), -15, -47, march)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Contains(t, err.Error(), "429")
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

func TestHistoryUsesCache(t *testing.T) {
	var hits int32
	c := testClient(archive(t, 0, &hits).URL, t.TempDir())

	first, err := c.History(context.Background(), -15, -47, march)
	require.NoError(t, err)
	second, err := c.History(context.Background(), -15, -47, march)
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
	require.Len(t, second, len(first))
	assert.True(t, first[0].Date.Equal(second[0].Date))
	assert.Equal(t, first[1].Humidity, second[1].Humidity)
}

func TestSummarize(t *testing.T) {
	s, err := Summarize([]Day{
		{Temperature: 20, Precipitation: 3, Humidity: 60},
		{Temperature: 30, Precipitation: 7, Humidity: 80},
	})
	require.NoError(t, err)
	assert.Equal(t, Summary{Days: 2, MeanTemperature: 25, TotalPrecipitation: 10, MeanHumidity: 70}, s)

	_, err = Summarize(nil)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestWindowSummary(t *testing.T) {
	var hits int32
	c := testClient(archive(t, 0, &hits).URL, "")

	s, err := c.WindowSummary(context.Background(), -15, -47, march)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Days)
	assert.InDelta(t, 25.0, s.MeanTemperature, 1e-9)
	assert.InDelta(t, 5.5, s.TotalPrecipitation, 1e-9)
	assert.InDelta(t, 60.0, s.MeanHumidity, 1e-9)
}
