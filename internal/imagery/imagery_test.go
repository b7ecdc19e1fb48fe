package imagery_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yvy-orbital/yvy-field-service/internal/imagery"
	"github.com/yvy-orbital/yvy-field-service/internal/imagery/imagerytest"
)

var now = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func TestParseWindow(t *testing.T) {
	tests := []struct {
		name      string
		start     string
		end       string
		wantStart string
		wantEnd   string
		wantErr   bool
	}{
		{name: "default trailing 30 days", wantStart: "2024-05-31", wantEnd: "2024-06-30"},
		{name: "explicit range", start: "2024-01-01", end: "2024-01-31", wantStart: "2024-01-01", wantEnd: "2024-01-31"},
		{name: "end only", end: "2024-03-31", wantStart: "2024-03-01", wantEnd: "2024-03-31"},
		{name: "start only", start: "2024-06-01", wantStart: "2024-06-01", wantEnd: "2024-06-30"},
		{name: "malformed", start: "2024/01/01", wantErr: true},
		{name: "inverted", start: "2024-02-01", end: "2024-01-01", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := imagery.ParseWindow(tt.start, tt.end, now)
			if tt.wantErr {
				assert.ErrorIs(t, err, imagery.ErrInvalidWindow)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, w.Start.Format(imagery.DateLayout))
			assert.Equal(t, tt.wantEnd, w.End.Format(imagery.DateLayout))
		})
	}
}

func TestFetchAllKeepsOrderAndSkipsFailures(t *testing.T) {
	p := imagerytest.NewProvider().
		AddScene(imagery.Sentinel2L2A, imagerytest.Scene{Meta: imagery.SceneMeta{ID: "a"}, Values: map[string]float64{"B04": 1}}).
		AddScene(imagery.Sentinel2L2A, imagerytest.Scene{Meta: imagery.SceneMeta{ID: "b"}, Values: map[string]float64{"B04": 2}})

	req := imagery.SceneRequest{
		Collection: imagery.Sentinel2L2A,
		Bands:      []imagery.Band{{Name: "B04", Units: "DN"}},
		Bound:      orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}},
		Window:     imagery.DefaultWindow(now),
	}
	metas := []imagery.SceneMeta{{ID: "b"}, {ID: "missing"}, {ID: "a"}}

	scenes, err := imagery.FetchAll(context.Background(), p, req, metas, 3)
	require.NoError(t, err)
	require.Len(t, scenes, 2)
	assert.Equal(t, "b", scenes[0].ID)
	assert.Equal(t, "a", scenes[1].ID)
	assert.Equal(t, 2.0, scenes[0].Bands["B04"].At(0, 0))

	assert.Len(t, imagery.Stack(scenes, "B04"), 2)
	assert.Empty(t, imagery.Stack(scenes, "B08"))
}

func TestFetchAllNoScenes(t *testing.T) {
	p := imagerytest.NewProvider()
	req := imagery.SceneRequest{Collection: imagery.Landsat9L2}

	_, err := imagery.FetchAll(context.Background(), p, req, nil, 2)
	assert.ErrorIs(t, err, imagery.ErrNoScenes)

	boom := errors.New("boom")
	p.FailFetch(imagery.Landsat9L2, boom)
	_, err = imagery.FetchAll(context.Background(), p, req, []imagery.SceneMeta{{ID: "x"}}, 2)
	assert.ErrorIs(t, err, boom)
}
