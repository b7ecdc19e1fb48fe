package ui

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yvy-orbital/yvy-field-service/internal/delivery"
)

func TestFarmIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "farms.geojson")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"farm_id":"a"},"geometry":{"type":"Point","coordinates":[0,0]}},
		{"type":"Feature","properties":{"plot_id":12},"geometry":{"type":"Point","coordinates":[0,0]}},
		{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[0,0]}}]}`), 0o644))

	ids, err := FarmIDs(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "12"}, ids)

	empty := filepath.Join(t.TempDir(), "empty.geojson")
	require.NoError(t, os.WriteFile(empty, []byte(`{"type":"FeatureCollection","features":[]}`), 0o644))
	_, err = FarmIDs(empty)
	assert.Error(t, err)
}

func TestCreateResultDirectory(t *testing.T) {
	a := &App{RootPath: t.TempDir()}

	dir, err := a.CreateResultDirectory("", "zones")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(a.RootPath, "data", "result", "unnamed", "zones"), dir)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestExportZones(t *testing.T) {
	farm := delivery.FarmRequest{Latitude: -15, Longitude: -47, Hectares: 100}
	a := &App{RootPath: t.TempDir()}
	assert.Equal(t, 3, a.zoneCount())

	result, err := delivery.NewZoner(nil, nil).ZoneFarm(context.Background(), zoneRequest(farm, a.zoneCount()))
	require.NoError(t, err)

	paths, err := exportZones(result, t.TempDir())
	require.NoError(t, err)
	require.Len(t, paths, 4)
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err, p)
		assert.Positive(t, info.Size(), p)
	}
}
