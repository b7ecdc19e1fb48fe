package geometry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const farmsGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"farm_id": "north"},
      "geometry": {"type": "Point", "coordinates": [-47.0, -15.0]}
    },
    {
      "type": "Feature",
      "properties": {"farm_id": "south"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[-47.0, -15.0], [-46.99, -15.0], [-46.99, -14.99], [-47.0, -14.99], [-47.0, -15.0]]]
      }
    },
    {
      "type": "Feature",
      "properties": {"plot_id": 7},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[10.0, 0.0], [10.001, 0.0], [10.001, 0.001], [10.0, 0.001], [10.0, 0.0]]]
      }
    }
  ]
}`

func writeFarms(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "farms.geojson")
	require.NoError(t, os.WriteFile(path, []byte(farmsGeoJSON), 0o644))
	return path
}

func TestLoadBoundary(t *testing.T) {
	path := writeFarms(t)

	b, err := LoadBoundary(path, "south")
	require.NoError(t, err)
	assert.Equal(t, "south", b.FarmID)
	assert.InDelta(t, -14.995, b.Latitude, 1e-9)
	assert.InDelta(t, -46.995, b.Longitude, 1e-9)
	// 0.01 deg square at 15S is roughly 1113 m by 1075 m.
	assert.InDelta(t, 119.6, b.Hectares, 3)

	_, err = Size(b.Latitude, b.Longitude, b.Hectares)
	assert.NoError(t, err)
}

func TestLoadBoundaryByPlotAndDefault(t *testing.T) {
	path := writeFarms(t)

	b, err := LoadBoundary(path, "7")
	require.NoError(t, err)
	assert.InDelta(t, 0.0005, b.Latitude, 1e-9)

	first, err := LoadBoundary(path, "")
	require.NoError(t, err)
	assert.Equal(t, "south", first.FarmID)
}

func TestLoadBoundaryErrors(t *testing.T) {
	path := writeFarms(t)

	_, err := LoadBoundary(path, "north")
	assert.ErrorIs(t, err, ErrBoundaryNotFound)

	_, err = LoadBoundary(path, "missing")
	assert.ErrorIs(t, err, ErrBoundaryNotFound)

	_, err = LoadBoundary(filepath.Join(t.TempDir(), "none.geojson"), "")
	assert.Error(t, err)
}
