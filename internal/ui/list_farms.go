package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"
)

// ListFarms handles the UI for viewing the available boundary files and the
// farm ids they contain
func (a *App) ListFarms() {
	files, err := os.ReadDir(a.geojsonDir())
	if err != nil {
		PrintError(fmt.Sprintf("Error reading geojsons folder: %s", err.Error()))
		return
	}

	PrintWarning("To add a new farm, add its '.geojson' file at 'data/geojsons' folder with a 'farm_id' property per feature.")

	fmt.Printf("\n%sAvailable farm boundaries:%s\n", ColorGreen, ColorReset)
	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".geojson") {
			continue
		}
		ids, err := FarmIDs(filepath.Join(a.geojsonDir(), file.Name()))
		if err != nil {
			fmt.Printf("%s- %s (%s)%s\n", ColorRed, strings.TrimSuffix(file.Name(), ".geojson"), err.Error(), ColorReset)
			continue
		}
		fmt.Printf("%s- %s: %s%s\n", ColorGreen, strings.TrimSuffix(file.Name(), ".geojson"), strings.Join(ids, ", "), ColorReset)
	}
}

// FarmIDs returns the farm_id, or failing that plot_id, of every feature.
func FarmIDs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("error decoding GEOJSON: %s", err.Error())
	}

	ids := []string{}
	for _, f := range fc.Features {
		for _, key := range []string{"farm_id", "plot_id"} {
			if v, ok := f.Properties[key]; ok && v != nil {
				ids = append(ids, fmt.Sprint(v))
				break
			}
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no farm ids found")
	}
	return ids, nil
}
