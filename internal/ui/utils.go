package ui

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yvy-orbital/yvy-field-service/internal/delivery"
	"github.com/yvy-orbital/yvy-field-service/internal/geometry"
	"github.com/yvy-orbital/yvy-field-service/internal/imagery"
)

// Colors for consistent UI
const (
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorReset  = "\033[0m"
)

var reader = bufio.NewReader(os.Stdin)

func PrintWarning(message string) {
	fmt.Printf("%s\nWarning:%s\n", ColorYellow, ColorReset)
	fmt.Printf("%s%s%s\n", ColorYellow, message, ColorReset)
}

func PrintError(message string) {
	fmt.Printf("\n%sError: %s%s\n", ColorRed, message, ColorReset)
}

func PrintSuccess(message string) {
	fmt.Printf("\n%s%s%s\n", ColorGreen, message, ColorReset)
}

func PrintInfo(message string) {
	fmt.Printf("%s%s%s", ColorBlue, message, ColorReset)
}

// ReadString reads a line from stdin with trimming
func ReadString(prompt string) string {
	PrintInfo(prompt)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

// ReadInt reads an integer in [min, max]. An empty answer returns def.
func ReadInt(prompt string, min, max, def int) (int, error) {
	input := ReadString(prompt)
	if input == "" {
		return def, nil
	}
	value, err := strconv.Atoi(input)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", input)
	}
	if value < min || value > max {
		return 0, fmt.Errorf("value must be between %d and %d", min, max)
	}
	return value, nil
}

func ReadFloat(prompt string) (float64, error) {
	input := ReadString(prompt)
	value, err := strconv.ParseFloat(strings.ReplaceAll(input, ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", input)
	}
	return value, nil
}

// ReadDate reads an optional YYYY-MM-DD date. "today" is accepted and an
// empty answer returns "".
func ReadDate(prompt string) (string, error) {
	input := ReadString(prompt)
	switch input {
	case "":
		return "", nil
	case "today":
		return time.Now().Format(imagery.DateLayout), nil
	}
	if _, err := time.Parse(imagery.DateLayout, input); err != nil {
		return "", fmt.Errorf("invalid date format: %s. Please use YYYY-MM-DD", input)
	}
	return input, nil
}

// ReadFarm asks for a farm either by boundary file or by coordinates.
func (a *App) ReadFarm() (delivery.FarmRequest, error) {
	farm := delivery.FarmRequest{FarmID: ReadString("Enter the farm id (optional): ")}

	name := ReadString("Enter the boundary file name from data/geojsons (empty to type coordinates): ")
	if name != "" {
		path := filepath.Join(a.geojsonDir(), strings.TrimSuffix(name, ".geojson")+".geojson")
		b, err := geometry.LoadBoundary(path, farm.FarmID)
		if err != nil {
			return farm, err
		}
		if farm.FarmID == "" {
			farm.FarmID = b.FarmID
		}
		farm.Latitude, farm.Longitude, farm.Hectares = b.Latitude, b.Longitude, b.Hectares
		fmt.Printf("%sFarm centroid (%.5f, %.5f), %.1f ha%s\n", ColorGreen, farm.Latitude, farm.Longitude, farm.Hectares, ColorReset)
		return farm, nil
	}

	var err error
	if farm.Latitude, err = ReadFloat("Enter the latitude: "); err != nil {
		return farm, err
	}
	if farm.Longitude, err = ReadFloat("Enter the longitude: "); err != nil {
		return farm, err
	}
	if farm.Hectares, err = ReadFloat("Enter the farm size in hectares: "); err != nil {
		return farm, err
	}
	return farm, nil
}

// ReadWindow reads optional start and end dates.
func ReadWindow(farm *delivery.FarmRequest) error {
	var err error
	if farm.End, err = ReadDate("Enter the end date (YYYY-MM-DD | today, empty for today): "); err != nil {
		return err
	}
	farm.Start, err = ReadDate("Enter the start date (YYYY-MM-DD, empty for 30 days before): ")
	return err
}

// CreateResultDirectory creates <root>/data/result/<farm>/<kind>.
func (a *App) CreateResultDirectory(farm, kind string) (string, error) {
	if farm == "" {
		farm = "unnamed"
	}
	resultPath := filepath.Join(a.RootPath, "data", "result", farm, kind)
	if err := os.MkdirAll(resultPath, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create result folder: %v", err)
	}
	return resultPath, nil
}

func (a *App) geojsonDir() string {
	return filepath.Join(a.RootPath, "data", "geojsons")
}
