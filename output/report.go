package output

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/yvy-orbital/yvy-field-service/internal/zoning"
)

const (
	pdfMargin       = 15.0
	pdfContentWidth = 210.0 - 2*pdfMargin
	pdfLineHeight   = 7.0
)

type Metric struct {
	Name  string
	Value string
	Unit  string
}

// Report is everything the farm PDF shows. Any section left empty is
// omitted.
type Report struct {
	Farm        string
	GeneratedAt time.Time
	Window      string
	Metrics     []Metric
	Alerts      []string
	Zones       []zoning.Zone
	ZoneMap     image.Image
	Chart       []byte
}

// SaveReport writes the report as an A4 PDF to path.
func SaveReport(r Report, path string) error {
	if r.Farm == "" {
		return errors.New("report without a farm")
	}
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(pdfContentWidth, 10, "Farm report: "+r.Farm, "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(80, 80, 80)
	sub := "Generated " + r.GeneratedAt.UTC().Format("2006-01-02 15:04 UTC")
	if r.Window != "" {
		sub += " | window " + r.Window
	}
	pdf.CellFormat(pdfContentWidth, pdfLineHeight, sub, "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	if len(r.Metrics) > 0 {
		heading(pdf, "Indicators")
		rows := make([][]string, len(r.Metrics))
		for i, m := range r.Metrics {
			rows[i] = []string{m.Name, m.Value, m.Unit}
		}
		table(pdf, []string{"Indicator", "Value", "Unit"}, []float64{0.5, 0.3, 0.2}, rows)
	}

	if len(r.Alerts) > 0 {
		heading(pdf, "Alerts")
		pdf.SetFont("Arial", "B", 10)
		pdf.SetTextColor(200, 0, 0)
		for _, a := range r.Alerts {
			pdf.MultiCell(pdfContentWidth, pdfLineHeight, "- "+a, "", "L", false)
		}
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(2)
	}

	if len(r.Zones) > 0 {
		heading(pdf, "Productivity zones")
		rows := make([][]string, len(r.Zones))
		for i, z := range r.Zones {
			rows[i] = []string{
				z.Name,
				fmt.Sprintf("%.3f", z.NDVIAvg),
				fmt.Sprintf("%.1f%%", z.AreaPercentage*100),
				fmt.Sprintf("%d", len(z.Coordinates)),
			}
		}
		table(pdf, []string{"Zone", "Mean NDVI", "Area", "Samples"}, []float64{0.4, 0.2, 0.2, 0.2}, rows)
	}

	if r.ZoneMap != nil {
		buf := new(bytes.Buffer)
		if err := png.Encode(buf, r.ZoneMap); err != nil {
			return fmt.Errorf("failed to encode zone map: %w", err)
		}
		embed(pdf, "zone-map", buf.Bytes(), 120)
	}
	if len(r.Chart) > 0 {
		embed(pdf, "zone-chart", r.Chart, pdfContentWidth)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create result folder: %w", err)
	}
	return pdf.OutputFileAndClose(path)
}

func heading(pdf *gofpdf.Fpdf, text string) {
	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(pdfContentWidth, 9, text, "", 1, "L", false, 0, "")
}

// table draws a bordered table; widths are fractions of the content width.
func table(pdf *gofpdf.Fpdf, headers []string, widths []float64, rows [][]string) {
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(200, 200, 200)
	for i, h := range headers {
		pdf.CellFormat(widths[i]*pdfContentWidth, pdfLineHeight, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range rows {
		for i, cell := range row {
			pdf.CellFormat(widths[i]*pdfContentWidth, pdfLineHeight, cell, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)
}

func embed(pdf *gofpdf.Fpdf, name string, data []byte, width float64) {
	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	info := pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	if info == nil {
		return
	}
	height := width * info.Height() / info.Width()
	_, pageHeight := pdf.GetPageSize()
	if pdf.GetY()+height > pageHeight-pdfMargin {
		pdf.AddPage()
	}
	pdf.ImageOptions(name, pdfMargin, pdf.GetY(), width, height, false, opts, 0, "")
	pdf.SetY(pdf.GetY() + height + 4)
}
