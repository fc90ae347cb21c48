package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageWidth    = 297.0
	sideMargin   = 10.0
	firstColumn  = 22.0
	rowHeight    = 14.0
	headerHeight = 8.0
)

// PDFExporter renders a timetable grid as a landscape table.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates an A4 landscape document. The first column is narrow (day
// labels); cell text wraps inside fixed-height rows.
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(sideMargin, 15, sideMargin)
	pdf.AddPage()

	if data.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(data.Title), "", 1, "C", false, 0, "")
		pdf.Ln(4)
	}

	widths := columnWidths(len(data.Headers))
	pdf.SetFont("Arial", "B", 9)
	for i, header := range data.Headers {
		pdf.CellFormat(widths[i], headerHeight, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, row := range data.Rows {
		x, y := pdf.GetXY()
		for i, value := range data.record(row) {
			pdf.Rect(x, y, widths[i], rowHeight, "D")
			pdf.SetXY(x, y+1)
			pdf.MultiCell(widths[i], 4, value, "", "C", false)
			x += widths[i]
		}
		pdf.SetXY(sideMargin, y+rowHeight)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(n int) []float64 {
	widths := make([]float64, n)
	usable := pageWidth - 2*sideMargin
	if n == 1 {
		widths[0] = usable
		return widths
	}
	widths[0] = firstColumn
	rest := (usable - firstColumn) / float64(n-1)
	for i := 1; i < n; i++ {
		widths[i] = rest
	}
	return widths
}
