package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfPageWidth   = 190.0
	pdfLineHeight  = 5.0
	pdfHeaderLine  = 8.0
	utf8FontFamily = "DejaVu"
)

// PDFExporter renders datasets into a tabular PDF with wrapped cells.
type PDFExporter struct {
	fontPath string
}

// NewPDFExporter constructs a PDF exporter. fontPath points at a TrueType font
// with Cyrillic glyphs; when empty the core Arial font is used and non Latin-1
// characters will not render.
func NewPDFExporter(fontPath string) *PDFExporter {
	return &PDFExporter{fontPath: fontPath}
}

// ContentType reports the MIME type of rendered documents.
func (e *PDFExporter) ContentType() string {
	return "application/pdf"
}

// Extension reports the file extension of rendered documents.
func (e *PDFExporter) Extension() string {
	return "pdf"
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, 15)

	family := "Arial"
	if e.fontPath != "" {
		pdf.AddUTF8Font(utf8FontFamily, "", e.fontPath)
		pdf.AddUTF8Font(utf8FontFamily, "B", e.fontPath)
		family = utf8FontFamily
	}
	pdf.AddPage()

	if title != "" {
		pdf.SetFont(family, "B", 14)
		pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	widths := columnWidths(data, pdfPageWidth)

	pdf.SetFont(family, "B", 10)
	for i, header := range data.Headers {
		pdf.CellFormat(widths[i], pdfHeaderLine, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(family, "", 9)
	for _, row := range data.Rows {
		lines := 1
		for i, header := range data.Headers {
			if n := len(pdf.SplitLines([]byte(row[header]), widths[i]-2)); n > lines {
				lines = n
			}
		}
		height := float64(lines) * pdfLineHeight
		if pdf.GetY()+height > 297-15 {
			pdf.AddPage()
		}

		x, y := pdf.GetXY()
		for i, header := range data.Headers {
			pdf.Rect(x, y, widths[i], height, "D")
			pdf.SetXY(x, y)
			pdf.MultiCell(widths[i], pdfLineHeight, row[header], "", "L", false)
			x += widths[i]
		}
		pdf.SetXY(10, y+height)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// columnWidths distributes total across the headers using Dataset.Widths as
// relative weights, falling back to equal columns.
func columnWidths(data Dataset, total float64) []float64 {
	widths := make([]float64, len(data.Headers))
	if len(data.Widths) != len(data.Headers) {
		for i := range widths {
			widths[i] = total / float64(len(widths))
		}
		return widths
	}
	var sum float64
	for _, w := range data.Widths {
		sum += w
	}
	for i, w := range data.Widths {
		if sum <= 0 {
			widths[i] = total / float64(len(widths))
			continue
		}
		widths[i] = total * w / sum
	}
	return widths
}
