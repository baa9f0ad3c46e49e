package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders documents such as transcripts and challans.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// KV is a labelled value rendered above the table body.
type KV struct {
	Label string
	Value string
}

// Document describes a printable document with a heading block and a table.
type Document struct {
	Title  string
	Meta   []KV
	Table  Dataset
	Footer string
}

// Render creates a PDF for the document.
func (e *PDFExporter) Render(doc Document) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if doc.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(doc.Title), "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	pdf.SetFont("Arial", "", 10)
	for _, kv := range doc.Meta {
		pdf.CellFormat(50, 6, kv.Label, "", 0, "", false, 0, "")
		pdf.CellFormat(0, 6, kv.Value, "", 1, "", false, 0, "")
	}
	if len(doc.Meta) > 0 {
		pdf.Ln(4)
	}

	if len(doc.Table.Headers) > 0 {
		pdf.SetFont("Arial", "B", 10)
		colWidth := 190.0 / float64(len(doc.Table.Headers))
		for _, header := range doc.Table.Headers {
			pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 9)
		for _, row := range doc.Table.Rows {
			for _, header := range doc.Table.Headers {
				pdf.CellFormat(colWidth, 7, row[header], "1", 0, "", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	if doc.Footer != "" {
		pdf.Ln(6)
		pdf.SetFont("Arial", "I", 8)
		pdf.MultiCell(0, 5, doc.Footer, "", "L", false)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
