package report

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

// Renderer writes a document in one output format.
type Renderer interface {
	Render(w io.Writer, doc Document) error
	ContentType() string
	Extension() string
}

type PDFRenderer struct {
	Spec PageSpec
}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{Spec: A4}
}

func (r *PDFRenderer) ContentType() string { return "application/pdf" }
func (r *PDFRenderer) Extension() string   { return "pdf" }

// Render draws the pages produced by Layout. Page breaks come from Layout
// alone; fpdf's automatic breaking is disabled.
func (r *PDFRenderer) Render(w io.Writer, doc Document) error {
	spec := r.Spec
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(spec.Margin, spec.Top, spec.Margin)

	for _, page := range Layout(doc, spec) {
		pdf.AddPage()
		for _, item := range page.Items {
			switch item.Kind {
			case ItemTitle:
				pdf.SetFont("Helvetica", "B", 16)
				pdf.SetTextColor(0, 0, 0)
				pdf.Text(spec.Margin, item.Y, item.Text)
			case ItemPeriod:
				pdf.SetFont("Helvetica", "", 10)
				pdf.SetTextColor(90, 90, 90)
				pdf.Text(spec.Margin, item.Y, item.Text)
			case ItemTableTitle:
				pdf.SetFont("Helvetica", "B", 12)
				pdf.SetTextColor(0, 0, 0)
				pdf.Text(spec.Margin, item.Y, item.Text)
			case ItemHeader:
				pdf.SetFont("Helvetica", "B", 9)
				pdf.SetFillColor(107, 70, 193)
				pdf.SetTextColor(255, 255, 255)
				r.row(pdf, item, true)
			case ItemRow:
				pdf.SetFont("Helvetica", "", 9)
				pdf.SetTextColor(0, 0, 0)
				r.row(pdf, item, false)
			}
		}
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.Text(spec.Width-spec.Margin-20, spec.Height-8, fmt.Sprintf("Page %d", page.Number))
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return pdf.Output(w)
}

func (r *PDFRenderer) row(pdf *fpdf.Fpdf, item Placed, fill bool) {
	width := r.Spec.ColumnWidth(len(item.Cells))
	pdf.SetXY(r.Spec.Margin, item.Y-5)
	for _, cell := range item.Cells {
		pdf.CellFormat(width, r.Spec.RowHeight, cell, "1", 0, "L", fill, 0, "")
	}
}
