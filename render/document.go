// Package render lays out the priced budget and the clinical order as
// paginated PDF documents.
package render

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/tabancura/frontdesk/entities"
	"github.com/tabancura/frontdesk/ledger"
)

// Kind identifies one of the two printable documents.
type Kind string

const (
	KindBudget Kind = "Cotizacion"
	KindOrder  Kind = "Orden"
)

// FileName returns the download name for a document, e.g. Orden_4521.pdf.
func FileName(kind Kind, folio string) string {
	return fmt.Sprintf("%s_%s.pdf", kind, folio)
}

// Clinic is the identity printed in every page header.
type Clinic struct {
	Name    string
	Address string
	Phone   string
	Web     string
}

// Renderer produces the documents. Now is injectable so output is
// reproducible; Compress is off in tests so page text can be inspected.
type Renderer struct {
	Clinic   Clinic
	Now      func() time.Time
	Compress bool
}

// NewRenderer creates a renderer using the wall clock and compressed output.
func NewRenderer(clinic Clinic) *Renderer {
	return &Renderer{Clinic: clinic, Now: time.Now, Compress: true}
}

// Render dispatches on kind.
func (r *Renderer) Render(w io.Writer, kind Kind, p entities.PatientRecord, l ledger.Ledger) error {
	switch kind {
	case KindBudget:
		return r.Budget(w, p, l)
	case KindOrder:
		return r.Order(w, p, l)
	default:
		return fmt.Errorf("unknown document kind %q", kind)
	}
}

var (
	colorNavy  = [3]int{0, 43, 91}
	colorGrey  = [3]int{100, 100, 100}
	colorRule  = [3]int{200, 200, 200}
	colorShade = [3]int{245, 245, 245}
	colorTotal = [3]int{235, 235, 235}
)

const (
	pageMargin      = 10.0
	autoBreakMargin = 20.0
	timestampLayout = "02/01/2006 15:04"
)

// document wraps an fpdf page stream with the shared header and footer.
type document struct {
	pdf       *fpdf.Fpdf
	generated time.Time
	// bottom is the lowest y a table row may end at before a page break.
	bottom float64
}

func (r *Renderer) newDocument(orientation, title string) *document {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	generated := now()

	pdf := fpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, autoBreakMargin)
	pdf.SetCompression(r.Compress)
	pdf.SetCreationDate(generated)
	pdf.SetCatalogSort(true)
	pdf.SetTitle(title, true)
	pdf.SetAuthor(r.Clinic.Name, true)
	pdf.SetCreator("frontdesk", false)

	clinic := r.Clinic
	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.SetTextColor(colorNavy[0], colorNavy[1], colorNavy[2])
		pdf.CellFormat(100, 6, latin1(clinic.Name), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetTextColor(colorGrey[0], colorGrey[1], colorGrey[2])
		pdf.CellFormat(0, 6, latin1(title), "", 1, "R", false, 0, "")

		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(100, 4, latin1(clinic.Address), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 4, latin1("Generado: "+generated.Format(timestampLayout)), "", 1, "R", false, 0, "")
		pdf.CellFormat(100, 4, latin1(fmt.Sprintf("Tel: %s | %s", clinic.Phone, clinic.Web)), "", 1, "L", false, 0, "")
		pdf.Ln(5)

		pageW, _ := pdf.GetPageSize()
		pdf.SetDrawColor(colorRule[0], colorRule[1], colorRule[2])
		pdf.Line(pageMargin, pdf.GetY(), pageW-pageMargin, pdf.GetY())
		pdf.Ln(5)
	})

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(150, 150, 150)
		footer := fmt.Sprintf("Pág. %d | Generado: %s", pdf.PageNo(), generated.Format(timestampLayout))
		pdf.CellFormat(0, 10, latin1(footer), "", 0, "C", false, 0, "")
	})

	_, pageH := pdf.GetPageSize()
	return &document{pdf: pdf, generated: generated, bottom: pageH - autoBreakMargin}
}

// fits reports whether a block of height h still fits on the current page.
func (d *document) fits(h float64) bool {
	return d.pdf.GetY()+h <= d.bottom
}

// headerRow draws a navy table header.
func (d *document) headerRow(widths []float64, titles []string, h float64) {
	d.pdf.SetFont("Helvetica", "B", 8)
	d.pdf.SetFillColor(colorNavy[0], colorNavy[1], colorNavy[2])
	d.pdf.SetTextColor(255, 255, 255)
	d.pdf.SetDrawColor(0, 0, 0)
	for i, title := range titles {
		d.pdf.CellFormat(widths[i], h, latin1(title), "1", 0, "C", true, 0, "")
	}
	d.pdf.Ln(-1)
	d.pdf.SetTextColor(0, 0, 0)
}

func (d *document) output(w io.Writer) error {
	if err := d.pdf.Error(); err != nil {
		return fmt.Errorf("layout failed: %w", err)
	}
	if err := d.pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}
