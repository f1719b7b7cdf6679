package render

import (
	"io"

	"github.com/tabancura/frontdesk/entities"
	"github.com/tabancura/frontdesk/ledger"
)

// Order layout constants (portrait A4, 190 mm usable width).
const (
	OrderTitle      = "ORDEN CLÍNICA"
	OrderLabelLimit = 80
	SignatureLabel  = "Firma y Timbre Médico"
	orderRowHeight  = 8.0
	orderHeadHeight = 10.0
	// signatureOffset is the distance from the page bottom to the signature line.
	signatureOffset = 45.0
	// signatureGap is the minimum space kept between the table and the line.
	signatureGap = 15.0
	signatureX1  = 70.0
	signatureX2  = 140.0
)

var (
	orderWidths  = []float64{35, 155}
	orderHeaders = []string{"CÓDIGO", "PRESTACIÓN"}
)

// Order writes the unpriced clinical order for the ledger.
func (r *Renderer) Order(w io.Writer, p entities.PatientRecord, l ledger.Ledger) error {
	return r.order(p, l).output(w)
}

func (r *Renderer) order(p entities.PatientRecord, l ledger.Ledger) *document {
	d := r.newDocument("P", OrderTitle)
	pdf := d.pdf
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 7, latin1("Paciente: "+p.PatientName), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, latin1("RUT: "+FormatRUT(p.DocumentID)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, latin1("Folio: "+p.Folio), "", 1, "L", false, 0, "")
	if p.BirthDate != "" {
		pdf.CellFormat(0, 7, latin1("F. Nac: "+p.BirthDate), "", 1, "L", false, 0, "")
	}
	pdf.Ln(5)

	d.headerRow(orderWidths, orderHeaders, orderHeadHeight)

	pdf.SetFont("Helvetica", "", 10)
	for _, row := range l {
		if !d.fits(orderRowHeight) {
			pdf.AddPage()
			d.headerRow(orderWidths, orderHeaders, orderHeadHeight)
			pdf.SetFont("Helvetica", "", 10)
		}
		pdf.CellFormat(orderWidths[0], orderRowHeight, latin1(row.Code), "1", 0, "C", false, 0, "")
		pdf.CellFormat(orderWidths[1], orderRowHeight, latin1(Truncate(row.Label, OrderLabelLimit)), "1", 1, "L", false, 0, "")
	}

	d.signature()
	return d
}

// signature draws the signing line at a fixed offset from the page bottom,
// moving to a fresh page when the table reaches too far down.
func (d *document) signature() {
	pdf := d.pdf
	_, pageH := pdf.GetPageSize()
	lineY := pageH - signatureOffset

	if pdf.GetY()+signatureGap > lineY {
		pdf.AddPage()
	}

	pdf.SetDrawColor(0, 0, 0)
	pdf.Line(signatureX1, lineY, signatureX2, lineY)
	pdf.SetY(lineY + 1)
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 8, latin1(SignatureLabel), "", 1, "C", false, 0, "")
}
