package render

import (
	"fmt"
	"io"

	"github.com/tabancura/frontdesk/entities"
	"github.com/tabancura/frontdesk/ledger"
)

// Budget layout constants (landscape A4, 277 mm usable width).
const (
	BudgetTitle      = "PRESUPUESTO MÉDICO"
	BudgetLabelLimit = 55
	budgetRowHeight  = 8.0
	budgetHeadHeight = 10.0
)

var (
	budgetWidths  = []float64{20, 100, 31, 31, 31, 31}
	budgetHeaders = []string{"Código", "Prestación", "Fonasa", "Copago", "P. Gral", "P. Pref"}
)

// Budget writes the priced budget for the ledger.
func (r *Renderer) Budget(w io.Writer, p entities.PatientRecord, l ledger.Ledger) error {
	return r.budget(p, l).output(w)
}

func (r *Renderer) budget(p entities.PatientRecord, l ledger.Ledger) *document {
	d := r.newDocument("L", BudgetTitle)
	pdf := d.pdf
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(colorShade[0], colorShade[1], colorShade[2])
	pdf.SetTextColor(0, 0, 0)
	summary := fmt.Sprintf(" PACIENTE: %s  |  RUT: %s  |  FOLIO: %s", p.PatientName, FormatRUT(p.DocumentID), p.Folio)
	pdf.CellFormat(0, 10, latin1(summary), "", 1, "L", true, 0, "")
	pdf.Ln(2)

	d.headerRow(budgetWidths, budgetHeaders, budgetHeadHeight)

	pdf.SetFont("Helvetica", "", 8)
	for _, row := range l {
		if !d.fits(budgetRowHeight) {
			pdf.AddPage()
			d.headerRow(budgetWidths, budgetHeaders, budgetHeadHeight)
			pdf.SetFont("Helvetica", "", 8)
		}
		pdf.CellFormat(budgetWidths[0], budgetRowHeight, latin1(row.Code), "1", 0, "C", false, 0, "")
		pdf.CellFormat(budgetWidths[1], budgetRowHeight, latin1(Truncate(row.Label, BudgetLabelLimit)), "1", 0, "L", false, 0, "")
		for i, amount := range amounts(row) {
			pdf.CellFormat(budgetWidths[i+2], budgetRowHeight, FormatCLP(amount), "1", 0, "R", false, 0, "")
		}
		pdf.Ln(-1)
	}

	totals := l.Totals()
	if !d.fits(budgetHeadHeight) {
		pdf.AddPage()
	}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(colorTotal[0], colorTotal[1], colorTotal[2])
	pdf.CellFormat(budgetWidths[0]+budgetWidths[1], budgetHeadHeight, "TOTALES ESTIMADOS", "1", 0, "R", true, 0, "")
	for i, amount := range totalAmounts(totals) {
		pdf.CellFormat(budgetWidths[i+2], budgetHeadHeight, FormatCLP(amount), "1", 0, "R", true, 0, "")
	}
	pdf.Ln(-1)

	return d
}

func amounts(r entities.LedgerRow) [4]int64 {
	return [4]int64{r.Fonasa, r.Copay, r.GeneralPrivate, r.PreferentialPrivate}
}

func totalAmounts(t entities.Totals) [4]int64 {
	return [4]int64{t.Fonasa, t.Copay, t.GeneralPrivate, t.PreferentialPrivate}
}
