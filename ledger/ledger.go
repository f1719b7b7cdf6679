// Package ledger reconciles a remote order against the fee schedule and
// implements the operator's edits on the resulting working set of line items.
package ledger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tabancura/frontdesk/catalog"
	"github.com/tabancura/frontdesk/entities"
)

// ErrRowOutOfRange is returned when an edit targets a row that does not exist.
var ErrRowOutOfRange = errors.New("ledger row out of range")

// ErrUnknownField is returned when an edit names a field a row does not have.
var ErrUnknownField = errors.New("unknown ledger field")

// Ledger is the ordered set of line items for the active patient. Order is
// print order.
type Ledger []entities.LedgerRow

// Catalog is the subset of the fee schedule the ledger needs.
type Catalog interface {
	Lookup(code string) (entities.CatalogEntry, bool)
	ByDisplayLabel(label string) (entities.CatalogEntry, bool)
}

// Reconcile left-joins the remote item codes against the catalog. Input order
// and duplicates are kept; a code missing from the catalog yields a zero-priced
// row without a label so it can still be priced by hand.
func Reconcile(codes []string, c Catalog) Ledger {
	rows := make(Ledger, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if entry, ok := c.Lookup(code); ok {
			rows = append(rows, entry.Row())
			continue
		}
		rows = append(rows, entities.LedgerRow{Code: code})
	}
	return rows
}

// AddItems appends the catalog entries behind the selected display labels and
// then collapses exact duplicate rows, keeping the first occurrence. Labels not
// in the catalog are returned in missing.
func AddItems(l Ledger, labels []string, c Catalog) (result Ledger, missing []string) {
	result = make(Ledger, len(l), len(l)+len(labels))
	copy(result, l)

	for _, label := range labels {
		entry, ok := c.ByDisplayLabel(label)
		if !ok {
			missing = append(missing, label)
			continue
		}
		result = append(result, entry.Row())
	}
	return Dedupe(result), missing
}

// Dedupe drops rows identical in every field to an earlier row.
func Dedupe(l Ledger) Ledger {
	seen := make(map[entities.LedgerRow]struct{}, len(l))
	out := make(Ledger, 0, len(l))
	for _, row := range l {
		if _, dup := seen[row]; dup {
			continue
		}
		seen[row] = struct{}{}
		out = append(out, row)
	}
	return out
}

// RemoveRows deletes rows by position. Indices out of range are ignored.
func RemoveRows(l Ledger, indices []int) Ledger {
	drop := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		drop[i] = struct{}{}
	}

	out := make(Ledger, 0, len(l))
	for i, row := range l {
		if _, ok := drop[i]; ok {
			continue
		}
		out = append(out, row)
	}
	return out
}

// AppendRow adds an ad-hoc row at the end without de-duplication.
func AppendRow(l Ledger, row entities.LedgerRow) Ledger {
	out := make(Ledger, len(l), len(l)+1)
	copy(out, l)
	return append(out, row)
}

// Field names accepted by EditRow. They match the JSON names of LedgerRow.
const (
	FieldCode                = "codigo"
	FieldLabel               = "prestacion"
	FieldFonasa              = "bono_fonasa"
	FieldCopay               = "copago"
	FieldGeneralPrivate      = "particular_general"
	FieldPreferentialPrivate = "particular_preferencial"
)

// EditRow overwrites fields of one row. Monetary values are coerced: anything
// non-numeric becomes 0. Updates are validated before any field is written.
func EditRow(l Ledger, index int, updates map[string]any) (Ledger, error) {
	if index < 0 || index >= len(l) {
		return l, fmt.Errorf("%w: %d (ledger has %d rows)", ErrRowOutOfRange, index, len(l))
	}
	for field := range updates {
		switch field {
		case FieldCode, FieldLabel, FieldFonasa, FieldCopay, FieldGeneralPrivate, FieldPreferentialPrivate:
		default:
			return l, fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
	}

	out := make(Ledger, len(l))
	copy(out, l)
	row := &out[index]

	for field, value := range updates {
		switch field {
		case FieldCode:
			row.Code = strings.TrimSpace(toText(value))
		case FieldLabel:
			row.Label = toText(value)
		case FieldFonasa:
			row.Fonasa = CoerceAmount(value)
		case FieldCopay:
			row.Copay = CoerceAmount(value)
		case FieldGeneralPrivate:
			row.GeneralPrivate = CoerceAmount(value)
		case FieldPreferentialPrivate:
			row.PreferentialPrivate = CoerceAmount(value)
		}
	}
	return out, nil
}

// Totals sums the four monetary columns.
func (l Ledger) Totals() entities.Totals {
	var t entities.Totals
	for _, row := range l {
		t.Add(row)
	}
	return t
}

// Codes returns the item codes in print order.
func (l Ledger) Codes() []string {
	codes := make([]string, len(l))
	for i, row := range l {
		codes[i] = row.Code
	}
	return codes
}

// CoerceAmount converts an operator-supplied value into whole pesos.
func CoerceAmount(v any) int64 {
	switch n := v.(type) {
	case nil:
		return 0
	case int:
		return catalog.ParseAmount(strconv.Itoa(n))
	case int64:
		return catalog.ParseAmount(strconv.FormatInt(n, 10))
	case float64:
		return catalog.ParseAmount(strconv.FormatFloat(n, 'f', -1, 64))
	case string:
		return catalog.ParseAmount(n)
	case fmt.Stringer:
		return catalog.ParseAmount(n.String())
	default:
		return 0
	}
}

func toText(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(s)
	}
}
