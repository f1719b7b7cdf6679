package ledger

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/tabancura/frontdesk/catalog"
	"github.com/tabancura/frontdesk/entities"
)

func testCatalog() *catalog.Catalog {
	return catalog.New([]entities.CatalogEntry{
		entities.NewCatalogEntry("A1", "HEMOGRAMA", 10000, 0, 0, 0),
		entities.NewCatalogEntry("B2", "PERFIL LIPIDICO", 0, 0, 20000, 5000),
	})
}

func TestReconcileScenario(t *testing.T) {
	rows := Reconcile([]string{"A1", "A1", "C9"}, testCatalog())

	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}

	a1 := entities.LedgerRow{Code: "A1", Label: "HEMOGRAMA", Fonasa: 10000}
	if rows[0] != a1 || rows[1] != a1 {
		t.Errorf("Expected two priced A1 rows, got %+v and %+v", rows[0], rows[1])
	}

	c9 := entities.LedgerRow{Code: "C9"}
	if rows[2] != c9 {
		t.Errorf("Expected zero-priced unlabeled C9 row, got %+v", rows[2])
	}
}

func TestReconcileKeepsCountAndTrims(t *testing.T) {
	tests := []struct {
		name  string
		codes []string
	}{
		{"empty", nil},
		{"all unknown", []string{"X", "Y", "X"}},
		{"padded codes", []string{" A1", "B2 ", "\tB2\n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := Reconcile(tt.codes, testCatalog())
			if len(rows) != len(tt.codes) {
				t.Errorf("Expected %d rows, got %d", len(tt.codes), len(rows))
			}
		})
	}

	rows := Reconcile([]string{" A1", "B2 "}, testCatalog())
	if rows[0].Fonasa != 10000 || rows[1].GeneralPrivate != 20000 {
		t.Errorf("Expected padded codes to join, got %+v", rows)
	}
}

func TestAddItemsIdempotent(t *testing.T) {
	c := testCatalog()
	start := Reconcile([]string{"B2"}, c)
	selection := []string{"HEMOGRAMA (A1)", "HEMOGRAMA (A1)"}

	first, missing := AddItems(start, selection, c)
	if len(missing) != 0 {
		t.Fatalf("Expected no missing labels, got %v", missing)
	}
	if len(first) != 2 {
		t.Fatalf("Expected 2 rows after first add, got %d: %+v", len(first), first)
	}

	second, _ := AddItems(first, selection, c)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected second add to be a no-op, got %+v vs %+v", first, second)
	}
}

func TestAddItemsAfterEditAllowsReAdd(t *testing.T) {
	c := testCatalog()
	l, _ := AddItems(nil, []string{"HEMOGRAMA (A1)"}, c)

	l, err := EditRow(l, 0, map[string]any{FieldFonasa: 9000})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	l, _ = AddItems(l, []string{"HEMOGRAMA (A1)"}, c)
	if len(l) != 2 {
		t.Fatalf("Expected edited row and catalog row to coexist, got %+v", l)
	}
	if l[0].Fonasa != 9000 || l[1].Fonasa != 10000 {
		t.Errorf("Unexpected rows: %+v", l)
	}
}

func TestAddItemsCollapsesWholeLedger(t *testing.T) {
	c := testCatalog()
	l := Reconcile([]string{"A1", "A1", "C9"}, c)

	l, missing := AddItems(l, []string{"PERFIL LIPIDICO (B2)", "NOPE (Z9)"}, c)
	if !reflect.DeepEqual(missing, []string{"NOPE (Z9)"}) {
		t.Errorf("Expected unknown label to be reported, got %v", missing)
	}

	codes := l.Codes()
	want := []string{"A1", "C9", "B2"}
	if !reflect.DeepEqual(codes, want) {
		t.Errorf("Expected %v, got %v", want, codes)
	}
}

func TestAddItemsDoesNotMutateInput(t *testing.T) {
	c := testCatalog()
	before := Reconcile([]string{"A1", "A1"}, c)
	_, _ = AddItems(before, []string{"PERFIL LIPIDICO (B2)"}, c)

	if len(before) != 2 {
		t.Errorf("Expected input ledger untouched, got %+v", before)
	}
}

func TestRemoveRows(t *testing.T) {
	l := Reconcile([]string{"A1", "B2", "C9", "D4"}, testCatalog())

	tests := []struct {
		name    string
		indices []int
		want    []string
	}{
		{"single", []int{1}, []string{"A1", "C9", "D4"}},
		{"several unordered", []int{3, 0}, []string{"B2", "C9"}},
		{"out of range ignored", []int{-1, 10, 2}, []string{"A1", "B2", "D4"}},
		{"duplicate index", []int{1, 1}, []string{"A1", "C9", "D4"}},
		{"none", nil, []string{"A1", "B2", "C9", "D4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RemoveRows(l, tt.indices).Codes()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestEditRow(t *testing.T) {
	l := Reconcile([]string{"A1"}, testCatalog())

	edited, err := EditRow(l, 0, map[string]any{
		FieldLabel:               "HEMOGRAMA COMPLETO",
		FieldCopay:               "2.500",
		FieldGeneralPrivate:      "abc",
		FieldPreferentialPrivate: json.Number("4100"),
		FieldFonasa:              12000.9,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := entities.LedgerRow{
		Code: "A1", Label: "HEMOGRAMA COMPLETO",
		Fonasa: 12000, Copay: 2500, GeneralPrivate: 0, PreferentialPrivate: 4100,
	}
	if edited[0] != want {
		t.Errorf("Expected %+v, got %+v", want, edited[0])
	}
	if l[0].Label != "HEMOGRAMA" {
		t.Error("Expected input ledger to be untouched")
	}
}

func TestEditRowErrors(t *testing.T) {
	l := Reconcile([]string{"A1"}, testCatalog())

	if _, err := EditRow(l, 5, map[string]any{FieldCopay: 1}); !errors.Is(err, ErrRowOutOfRange) {
		t.Errorf("Expected ErrRowOutOfRange, got %v", err)
	}
	if _, err := EditRow(l, -1, nil); !errors.Is(err, ErrRowOutOfRange) {
		t.Errorf("Expected ErrRowOutOfRange for negative index, got %v", err)
	}
	if _, err := EditRow(l, 0, map[string]any{"precio": 1}); !errors.Is(err, ErrUnknownField) {
		t.Errorf("Expected ErrUnknownField, got %v", err)
	}
}

func TestTotals(t *testing.T) {
	l := Ledger{
		{Code: "A1", Fonasa: 10000},
		{Code: "A1", Fonasa: 10000},
		{Code: "Z"},
		{Code: "B2", GeneralPrivate: 20000, PreferentialPrivate: 5000, Copay: 300},
	}

	want := entities.Totals{Fonasa: 20000, Copay: 300, GeneralPrivate: 20000, PreferentialPrivate: 5000}
	if got := l.Totals(); got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
	if got := (Ledger{}).Totals(); got != (entities.Totals{}) {
		t.Errorf("Expected zero totals for empty ledger, got %+v", got)
	}
}

func TestAppendRow(t *testing.T) {
	l := Ledger{{Code: "A1"}}
	out := AppendRow(l, entities.LedgerRow{Code: "A1"})
	if len(out) != 2 {
		t.Errorf("Expected duplicate ad-hoc row to be kept, got %+v", out)
	}
	if len(l) != 1 {
		t.Error("Expected input ledger untouched")
	}
}
