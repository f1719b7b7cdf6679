package entities

import (
	"encoding/json"
	"testing"
)

func TestNewCatalogEntryDisplayLabel(t *testing.T) {
	e := NewCatalogEntry("  0301045 ", "HEMOGRAMA", 3500, 1000, 8000, 6000)

	if e.Code != "0301045" {
		t.Errorf("Expected trimmed code 0301045, got %q", e.Code)
	}
	if e.DisplayLabel != "HEMOGRAMA (0301045)" {
		t.Errorf("Expected display label 'HEMOGRAMA (0301045)', got %q", e.DisplayLabel)
	}

	row := e.Row()
	if row.Code != e.Code || row.Fonasa != 3500 || row.PreferentialPrivate != 6000 {
		t.Errorf("Row conversion lost fields: %+v", row)
	}
}

func TestPatientRecordUnmarshal(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected PatientRecord
	}{
		{
			name:  "string fields with documento_id",
			input: `{"nombre_paciente":"ANA PEREZ","folio":"F-10","documento_id":"12345678-5","fecha_nacimiento":"1980-01-02"}`,
			expected: PatientRecord{
				PatientName: "ANA PEREZ", Folio: "F-10", DocumentID: "12345678-5", BirthDate: "1980-01-02",
			},
		},
		{
			name:     "numeric folio and rut_paciente",
			input:    `{"nombre_paciente":"JUAN","folio":4521,"rut_paciente":"9876543-K"}`,
			expected: PatientRecord{PatientName: "JUAN", Folio: "4521", DocumentID: "9876543-K"},
		},
		{
			name:     "rut fallback and null birth date",
			input:    `{"nombre_paciente":"LUIS","folio":"77","rut":"1-9","fecha_nacimiento":null}`,
			expected: PatientRecord{PatientName: "LUIS", Folio: "77", DocumentID: "1-9"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got PatientRecord
			if err := json.Unmarshal([]byte(tt.input), &got); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %+v, got %+v", tt.expected, got)
			}
		})
	}
}

func TestFlexString(t *testing.T) {
	tests := []struct {
		input    string
		expected FlexString
	}{
		{`"A1"`, "A1"},
		{`301045`, "301045"},
		{`301045.0`, "301045"},
		{`12.5`, "12.5"},
		{`null`, ""},
		{`true`, "true"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var f FlexString
			if err := json.Unmarshal([]byte(tt.input), &f); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if f != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, f)
			}
		})
	}
}

func TestTotalsAdd(t *testing.T) {
	var tot Totals
	tot.Add(LedgerRow{Fonasa: 100, Copay: 10, GeneralPrivate: 1, PreferentialPrivate: 2})
	tot.Add(LedgerRow{Fonasa: 100, Copay: 10, GeneralPrivate: 1, PreferentialPrivate: 2})

	if tot != (Totals{Fonasa: 200, Copay: 20, GeneralPrivate: 2, PreferentialPrivate: 4}) {
		t.Errorf("Unexpected totals: %+v", tot)
	}
}

func TestManualPatient(t *testing.T) {
	p := ManualPatient("11111111-1")
	if !p.IsManual() {
		t.Error("Expected manual patient")
	}
	if p.PatientName != "PACIENTE NUEVO" {
		t.Errorf("Expected placeholder name, got %q", p.PatientName)
	}
}
