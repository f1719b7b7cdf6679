// Package entities holds the typed records shared by the catalog, the ledger,
// the remote order client and the document renderer.
package entities

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ManualFolio marks a patient synthesized locally because the remote service
// had no record for the searched national ID.
const ManualFolio = "MANUAL"

// CatalogEntry is one row of the fee schedule.
type CatalogEntry struct {
	Code                string `json:"codigo"`
	Label               string `json:"prestacion"`
	Fonasa              int64  `json:"bono_fonasa"`
	Copay               int64  `json:"copago"`
	GeneralPrivate      int64  `json:"particular_general"`
	PreferentialPrivate int64  `json:"particular_preferencial"`
	DisplayLabel        string `json:"display"`
}

// NewCatalogEntry builds an entry with a trimmed code and its display label.
func NewCatalogEntry(code, label string, fonasa, copay, general, preferential int64) CatalogEntry {
	code = strings.TrimSpace(code)
	return CatalogEntry{
		Code:                code,
		Label:               label,
		Fonasa:              fonasa,
		Copay:               copay,
		GeneralPrivate:      general,
		PreferentialPrivate: preferential,
		DisplayLabel:        label + " (" + code + ")",
	}
}

// Row converts the entry into a ledger row.
func (e CatalogEntry) Row() LedgerRow {
	return LedgerRow{
		Code:                e.Code,
		Label:               e.Label,
		Fonasa:              e.Fonasa,
		Copay:               e.Copay,
		GeneralPrivate:      e.GeneralPrivate,
		PreferentialPrivate: e.PreferentialPrivate,
	}
}

// LedgerRow is one editable line item. The struct is comparable; two rows are
// duplicates when every field is equal.
type LedgerRow struct {
	Code                string `json:"codigo"`
	Label               string `json:"prestacion"`
	Fonasa              int64  `json:"bono_fonasa"`
	Copay               int64  `json:"copago"`
	GeneralPrivate      int64  `json:"particular_general"`
	PreferentialPrivate int64  `json:"particular_preferencial"`
}

// Totals holds the column sums of a ledger.
type Totals struct {
	Fonasa              int64 `json:"bono_fonasa"`
	Copay               int64 `json:"copago"`
	GeneralPrivate      int64 `json:"particular_general"`
	PreferentialPrivate int64 `json:"particular_preferencial"`
}

// Add accumulates one row into the totals.
func (t *Totals) Add(r LedgerRow) {
	t.Fonasa += r.Fonasa
	t.Copay += r.Copay
	t.GeneralPrivate += r.GeneralPrivate
	t.PreferentialPrivate += r.PreferentialPrivate
}

// PatientRecord is the patient/quote header returned by the order service.
type PatientRecord struct {
	PatientName string `json:"nombre_paciente"`
	Folio       string `json:"folio"`
	DocumentID  string `json:"documento_id"`
	BirthDate   string `json:"fecha_nacimiento,omitempty"`
}

// IsManual reports whether the record has no backing remote quote.
func (p PatientRecord) IsManual() bool {
	return p.Folio == ManualFolio
}

// ManualPatient synthesizes the record used when an ID search finds nothing.
func ManualPatient(documentID string) PatientRecord {
	return PatientRecord{
		PatientName: "PACIENTE NUEVO",
		Folio:       ManualFolio,
		DocumentID:  documentID,
	}
}

// UnmarshalJSON accepts the loosely typed shapes the order service emits:
// folio as number or string, and the national ID under any of documento_id,
// rut_paciente or rut.
func (p *PatientRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		PatientName FlexString `json:"nombre_paciente"`
		Folio       FlexString `json:"folio"`
		DocumentID  FlexString `json:"documento_id"`
		RutPaciente FlexString `json:"rut_paciente"`
		Rut         FlexString `json:"rut"`
		BirthDate   FlexString `json:"fecha_nacimiento"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.PatientName = string(raw.PatientName)
	p.Folio = strings.TrimSpace(string(raw.Folio))
	p.BirthDate = string(raw.BirthDate)
	switch {
	case raw.DocumentID != "":
		p.DocumentID = string(raw.DocumentID)
	case raw.RutPaciente != "":
		p.DocumentID = string(raw.RutPaciente)
	default:
		p.DocumentID = string(raw.Rut)
	}
	return nil
}

// OrderItem is one element of the detalle response.
type OrderItem struct {
	ExamCode FlexString `json:"codigo_examen"`
}

// LedgerUpdate is the payload pushed to /cotizaciones/actualizar.
type LedgerUpdate struct {
	Folio string      `json:"folio"`
	Items []LedgerRow `json:"items"`
}

// AuditEntry is the payload posted to /auditoria/ordenes and the element type
// of /auditoria/historial.
type AuditEntry struct {
	PatientRUT  string   `json:"rut_paciente"`
	PatientName string   `json:"nombre_paciente"`
	SourceFolio string   `json:"folio_origen"`
	ItemCount   int      `json:"cantidad_examenes"`
	Codes       []string `json:"codigos"`
	CreatedAt   string   `json:"fecha,omitempty"`
}

// FlexString decodes a JSON string, number, or null into a string.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		// booleans and other scalars keep their literal text
		*f = FlexString(string(data))
		return nil
	}
	// Integral floats such as 1234.0 come from spreadsheet-backed services.
	if fl, err := n.Float64(); err == nil && fl == float64(int64(fl)) && strings.ContainsAny(n.String(), ".eE") {
		*f = FlexString(strconv.FormatInt(int64(fl), 10))
		return nil
	}
	*f = FlexString(n.String())
	return nil
}
