// Package session models one operator's working set: the patient being
// attended, the candidate records of the last search and the editable
// ledger. Desk drives the state machine
//
//	NoPatient -> CandidateList -> PatientActive
//
// with an ID search that finds nothing going straight to PatientActive in
// manual mode.
package session

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tabancura/frontdesk/entities"
	"github.com/tabancura/frontdesk/ledger"
	"github.com/tabancura/frontdesk/render"
)

var (
	ErrNoActivePatient     = errors.New("no active patient")
	ErrCandidateOutOfRange = errors.New("candidate index out of range")
	ErrRender              = errors.New("document generation failed")
)

// State is the position of a session in the attention flow.
type State int

const (
	StateNoPatient State = iota
	StateCandidateList
	StatePatientActive
)

func (s State) String() string {
	switch s {
	case StateCandidateList:
		return "candidate_list"
	case StatePatientActive:
		return "patient_active"
	default:
		return "no_patient"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	for _, candidate := range []State{StateNoPatient, StateCandidateList, StatePatientActive} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// Notice levels.
const (
	NoticeInfo    = "info"
	NoticeWarning = "warning"
	NoticeError   = "error"
)

// Notice is a transient message for the operator about the last action.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Session is one operator's working set. All fields are guarded by mu.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu         sync.Mutex
	state      State
	patient    entities.PatientRecord
	candidates []entities.PatientRecord
	ledger     ledger.Ledger
	notice     *Notice

	lastSeen atomic.Int64 // unix nanoseconds
}

func newSession(id string, now time.Time) *Session {
	s := &Session{ID: id, CreatedAt: now}
	s.lastSeen.Store(now.UnixNano())
	return s
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// LastSeen returns when the session was last used.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// Candidate is one selectable search result.
type Candidate struct {
	Index   int                    `json:"index"`
	Label   string                 `json:"label"`
	Patient entities.PatientRecord `json:"patient"`
}

// PatientView is the active patient as shown to the operator.
type PatientView struct {
	PatientName  string `json:"nombre_paciente"`
	Folio        string `json:"folio"`
	DocumentID   string `json:"documento_id"`
	BirthDate    string `json:"fecha_nacimiento,omitempty"`
	FormattedRUT string `json:"rut_formateado"`
	Manual       bool   `json:"manual"`
}

// Snapshot is a copy of the session safe to hand out after the lock is released.
type Snapshot struct {
	ID         string               `json:"id"`
	State      State                `json:"state"`
	Patient    *PatientView         `json:"patient,omitempty"`
	Candidates []Candidate          `json:"candidates"`
	Ledger     []entities.LedgerRow `json:"ledger"`
	Totals     entities.Totals      `json:"totals"`
	Notice     *Notice              `json:"notice,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	LastSeen   time.Time            `json:"last_seen"`
}

// CandidateLabel is the selector text for a search result.
func CandidateLabel(p entities.PatientRecord) string {
	return fmt.Sprintf("Folio %s | %s", p.Folio, p.PatientName)
}

// Snapshot copies the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:         s.ID,
		State:      s.state,
		Candidates: make([]Candidate, len(s.candidates)),
		Ledger:     append([]entities.LedgerRow{}, s.ledger...),
		Totals:     s.ledger.Totals(),
		CreatedAt:  s.CreatedAt,
		LastSeen:   s.LastSeen(),
	}
	for i, c := range s.candidates {
		snap.Candidates[i] = Candidate{Index: i, Label: CandidateLabel(c), Patient: c}
	}
	if s.state == StatePatientActive {
		snap.Patient = &PatientView{
			PatientName:  s.patient.PatientName,
			Folio:        s.patient.Folio,
			DocumentID:   s.patient.DocumentID,
			BirthDate:    s.patient.BirthDate,
			FormattedRUT: render.FormatRUT(s.patient.DocumentID),
			Manual:       s.patient.IsManual(),
		}
	}
	if s.notice != nil {
		n := *s.notice
		snap.Notice = &n
	}
	return snap
}

// activate loads a patient, discarding the previous ledger.
func (s *Session) activate(p entities.PatientRecord, l ledger.Ledger) {
	s.state = StatePatientActive
	s.patient = p
	s.ledger = l
}

func (s *Session) setNotice(level, message string) {
	s.notice = &Notice{Level: level, Message: message}
}
