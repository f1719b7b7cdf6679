package session

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tabancura/frontdesk/catalog"
	"github.com/tabancura/frontdesk/entities"
	"github.com/tabancura/frontdesk/interfaces"
	"github.com/tabancura/frontdesk/ledger"
	"github.com/tabancura/frontdesk/logging"
	"github.com/tabancura/frontdesk/metrics"
	"github.com/tabancura/frontdesk/ordersapi"
	"github.com/tabancura/frontdesk/render"
	"github.com/tabancura/frontdesk/validation"
)

// pushQueueSize bounds pending best-effort pushes. When full, new pushes are
// dropped with a warning.
const pushQueueSize = 64

// Operator-facing messages.
const (
	msgConnection     = "Error de conexión."
	msgManualMode     = "RUT no registrado. Iniciando orden manual."
	msgFolioNotFound  = "Folio no encontrado."
	msgNoDetail       = "La cotización no tiene detalle registrado."
	msgUnknownCodes   = "Códigos sin arancel: %s"
	msgMissingLabels  = "Prestaciones no encontradas en el arancel: %s"
	msgCandidateCount = "%d registro(s) encontrado(s)."
)

// CatalogSource serves the live catalog.
type CatalogSource interface {
	GetCatalog() *catalog.Catalog
}

// Document is a generated PDF ready to download.
type Document struct {
	FileName string
	Content  []byte
}

type pushJob struct {
	operation string
	run       func(ctx context.Context) error
}

// Desk runs the front-desk operations against a session: patient lookup,
// ledger edits and document generation. Ledger and audit pushes to the
// order service run in order on a background worker and never fail the
// operator's action. At most pushQueueSize pushes wait in the queue; a push
// that finds it full, or arrives after Close, is dropped with a warning and
// never retried.
type Desk struct {
	catalog     CatalogSource
	orders      interfaces.OrdersClient
	renderer    interfaces.DocumentRenderer
	pushTimeout time.Duration

	mu     sync.Mutex // guards closed and sends on pushes
	closed bool
	pushes chan pushJob
	done   chan struct{}
}

// NewDesk creates a desk and starts its push worker. Call Close to drain it.
func NewDesk(c CatalogSource, orders interfaces.OrdersClient, renderer interfaces.DocumentRenderer, pushTimeout time.Duration) *Desk {
	d := &Desk{
		catalog:     c,
		orders:      orders,
		renderer:    renderer,
		pushTimeout: pushTimeout,
		pushes:      make(chan pushJob, pushQueueSize),
		done:        make(chan struct{}),
	}
	go d.pushWorker()
	return d
}

func (d *Desk) pushWorker() {
	defer close(d.done)
	for job := range d.pushes {
		ctx, cancel := context.WithTimeout(context.Background(), d.pushTimeout)
		if err := job.run(ctx); err != nil {
			logging.Warn("Best-effort push failed", "operation", job.operation, "error", err)
		}
		cancel()
	}
}

func (d *Desk) enqueue(job pushJob) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		logging.Warn("Desk closed, dropping push", "operation", job.operation)
		return
	}
	select {
	case d.pushes <- job:
	default:
		logging.Warn("Push queue full, dropping push", "operation", job.operation)
	}
}

// Close stops accepting pushes and waits for queued ones to finish.
func (d *Desk) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.pushes)
	}
	d.mu.Unlock()
	<-d.done
}

// Search looks up quotes by national ID or folio. An ID with no record opens
// a manual order for that ID; a folio with no record only informs. A
// connection failure leaves the session unchanged.
func (d *Desk) Search(ctx context.Context, s *Session, by, value string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notice = nil

	var res ordersapi.PatientsResult
	byRUT := by == validation.LookupByRUT
	if byRUT {
		res = d.orders.SearchByDocument(ctx, value)
	} else {
		res = d.orders.SearchByFolio(ctx, value)
	}

	switch res.Status {
	case ordersapi.StatusFound:
		s.state = StateCandidateList
		s.candidates = res.Patients
		s.setNotice(NoticeInfo, fmt.Sprintf(msgCandidateCount, len(res.Patients)))

	case ordersapi.StatusNotFound:
		if byRUT {
			s.candidates = nil
			s.activate(entities.ManualPatient(value), ledger.Ledger{})
			s.setNotice(NoticeInfo, msgManualMode)
			logging.Info("Manual order started", "session", s.ID)
		} else {
			s.setNotice(NoticeInfo, msgFolioNotFound)
		}

	default:
		s.setNotice(NoticeError, msgConnection)
		logging.Warn("Patient lookup failed", "session", s.ID, "by", by, "error", res.Err)
	}

	return s.snapshotLocked()
}

// Select loads a candidate as the active patient and reconciles its quote
// detail against the catalog. The previous ledger is discarded.
func (d *Desk) Select(ctx context.Context, s *Session, index int) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notice = nil

	if index < 0 || index >= len(s.candidates) {
		return s.snapshotLocked(), fmt.Errorf("%w: %d of %d", ErrCandidateOutOfRange, index, len(s.candidates))
	}
	p := s.candidates[index]

	res := d.orders.OrderDetail(ctx, p.Folio)
	switch res.Status {
	case ordersapi.StatusFound:
		c := d.catalog.GetCatalog()
		l := ledger.Reconcile(res.Codes, c)
		s.activate(p, l)
		if unknown := unknownCodes(l, c); len(unknown) > 0 {
			s.setNotice(NoticeWarning, fmt.Sprintf(msgUnknownCodes, strings.Join(unknown, ", ")))
		}

	case ordersapi.StatusNotFound:
		s.activate(p, ledger.Ledger{})
		s.setNotice(NoticeInfo, msgNoDetail)

	default:
		s.setNotice(NoticeError, msgConnection)
		logging.Warn("Order detail lookup failed", "session", s.ID, "folio", p.Folio, "error", res.Err)
	}

	return s.snapshotLocked(), nil
}

func unknownCodes(l ledger.Ledger, c *catalog.Catalog) []string {
	var out []string
	seen := make(map[string]bool)
	for _, row := range l {
		if _, ok := c.Lookup(row.Code); !ok && !seen[row.Code] {
			seen[row.Code] = true
			out = append(out, row.Code)
		}
	}
	return out
}

// AddItems appends catalog entries by display label and collapses exact
// duplicates. Labels not in the catalog are returned and reported.
func (d *Desk) AddItems(s *Session, labels []string) (Snapshot, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePatientActive {
		return s.snapshotLocked(), nil, ErrNoActivePatient
	}
	s.notice = nil

	l, missing := ledger.AddItems(s.ledger, labels, d.catalog.GetCatalog())
	s.ledger = l
	if len(missing) > 0 {
		s.setNotice(NoticeWarning, fmt.Sprintf(msgMissingLabels, strings.Join(missing, ", ")))
	}
	d.pushLedgerLocked(s)

	return s.snapshotLocked(), missing, nil
}

// RemoveRows deletes rows by position. Out-of-range positions are ignored.
func (d *Desk) RemoveRows(s *Session, indices []int) (Snapshot, error) {
	return d.mutate(s, func(l ledger.Ledger) (ledger.Ledger, error) {
		return ledger.RemoveRows(l, indices), nil
	})
}

// EditRow overwrites fields of one row.
func (d *Desk) EditRow(s *Session, index int, updates map[string]any) (Snapshot, error) {
	return d.mutate(s, func(l ledger.Ledger) (ledger.Ledger, error) {
		return ledger.EditRow(l, index, updates)
	})
}

// AppendRow adds an ad-hoc row typed in by the operator.
func (d *Desk) AppendRow(s *Session, row entities.LedgerRow) (Snapshot, error) {
	return d.mutate(s, func(l ledger.Ledger) (ledger.Ledger, error) {
		return ledger.AppendRow(l, row), nil
	})
}

func (d *Desk) mutate(s *Session, fn func(ledger.Ledger) (ledger.Ledger, error)) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePatientActive {
		return s.snapshotLocked(), ErrNoActivePatient
	}
	s.notice = nil

	l, err := fn(s.ledger)
	if err != nil {
		return s.snapshotLocked(), err
	}
	s.ledger = l
	d.pushLedgerLocked(s)

	return s.snapshotLocked(), nil
}

// pushLedgerLocked queues the current ledger for the order service. Manual
// patients have no remote quote to update.
func (d *Desk) pushLedgerLocked(s *Session) {
	if s.patient.IsManual() {
		return
	}
	folio := s.patient.Folio
	rows := append([]entities.LedgerRow{}, s.ledger...)
	d.enqueue(pushJob{
		operation: "push_ledger",
		run: func(ctx context.Context) error {
			return d.orders.PushLedger(ctx, folio, rows)
		},
	})
}

// Generate renders a document for the active patient. The session is not
// changed; a rendering failure leaves the ledger intact. Generating an order
// queues an audit entry.
func (d *Desk) Generate(s *Session, kind render.Kind) (Document, error) {
	s.mu.Lock()
	if s.state != StatePatientActive {
		s.mu.Unlock()
		return Document{}, ErrNoActivePatient
	}
	p := s.patient
	l := append(ledger.Ledger{}, s.ledger...)
	s.mu.Unlock()

	var buf bytes.Buffer
	if err := d.renderer.Render(&buf, kind, p, l); err != nil {
		logging.Error("Document generation failed", "session", s.ID, "kind", string(kind), "error", err)
		return Document{}, fmt.Errorf("%w: %v", ErrRender, err)
	}
	metrics.DocumentsGeneratedTotal.WithLabelValues(strings.ToLower(string(kind))).Inc()

	if kind == render.KindOrder {
		entry := entities.AuditEntry{
			PatientRUT:  p.DocumentID,
			PatientName: p.PatientName,
			SourceFolio: p.Folio,
			ItemCount:   len(l),
			Codes:       l.Codes(),
		}
		d.enqueue(pushJob{
			operation: "record_order",
			run: func(ctx context.Context) error {
				return d.orders.RecordOrder(ctx, entry)
			},
		})
	}

	return Document{FileName: render.FileName(kind, p.Folio), Content: buf.Bytes()}, nil
}

// History returns past order-generation audit entries.
func (d *Desk) History(ctx context.Context) ordersapi.HistoryResult {
	return d.orders.AuditHistory(ctx)
}
