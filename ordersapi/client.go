// Package ordersapi is the client for the remote quote/order service. Lookups
// return explicit results (found, not found, connection error) instead of
// errors so callers decide what each outcome means for the operator.
package ordersapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tabancura/frontdesk/entities"
	"github.com/tabancura/frontdesk/logging"
	"github.com/tabancura/frontdesk/metrics"
)

// Status is the outcome of a remote call.
type Status int

const (
	StatusFound Status = iota
	StatusNotFound
	StatusConnectionError
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	case StatusConnectionError:
		return "connection_error"
	default:
		return "unknown"
	}
}

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 10 << 20

// errNotFound is internal; it is translated into StatusNotFound.
var errNotFound = errors.New("not found")

// PatientsResult is the outcome of a patient search.
type PatientsResult struct {
	Status   Status
	Patients []entities.PatientRecord
	Err      error
}

// DetailResult is the outcome of an order detail request.
type DetailResult struct {
	Status Status
	Codes  []string
	Err    error
}

// HistoryResult is the outcome of an audit history request.
type HistoryResult struct {
	Status  Status
	Entries []entities.AuditEntry
	Err     error
}

// Client talks to the order service. Lookups and pushes use separate HTTP
// clients so pushes can carry a much shorter timeout.
type Client struct {
	baseURL string
	lookup  *http.Client
	push    *http.Client
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, lookupTimeout, pushTimeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		lookup:  &http.Client{Timeout: lookupTimeout},
		push:    &http.Client{Timeout: pushTimeout},
	}
}

// SearchByDocument looks up quotes by national ID.
func (c *Client) SearchByDocument(ctx context.Context, documentID string) PatientsResult {
	return c.searchPatients(ctx, "search_document", "/cotizaciones/buscar/"+url.PathEscape(strings.TrimSpace(documentID)))
}

// SearchByFolio looks up quotes by folio.
func (c *Client) SearchByFolio(ctx context.Context, folio string) PatientsResult {
	return c.searchPatients(ctx, "search_folio", "/cotizaciones/folio/"+url.PathEscape(strings.TrimSpace(folio)))
}

func (c *Client) searchPatients(ctx context.Context, operation, path string) PatientsResult {
	body, err := c.get(ctx, path)
	if err != nil {
		status := classify(err)
		observe(operation, status)
		return PatientsResult{Status: status, Err: err}
	}

	patients, err := decodeOneOrMany(body)
	if err != nil {
		observe(operation, StatusConnectionError)
		return PatientsResult{Status: StatusConnectionError, Err: fmt.Errorf("malformed %s response: %w", operation, err)}
	}
	if len(patients) == 0 {
		observe(operation, StatusNotFound)
		return PatientsResult{Status: StatusNotFound}
	}

	observe(operation, StatusFound)
	return PatientsResult{Status: StatusFound, Patients: patients}
}

// decodeOneOrMany accepts either a single object or an array of them.
func decodeOneOrMany(body []byte) ([]entities.PatientRecord, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}
	if body[0] == '[' {
		var many []entities.PatientRecord
		if err := json.Unmarshal(body, &many); err != nil {
			return nil, err
		}
		return many, nil
	}
	var one entities.PatientRecord
	if err := json.Unmarshal(body, &one); err != nil {
		return nil, err
	}
	return []entities.PatientRecord{one}, nil
}

// OrderDetail fetches the item codes of a quote, in the order the service
// returns them.
func (c *Client) OrderDetail(ctx context.Context, folio string) DetailResult {
	const operation = "order_detail"

	body, err := c.get(ctx, "/cotizaciones/detalle/"+url.PathEscape(strings.TrimSpace(folio)))
	if err != nil {
		status := classify(err)
		observe(operation, status)
		return DetailResult{Status: status, Err: err}
	}

	var items []entities.OrderItem
	if err := json.Unmarshal(body, &items); err != nil {
		observe(operation, StatusConnectionError)
		return DetailResult{Status: StatusConnectionError, Err: fmt.Errorf("malformed detail response: %w", err)}
	}

	codes := make([]string, len(items))
	for i, item := range items {
		codes[i] = strings.TrimSpace(string(item.ExamCode))
	}

	observe(operation, StatusFound)
	return DetailResult{Status: StatusFound, Codes: codes}
}

// AuditHistory lists past order-generation audit entries.
func (c *Client) AuditHistory(ctx context.Context) HistoryResult {
	const operation = "audit_history"

	body, err := c.get(ctx, "/auditoria/historial")
	if err != nil {
		status := classify(err)
		observe(operation, status)
		return HistoryResult{Status: status, Err: err}
	}

	var entries []entities.AuditEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		observe(operation, StatusConnectionError)
		return HistoryResult{Status: StatusConnectionError, Err: fmt.Errorf("malformed history response: %w", err)}
	}

	observe(operation, StatusFound)
	return HistoryResult{Status: StatusFound, Entries: entries}
}

// PushLedger sends the edited ledger back to the service.
func (c *Client) PushLedger(ctx context.Context, folio string, rows []entities.LedgerRow) error {
	if rows == nil {
		rows = []entities.LedgerRow{}
	}
	return c.post(ctx, "push_ledger", "/cotizaciones/actualizar", entities.LedgerUpdate{Folio: folio, Items: rows})
}

// RecordOrder posts an audit entry for a generated order document.
func (c *Client) RecordOrder(ctx context.Context, entry entities.AuditEntry) error {
	if entry.Codes == nil {
		entry.Codes = []string{}
	}
	return c.post(ctx, "record_order", "/auditoria/ordenes", entry)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.lookup.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn("Failed to close response body", "error", err)
		}
	}()

	logging.Debug("Order service responded", "path", path, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, fmt.Errorf("GET %s returned %d: %w", path, resp.StatusCode, errNotFound)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

func (c *Client) post(ctx context.Context, operation, path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.push.Do(req)
	if err != nil {
		observe(operation, StatusConnectionError)
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn("Failed to close response body", "error", err)
		}
	}()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observe(operation, StatusNotFound)
		return fmt.Errorf("POST %s returned %d", path, resp.StatusCode)
	}
	observe(operation, StatusFound)
	return nil
}

func classify(err error) Status {
	if errors.Is(err, errNotFound) {
		return StatusNotFound
	}
	return StatusConnectionError
}

func observe(operation string, status Status) {
	metrics.RemoteRequestsTotal.WithLabelValues(operation, status.String()).Inc()
}
