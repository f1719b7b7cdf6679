package handlers

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tabancura/frontdesk/entities"
	"github.com/tabancura/frontdesk/ledger"
	"github.com/tabancura/frontdesk/logging"
	"github.com/tabancura/frontdesk/render"
	"github.com/tabancura/frontdesk/session"
)

// documentKinds maps the URL name of a document to its kind.
var documentKinds = map[string]render.Kind{
	"budget": render.KindBudget,
	"order":  render.KindOrder,
}

type searchRequest struct {
	By    string `json:"by"`
	Value string `json:"value"`
}

type selectRequest struct {
	Index *int `json:"index"`
}

type addItemsRequest struct {
	Labels []string `json:"labels"`
}

type appendRowRequest struct {
	Row entities.LedgerRow `json:"row"`
}

type removeRowsRequest struct {
	Indices []int `json:"indices"`
}

// AddItemsResponse is the session after adding items, plus the labels that
// were not in the catalog.
type AddItemsResponse struct {
	session.Snapshot
	Missing []string `json:"missing"`
}

// session resolves the {id} URL parameter, writing a 404 when it is unknown.
func (h *HTTPHandlerImpl) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")
	s, ok := h.sessions.Get(id)
	if !ok {
		RespondWithError(w, http.StatusNotFound, "Session not found")
		return nil, false
	}
	return s, true
}

// respondDeskError maps session and ledger errors onto HTTP statuses.
func respondDeskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoActivePatient):
		RespondWithError(w, http.StatusConflict, "No hay paciente activo.")
	case errors.Is(err, session.ErrCandidateOutOfRange):
		RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrRowOutOfRange):
		RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrUnknownField):
		RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrRender):
		RespondWithError(w, http.StatusInternalServerError, "Error al generar el documento.")
	default:
		logging.Error("Unexpected desk error", "error", err)
		RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// CreateSession opens a new operator session.
func (h *HTTPHandlerImpl) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()
	logging.Debug("Session created", "session", s.ID)
	RespondWithJSON(w, http.StatusCreated, s.Snapshot())
}

// GetSession returns the session state.
func (h *HTTPHandlerImpl) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	RespondWithJSON(w, http.StatusOK, s.Snapshot())
}

// DeleteSession ends a session.
func (h *HTTPHandlerImpl) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Delete(chi.URLParam(r, "id")) {
		RespondWithError(w, http.StatusNotFound, "Session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search looks up a patient by RUT or folio.
func (h *HTTPHandlerImpl) Search(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	by := strings.ToLower(strings.TrimSpace(req.By))
	value, err := h.validator.ValidateLookupKey(by, req.Value)
	if err != nil {
		logging.Warn("Unusual user input", "by", req.By, "value", req.Value, "error", err)
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	RespondWithJSON(w, http.StatusOK, h.desk.Search(r.Context(), s, by, value))
}

// Select loads one of the listed candidates as the active patient.
func (h *HTTPHandlerImpl) Select(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req selectRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Index == nil {
		RespondWithError(w, http.StatusBadRequest, "index is required")
		return
	}

	snap, err := h.desk.Select(r.Context(), s, *req.Index)
	if err != nil {
		respondDeskError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, snap)
}

// AddItems adds catalog entries to the ledger by display label.
func (h *HTTPHandlerImpl) AddItems(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req addItemsRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Labels) == 0 {
		RespondWithError(w, http.StatusBadRequest, "labels cannot be empty")
		return
	}

	snap, missing, err := h.desk.AddItems(s, req.Labels)
	if err != nil {
		respondDeskError(w, err)
		return
	}
	if missing == nil {
		missing = []string{}
	}
	RespondWithJSON(w, http.StatusOK, AddItemsResponse{Snapshot: snap, Missing: missing})
}

// AppendRow adds an ad-hoc row to the ledger.
func (h *HTTPHandlerImpl) AppendRow(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req appendRowRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := h.desk.AppendRow(s, req.Row)
	if err != nil {
		respondDeskError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusCreated, snap)
}

// EditRow overwrites fields of one ledger row.
func (h *HTTPHandlerImpl) EditRow(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid row index")
		return
	}

	var updates map[string]any
	if err := decodeJSON(r, &updates); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(updates) == 0 {
		RespondWithError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	snap, err := h.desk.EditRow(s, index, updates)
	if err != nil {
		respondDeskError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, snap)
}

// RemoveRows deletes ledger rows by position.
func (h *HTTPHandlerImpl) RemoveRows(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req removeRowsRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := h.desk.RemoveRows(s, req.Indices)
	if err != nil {
		respondDeskError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, snap)
}

// Document renders the budget or the clinical order as a PDF download.
func (h *HTTPHandlerImpl) Document(w http.ResponseWriter, r *http.Request) {
	kind, known := documentKinds[chi.URLParam(r, "kind")]
	if !known {
		RespondWithError(w, http.StatusNotFound, "Unknown document")
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	doc, err := h.desk.Generate(s, kind)
	if err != nil {
		respondDeskError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.FileName}))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Content)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(doc.Content)
}
