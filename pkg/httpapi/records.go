package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/transer/vortice/pkg/storage"
)

// RecordStore is the tenant-scoped store contract shared by the in-memory
// and PostgreSQL implementations. Every method reads the tenant binding
// from the context; an unbound context sees and writes nothing.
type RecordStore interface {
	Put(ctx context.Context, rec storage.Record) error
	Get(ctx context.Context, id string) (storage.Record, error)
	List(ctx context.Context) ([]storage.Record, error)
}

// RecordHandler serves the warehouse record routes for one office. It is
// mounted behind the admission pipeline and a tenant-param check, so the
// context always carries a binding matching the addressed office.
type RecordHandler struct {
	store RecordStore
}

// NewRecordHandler creates a handler over the record store.
func NewRecordHandler(store RecordStore) *RecordHandler {
	return &RecordHandler{store: store}
}

type recordView struct {
	ID       string `json:"id"`
	OfficeID string `json:"officeId"`
	Payload  string `json:"payload"`
}

type putRecordRequest struct {
	ID      string `json:"id"`
	Payload string `json:"payload"`
}

// List returns the records visible under the bound tenant.
func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	recs, err := h.store.List(r.Context())
	if err != nil {
		slog.Error("listing records", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]recordView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, recordView{ID: rec.ID, OfficeID: rec.TenantID.String(), Payload: rec.Payload})
	}
	writeJSON(w, http.StatusOK, out)
}

// Get returns one record. Records outside the bound tenant report as 404.
func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.Get(r.Context(), r.PathValue("recordID"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		slog.Error("fetching record", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, recordView{ID: rec.ID, OfficeID: rec.TenantID.String(), Payload: rec.Payload})
}

// Create stores a record owned by the bound tenant. The store forces the
// ownership; a client cannot plant records in another office.
func (h *RecordHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req putRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	err := h.store.Put(r.Context(), storage.Record{ID: req.ID, Payload: req.Payload})
	switch {
	case err == nil:
		w.WriteHeader(http.StatusCreated)
	case errors.Is(err, storage.ErrConflict):
		writeError(w, http.StatusConflict, "record already exists")
	case errors.Is(err, storage.ErrDenied):
		writeError(w, http.StatusForbidden, "access denied")
	default:
		slog.Error("storing record", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
