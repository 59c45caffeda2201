// Package devapi serves the expenses REST API from an in-memory store so the
// UI can run without the real backend.
package devapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"expenseui/internal/api/memory"
	"expenseui/internal/api/rest"
	"expenseui/internal/core"
	"expenseui/internal/log"
)

const maxBodyBytes = 64 << 10

// expenseRequest uses pointers so a missing field can be told apart from a
// zero value.
type expenseRequest struct {
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
	BaseAmount  *decimal.Decimal `json:"base_amount"`
	TaxRate     *decimal.Decimal `json:"tax_rate"`
	IsRecurring *bool            `json:"is_recurring"`
}

// Server answers the expenses API.
type Server struct {
	store *memory.Store
}

// NewHandler returns the API handler backed by store. Every request carries
// logger in its context.
func NewHandler(store *memory.Store, logger *log.Logger) http.Handler {
	s := &Server{store: store}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/auth/status", s.handleAuthStatus)
	mux.Handle("GET /api/expenses", s.requireSession(s.handleList))
	mux.Handle("POST /api/expenses", s.requireSession(s.handleCreate))
	mux.Handle("PUT /api/expenses/{id}", s.requireSession(s.handleUpdate))
	mux.Handle("DELETE /api/expenses/{id}", s.requireSession(s.handleDelete))

	return log.Middleware(logger)(log.ComponentMiddleware(log.ComponentDevAPI)(mux))
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	st, _ := s.store.AuthStatus(r.Context())
	writeJSON(w, http.StatusOK, rest.AuthBody(st.LoggedIn, st.Username))
}

// requireSession rejects every expense route while the dev user is logged out.
func (s *Server) requireSession(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if st, _ := s.store.AuthStatus(r.Context()); !st.LoggedIn {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r)
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	page := 1
	if v := strings.TrimSpace(r.URL.Query().Get("page")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid page")
			return
		}
		page = n
	}
	filter := core.NewFilter(r.URL.Query().Get("category"))

	l := s.store.Paginate(page, filter)
	writeJSON(w, http.StatusOK, rest.ListBody(l.Items, l.Page, l.Pages, l.HasPrev, l.HasNext))
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	d, ok := decodeDraft(w, r)
	if !ok {
		return
	}
	rec, err := s.store.CreateExpense(r.Context(), d)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Expense created",
		log.FieldOperation, log.OpCreate,
		log.FieldRecordID, rec.ID,
		log.FieldCategory, rec.Category)
	writeJSON(w, http.StatusCreated, rest.RecordBody(rec))
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	d, ok := decodeDraft(w, r)
	if !ok {
		return
	}
	rec, err := s.store.UpdateExpense(r.Context(), id, d)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Expense updated",
		log.FieldOperation, log.OpUpdate,
		log.FieldRecordID, rec.ID)
	writeJSON(w, http.StatusOK, rest.RecordBody(rec))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteExpense(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Expense deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldRecordID, id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Expense deleted"})
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, memory.ErrNotFound) {
		status = http.StatusNotFound
	}
	log.FromContext(r.Context()).WarnContext(r.Context(), "Expense write rejected",
		log.FieldStatusCode, status,
		log.FieldError, err.Error())
	writeError(w, status, core.UserMessage(err))
}

func recordID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid expense id")
		return 0, false
	}
	return id, true
}

// decodeDraft reads and validates a create/update body, answering 400 itself
// when the body is unusable.
func decodeDraft(w http.ResponseWriter, r *http.Request) (core.Draft, bool) {
	var req expenseRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return core.Draft{}, false
	}

	var missing []string
	if req.Description == nil {
		missing = append(missing, "description")
	}
	if req.Category == nil {
		missing = append(missing, "category")
	}
	if req.BaseAmount == nil {
		missing = append(missing, "base_amount")
	}
	if req.TaxRate == nil {
		missing = append(missing, "tax_rate")
	}
	if len(missing) > 0 {
		writeError(w, http.StatusBadRequest, "Missing required fields: "+strings.Join(missing, ", "))
		return core.Draft{}, false
	}

	d := core.Draft{
		Description: strings.TrimSpace(*req.Description),
		Category:    strings.TrimSpace(*req.Category),
		BaseAmount:  *req.BaseAmount,
		TaxRate:     *req.TaxRate,
	}
	if req.IsRecurring != nil {
		d.IsRecurring = *req.IsRecurring
	}
	return d, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, rest.ErrorBody(msg))
}
