package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/ingest"
	"github.com/opensource-finance/harrier/internal/sar"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	cache   domain.Cache
	sars    *sar.Service
	ingest  *ingest.Service
	version string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, sars *sar.Service, ingestSvc *ingest.Service, version string) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		sars:    sars,
		ingest:  ingestSvc,
		version: version,
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListCustomers handles GET /api/customers.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.repo.ListCustomers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, customers)
}

// GetCustomer handles GET /api/customers/{id}.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := h.repo.GetCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

// CreateCustomer handles POST /api/customers. The body is a single
// customer row in the upload format.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in ingest.CustomerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"message": "invalid JSON request body",
		})
		return
	}

	if _, err := h.ingest.Upload(ctx, &ingest.UploadInput{Customers: []ingest.CustomerInput{in}}); err != nil {
		writeError(w, err)
		return
	}

	customers, err := h.repo.ListCustomers(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	for _, c := range customers {
		if c.CustomerID == in.CustomerID {
			writeJSON(w, http.StatusCreated, c)
			return
		}
	}

	writeJSON(w, http.StatusCreated, map[string]string{"customerId": in.CustomerID})
}

// ListTransactions handles GET /api/transactions?customerId=.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customerId")
	if customerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"message": "customerId query parameter is required",
			"field":   "customerId",
		})
		return
	}

	txs, err := h.repo.ListTransactions(r.Context(), customerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// ListAlerts handles GET /api/alerts?customerId=.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customerId")
	if customerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"message": "customerId query parameter is required",
			"field":   "customerId",
		})
		return
	}

	alerts, err := h.repo.ListAlerts(r.Context(), customerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

// Upload handles POST /api/data/upload.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	var input ingest.UploadInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"message": "invalid JSON request body",
		})
		return
	}

	result, err := h.ingest.Upload(r.Context(), &input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// UploadCSV handles POST /api/data/upload-csv?type=customers|transactions.
// The request body is the raw CSV file.
func (h *Handler) UploadCSV(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("type")

	input, err := ingest.ParseCSV(r.Body, kind)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.ingest.Upload(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// ScoreCustomer handles POST /api/risk-scoring/customers/{customerId}.
func (h *Handler) ScoreCustomer(w http.ResponseWriter, r *http.Request) {
	result, err := h.sars.CalculateRisk(r.Context(), chi.URLParam(r, "customerId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListSars handles GET /api/sars.
func (h *Handler) ListSars(w http.ResponseWriter, r *http.Request) {
	sars, err := h.sars.ListSars(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sars)
}

// GetSar handles GET /api/sars/{id}. The response is fully hydrated:
// customer, ordered sections with sentences, and the audit trail.
func (h *Handler) GetSar(w http.ResponseWriter, r *http.Request) {
	report, err := h.sars.GetSar(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GenerateSarRequest is the request body for POST /api/sars/generate.
type GenerateSarRequest struct {
	CustomerID string `json:"customerId"`
}

// GenerateSar handles POST /api/sars/generate.
func (h *Handler) GenerateSar(w http.ResponseWriter, r *http.Request) {
	var req GenerateSarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"message": "invalid JSON request body",
		})
		return
	}
	if req.CustomerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"message": "customerId is required",
			"field":   "customerId",
		})
		return
	}

	report, err := h.sars.Generate(r.Context(), req.CustomerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, report)
}

// EditSectionRequest is the request body for PUT /api/sars/{sarId}/sections/{sectionId}.
type EditSectionRequest struct {
	Content string `json:"content"`
	Reason  string `json:"reason"`
}

// EditSection handles PUT /api/sars/{sarId}/sections/{sectionId}. The
// acting user comes from the X-User-ID header.
func (h *Handler) EditSection(w http.ResponseWriter, r *http.Request) {
	var req EditSectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"message": "invalid JSON request body",
		})
		return
	}

	report, err := h.sars.EditSection(r.Context(),
		chi.URLParam(r, "sarId"),
		chi.URLParam(r, "sectionId"),
		req.Content,
		req.Reason,
		r.Header.Get(UserIDHeader),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// CompareSar handles GET /api/sars/{id}/compare.
func (h *Handler) CompareSar(w http.ResponseWriter, r *http.Request) {
	comparison, err := h.sars.Compare(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comparison)
}

// AuditTrail handles GET /api/sars/{id}/audit-trail.
func (h *Handler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	logs, err := h.sars.GetAuditTrail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// ExplainSentence handles GET /api/sentences/{sentenceId}/explain.
func (h *Handler) ExplainSentence(w http.ResponseWriter, r *http.Request) {
	explanation, err := h.sars.Explain(r.Context(), chi.URLParam(r, "sentenceId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, explanation)
}

// writeError maps domain errors onto HTTP statuses. Validation failures
// carry the offending field; anything unexpected is logged and hidden
// behind a generic 500.
func writeError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"message": ve.Message,
			"field":   ve.Field,
		})
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"message": err.Error(),
		})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"message": "record not found",
		})
	case errors.Is(err, domain.ErrGeneration):
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"message": "narrative generation failed",
		})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"message": "internal server error",
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
