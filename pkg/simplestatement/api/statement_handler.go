package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/tendant/simple-statement/pkg/simplestatement"
	"github.com/tendant/simple-statement/pkg/simplestatement/audit"
	"github.com/tendant/simple-statement/pkg/simplestatement/ratelimit"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temp files.
const multipartMemory = 1 << 20

// StatementHandler handles HTTP requests for statements
type StatementHandler struct {
	service        simplestatement.Service
	limiter        ratelimit.Limiter
	recorder       *audit.Recorder
	validate       *validator.Validate
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewStatementHandler creates a new statement handler
func NewStatementHandler(service simplestatement.Service, limiter ratelimit.Limiter, recorder *audit.Recorder, maxUploadBytes int64, logger *slog.Logger) *StatementHandler {
	min, max, _ := service.TTLBounds()
	return &StatementHandler{
		service:        service,
		limiter:        limiter,
		recorder:       recorder,
		validate:       newValidator(min, max),
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Routes returns the routes for statements
func (h *StatementHandler) Routes() chi.Router {
	r := chi.NewRouter()

	anyScope := RequireScope(ScopeCustomer, ScopeAdmin)
	adminOnly := RequireScope(ScopeAdmin)

	r.With(adminOnly).Post("/", h.Upload)
	r.With(anyScope).Get("/", h.List)
	r.With(anyScope).Get("/{id}", h.Get)
	r.With(anyScope).Post("/{id}/download-link", h.DownloadLink)
	r.With(anyScope).Get("/{id}/download", h.Download)
	r.With(adminOnly).Post("/{id}/revoke", h.Revoke)

	return r
}

// Upload accepts a multipart statement upload
func (h *StatementHandler) Upload(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(h.logger, r)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "Upload exceeds the maximum allowed size")
			return
		}
		badRequest(w, r, "expected a multipart/form-data body")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	form := uploadForm{
		CustomerID:  strings.TrimSpace(r.FormValue("customerId")),
		AccountID:   strings.TrimSpace(r.FormValue("accountId")),
		PeriodStart: strings.TrimSpace(r.FormValue("periodStart")),
		PeriodEnd:   strings.TrimSpace(r.FormValue("periodEnd")),
	}
	if err := h.validate.Struct(form); err != nil {
		badRequest(w, r, validationMessage(err, 0, 0))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, r, "file: is required")
		return
	}
	defer file.Close()

	// datetime validation above guarantees these parse
	periodStart, _ := simplestatement.ParseDate(form.PeriodStart)
	periodEnd, _ := simplestatement.ParseDate(form.PeriodEnd)

	s, err := h.service.Upload(r.Context(), simplestatement.UploadRequest{
		CustomerID:  form.CustomerID,
		AccountID:   form.AccountID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
		Size:        header.Size,
	})
	if err != nil {
		handleServiceError(w, r, log, err)
		return
	}

	h.record(r, s.CustomerID, simplestatement.AuditActionUpload, s.ID)
	log.Info("statement uploaded", "statement_id", s.ID, "customer_id", s.CustomerID, "size_bytes", s.SizeBytes)

	w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+s.ID.String())
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toStatementResponse(s))
}

// List returns the caller's statements, newest first
func (h *StatementHandler) List(w http.ResponseWriter, r *http.Request) {
	customer, ok := customerID(w, r)
	if !ok {
		return
	}
	page, ok := pageParams(w, r)
	if !ok {
		return
	}

	result, err := h.service.ListForCustomer(r.Context(), customer, page)
	if err != nil {
		handleServiceError(w, r, requestLogger(h.logger, r), err)
		return
	}

	items := make([]StatementResponse, 0, len(result.Items))
	for _, s := range result.Items {
		items = append(items, toStatementResponse(s))
	}
	render.JSON(w, r, PageResponse[StatementResponse]{
		Items: items,
		Page:  result.Page,
		Size:  result.Size,
		Total: result.Total,
	})
}

// Get returns one statement owned by the caller
func (h *StatementHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := statementIDParam(w, r)
	if !ok {
		return
	}
	customer, ok := customerID(w, r)
	if !ok {
		return
	}

	s, err := h.service.GetForCustomer(r.Context(), id, customer)
	if err != nil {
		handleServiceError(w, r, requestLogger(h.logger, r), err)
		return
	}
	render.JSON(w, r, toStatementResponse(s))
}

// DownloadLink issues a presigned URL for an owned, active statement
func (h *StatementHandler) DownloadLink(w http.ResponseWriter, r *http.Request) {
	id, ok := statementIDParam(w, r)
	if !ok {
		return
	}

	var req DownloadLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, "invalid JSON body")
		return
	}
	min, max, _ := h.service.TTLBounds()
	if err := h.validate.Struct(req); err != nil {
		badRequest(w, r, validationMessage(err, min, max))
		return
	}

	link, customer, ok := h.issueLink(w, r, id, time.Duration(req.TTLSeconds)*time.Second)
	if !ok {
		return
	}

	h.record(r, customer, simplestatement.AuditActionGenerateLink, id)
	render.JSON(w, r, DownloadLinkResponse{URL: link.URL, ExpiresAt: link.ExpiresAt})
}

// Download redirects to a presigned URL issued with the default TTL
func (h *StatementHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := statementIDParam(w, r)
	if !ok {
		return
	}

	_, _, def := h.service.TTLBounds()
	link, customer, ok := h.issueLink(w, r, id, def)
	if !ok {
		return
	}

	h.record(r, customer, simplestatement.AuditActionDownload, id)
	http.Redirect(w, r, link.URL, http.StatusFound)
}

// issueLink applies the per-statement quota, resolves ownership and presigns.
// The quota is charged before the lookup so probing unknown ids costs the same.
func (h *StatementHandler) issueLink(w http.ResponseWriter, r *http.Request, id uuid.UUID, ttl time.Duration) (*simplestatement.DownloadLink, string, bool) {
	log := requestLogger(h.logger, r)

	allowed, err := h.limiter.Allow(r.Context(), ratelimit.DownloadLinkKey(id))
	if err != nil {
		handleServiceError(w, r, log, err)
		return nil, "", false
	}
	if !allowed {
		downloadLinksTotal.WithLabelValues("rate_limited").Inc()
		handleServiceError(w, r, log, simplestatement.ErrRateLimited)
		return nil, "", false
	}

	customer, ok := customerID(w, r)
	if !ok {
		return nil, "", false
	}

	log.Info("generating download link", "statement_id", id, "ttl_seconds", int(ttl.Seconds()))
	s, err := h.service.GetForCustomer(r.Context(), id, customer)
	if err != nil {
		handleServiceError(w, r, log, err)
		return nil, "", false
	}

	link, err := h.service.PresignDownloadURL(r.Context(), s, ttl)
	if err != nil {
		downloadLinksTotal.WithLabelValues("rejected").Inc()
		handleServiceError(w, r, log, err)
		return nil, "", false
	}

	downloadLinksTotal.WithLabelValues("issued").Inc()
	return link, customer, true
}

// Revoke moves a statement to REVOKED
func (h *StatementHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id, ok := statementIDParam(w, r)
	if !ok {
		return
	}
	log := requestLogger(h.logger, r)

	s, err := h.service.Revoke(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, log, err)
		return
	}

	h.record(r, s.CustomerID, simplestatement.AuditActionRevoke, s.ID)
	log.Info("statement revoked", "statement_id", s.ID, "customer_id", s.CustomerID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *StatementHandler) record(r *http.Request, customerID string, action simplestatement.AuditAction, statementID uuid.UUID) {
	auditEventsTotal.WithLabelValues(string(action)).Inc()
	h.recorder.Record(r.Context(), customerID, action, &statementID, clientIP(r), r.UserAgent())
}
