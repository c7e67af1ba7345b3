package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-statement/pkg/simplestatement"
)

// AuditHandler serves the audit trail to administrators
type AuditHandler struct {
	repo   simplestatement.AuditRepository
	logger *slog.Logger
}

func NewAuditHandler(repo simplestatement.AuditRepository, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{repo: repo, logger: logger}
}

func (h *AuditHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(RequireScope(ScopeAdmin)).Get("/", h.List)
	return r
}

// List returns audit events filtered by ?customerId= and ?action=, newest first
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	page, ok := pageParams(w, r)
	if !ok {
		return
	}

	filter := simplestatement.AuditFilter{
		CustomerID: strings.TrimSpace(r.URL.Query().Get("customerId")),
		Page:       page,
	}
	if v := strings.TrimSpace(r.URL.Query().Get("action")); v != "" {
		action := simplestatement.AuditAction(strings.ToUpper(v))
		if !action.IsValid() {
			badRequest(w, r, "action: must be one of UPLOAD, GENERATE_LINK, REVOKE, DOWNLOAD")
			return
		}
		filter.Action = action
	}

	result, err := h.repo.ListAudit(r.Context(), filter)
	if err != nil {
		handleServiceError(w, r, requestLogger(h.logger, r), err)
		return
	}

	items := make([]AuditEventResponse, 0, len(result.Items))
	for _, e := range result.Items {
		items = append(items, toAuditEventResponse(e))
	}
	render.JSON(w, r, PageResponse[AuditEventResponse]{
		Items: items,
		Page:  result.Page,
		Size:  result.Size,
		Total: result.Total,
	})
}
