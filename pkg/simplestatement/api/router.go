package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-statement/pkg/simplestatement"
	"github.com/tendant/simple-statement/pkg/simplestatement/audit"
	"github.com/tendant/simple-statement/pkg/simplestatement/ratelimit"
)

// RouterConfig carries the dependencies of the /api/v1 surface
type RouterConfig struct {
	Service         simplestatement.Service
	AuditRepository simplestatement.AuditRepository
	Limiter         ratelimit.Limiter
	Recorder        *audit.Recorder
	Auth            *TokenAuth
	MaxUploadBytes  int64
	EnableDevTokens bool
	Logger          *slog.Logger
}

// NewRouter builds the /api/v1 router. Mount it at /api/v1.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = audit.NewRecorder(nil, logger)
	}

	r := chi.NewRouter()
	r.Use(CorrelationID)
	r.Use(Recoverer(logger))
	r.Use(Metrics)

	if cfg.EnableDevTokens {
		r.Mount("/dev", NewDevTokenHandler(cfg.Auth, logger).Routes())
	}

	r.Group(func(r chi.Router) {
		r.Use(cfg.Auth.Verifier())
		r.Use(Authenticator)

		statements := NewStatementHandler(cfg.Service, cfg.Limiter, recorder, cfg.MaxUploadBytes, logger)
		r.Mount("/statements", statements.Routes())
		r.Mount("/audit-events", NewAuditHandler(cfg.AuditRepository, logger).Routes())
	})

	return r
}
