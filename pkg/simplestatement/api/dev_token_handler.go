package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

// DevTokenTTL is the lifetime of tokens issued by the dev endpoint
const DevTokenTTL = time.Hour

// DevTokenHandler issues tokens without authentication. Only mount it in
// development.
type DevTokenHandler struct {
	auth     *TokenAuth
	validate *validator.Validate
	logger   *slog.Logger
}

func NewDevTokenHandler(auth *TokenAuth, logger *slog.Logger) *DevTokenHandler {
	return &DevTokenHandler{auth: auth, validate: newValidator(0, 0), logger: logger}
}

func (h *DevTokenHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/token", h.Token)
	return r
}

// Token signs a token for the requested customer and scope (default "customer")
func (h *DevTokenHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req DevTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, "invalid JSON body")
		return
	}
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	if err := h.validate.Struct(req); err != nil {
		badRequest(w, r, validationMessage(err, 0, 0))
		return
	}

	scope := strings.Join(strings.Fields(req.Scope), " ")
	if scope == "" {
		scope = ScopeCustomer
	}

	token, err := h.auth.Issue(req.CustomerID, scope, DevTokenTTL)
	if err != nil {
		handleServiceError(w, r, requestLogger(h.logger, r), err)
		return
	}
	render.JSON(w, r, DevTokenResponse{Token: token})
}
