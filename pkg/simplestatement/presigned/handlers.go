package presigned

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/tendant/simple-statement/pkg/simplestatement"
)

// ObjectGetter is the read side of an object store
type ObjectGetter interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// Handler serves objects behind signed URLs produced by a Signer.
// It mimics S3 presigned GET behaviour for stores without native presigning.
type Handler struct {
	signer *Signer
	store  ObjectGetter
}

// NewHandler creates a handler that validates requests with signer and reads from store
func NewHandler(signer *Signer, store ObjectGetter) *Handler {
	return &Handler{signer: signer, store: store}
}

// ServeHTTP handles GET {prefix}{objectKey...}?content_type=..&expires=..&signature=..
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "only GET and HEAD are supported")
		return
	}

	key, contentType, err := h.signer.ValidateRequest(r)
	if err != nil {
		if !IsAuthError(err) {
			slog.Error("Presigned download unavailable", "error", err)
			writeError(w, http.StatusInternalServerError, "presign_unavailable", "signed downloads are not configured")
			return
		}
		slog.Warn("Presigned download rejected", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusForbidden, "invalid_signature", err.Error())
		return
	}

	body, err := h.store.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, simplestatement.ErrObjectNotFound) {
			writeError(w, http.StatusNotFound, "object_not_found", "object not found")
			return
		}
		slog.Error("Presigned download failed", "object_key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "download_failed", "failed to read object")
		return
	}
	defer body.Close()

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("Presigned download interrupted", "object_key", key, "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
	})
}
