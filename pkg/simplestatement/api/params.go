package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tendant/simple-statement/pkg/simplestatement"
)

func statementIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, r, "id: must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// pageParams reads ?page=&size=; absent values fall back to defaults
func pageParams(w http.ResponseWriter, r *http.Request) (simplestatement.PageRequest, bool) {
	var page simplestatement.PageRequest
	q := r.URL.Query()

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(w, r, "page: must be a non-negative integer")
			return page, false
		}
		page.Page = n
	}
	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(w, r, "size: must be a positive integer")
			return page, false
		}
		page.Size = n
	}
	return page.Normalize(), true
}
