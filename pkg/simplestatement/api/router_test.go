package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-statement/pkg/simplestatement"
	"github.com/tendant/simple-statement/pkg/simplestatement/audit"
	"github.com/tendant/simple-statement/pkg/simplestatement/presigned"
	"github.com/tendant/simple-statement/pkg/simplestatement/ratelimit"
	"github.com/tendant/simple-statement/pkg/simplestatement/repo/memory"
	memorystorage "github.com/tendant/simple-statement/pkg/simplestatement/storage/memory"
)

var pdfBytes = []byte("%PDF-1.7\n%test statement\n%%EOF\n")

type testServer struct {
	handler http.Handler
	auth    *TokenAuth
	repo    *memory.Repository
	store   *memorystorage.Backend
}

func setupRouter(t *testing.T, limit int) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := memory.New()
	store := memorystorage.New(presigned.New(
		presigned.WithSecretKey("test-secret"),
		presigned.WithBaseURL("http://objects.local"),
	))
	svc, err := simplestatement.New(
		simplestatement.WithRepository(repo),
		simplestatement.WithObjectStore("memory", store),
		simplestatement.WithSpoolDir(t.TempDir()),
		simplestatement.WithLogger(logger),
	)
	require.NoError(t, err)

	limiter, err := ratelimit.NewFixedWindow(limit, time.Minute)
	require.NoError(t, err)

	auth, err := NewTokenAuth([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	handler := NewRouter(RouterConfig{
		Service:         svc,
		AuditRepository: repo,
		Limiter:         limiter,
		Recorder:        audit.NewRecorder(audit.NewRepositorySink(repo), logger),
		Auth:            auth,
		MaxUploadBytes:  1 << 20,
		EnableDevTokens: true,
		Logger:          logger,
	})

	return &testServer{handler: handler, auth: auth, repo: repo, store: store}
}

func (ts *testServer) token(t *testing.T, customerID, scope string) string {
	t.Helper()
	tok, err := ts.auth.Issue(customerID, scope, time.Hour)
	require.NoError(t, err)
	return tok
}

func (ts *testServer) do(t *testing.T, req *http.Request, token string) *httptest.ResponseRecorder {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func uploadBody(t *testing.T, fields map[string]string, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if data != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="statement.pdf"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func defaultFields() map[string]string {
	return map[string]string{
		"customerId":  "c1",
		"accountId":   "a1",
		"periodStart": "2025-12-01",
		"periodEnd":   "2025-12-31",
	}
}

func (ts *testServer) upload(t *testing.T, fields map[string]string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := uploadBody(t, fields, "application/pdf", data)
	req := httptest.NewRequest(http.MethodPost, "/statements", body)
	req.Header.Set("Content-Type", ct)
	return ts.do(t, req, ts.token(t, "ops", "admin"))
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestUpload_CreatedAndDeduplicated(t *testing.T) {
	ts := setupRouter(t, 10)

	w := ts.upload(t, defaultFields(), pdfBytes)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	first := decode[StatementResponse](t, w)
	assert.Equal(t, "c1", first.CustomerID)
	assert.Equal(t, "2025-12-01", first.PeriodStart)
	assert.Equal(t, "ACTIVE", first.Status)
	assert.Equal(t, "/statements/"+first.ID, w.Header().Get("Location"))
	assert.NotEmpty(t, w.Header().Get(CorrelationIDHeader))

	w = ts.upload(t, defaultFields(), pdfBytes)
	require.Equal(t, http.StatusCreated, w.Code)
	second := decode[StatementResponse](t, w)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, ts.store.PutCount())

	events, err := ts.repo.ListAudit(context.Background(), simplestatement.AuditFilter{Action: simplestatement.AuditActionUpload})
	require.NoError(t, err)
	assert.Equal(t, int64(2), events.Total)
}

func TestUpload_Validation(t *testing.T) {
	ts := setupRouter(t, 10)

	fields := defaultFields()
	fields["periodStart"] = "2025-13-01"
	w := ts.upload(t, fields, pdfBytes)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[ErrorResponse](t, w).Error.Message, "periodStart")

	fields = defaultFields()
	fields["periodStart"], fields["periodEnd"] = "2025-12-31", "2025-12-01"
	w = ts.upload(t, fields, pdfBytes)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.upload(t, defaultFields(), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body, ct := uploadBody(t, defaultFields(), "text/plain", pdfBytes)
	req := httptest.NewRequest(http.MethodPost, "/statements", body)
	req.Header.Set("Content-Type", ct)
	w = ts.do(t, req, ts.token(t, "ops", "admin"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", decode[ErrorResponse](t, w).Error.Code)

	assert.Equal(t, 0, ts.store.PutCount())
}

func TestAuthAndScopes(t *testing.T) {
	ts := setupRouter(t, 10)

	req := httptest.NewRequest(http.MethodGet, "/statements", nil)
	w := ts.do(t, req, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/statements", nil)
	w = ts.do(t, req, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	body, ct := uploadBody(t, defaultFields(), "application/pdf", pdfBytes)
	req = httptest.NewRequest(http.MethodPost, "/statements", body)
	req.Header.Set("Content-Type", ct)
	w = ts.do(t, req, ts.token(t, "c1", "customer"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/audit-events", nil)
	w = ts.do(t, req, ts.token(t, "c1", "customer"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/statements", nil)
	w = ts.do(t, req, ts.token(t, "c1", "customer"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetAndList_AreOwnerScoped(t *testing.T) {
	ts := setupRouter(t, 10)
	created := decode[StatementResponse](t, ts.upload(t, defaultFields(), pdfBytes))

	req := httptest.NewRequest(http.MethodGet, "/statements/"+created.ID, nil)
	w := ts.do(t, req, ts.token(t, "c1", "customer"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decode[StatementResponse](t, w).ID)

	req = httptest.NewRequest(http.MethodGet, "/statements/"+created.ID, nil)
	w = ts.do(t, req, ts.token(t, "c2", "customer"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/statements/not-a-uuid", nil)
	w = ts.do(t, req, ts.token(t, "c1", "customer"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/statements?page=0&size=5", nil)
	w = ts.do(t, req, ts.token(t, "c1", "customer"))
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[PageResponse[StatementResponse]](t, w)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 5, page.Size)

	req = httptest.NewRequest(http.MethodGet, "/statements", nil)
	w = ts.do(t, req, ts.token(t, "c2", "customer"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[PageResponse[StatementResponse]](t, w).Items)
}

func TestDownloadLink_ScenarioWithRevoke(t *testing.T) {
	ts := setupRouter(t, 10)
	created := decode[StatementResponse](t, ts.upload(t, defaultFields(), pdfBytes))
	customer := ts.token(t, "c1", "customer")

	w := ts.do(t, jsonRequest(t, http.MethodPost, "/statements/"+created.ID+"/download-link", DownloadLinkRequest{TTLSeconds: 120}), customer)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	link := decode[DownloadLinkResponse](t, w)
	assert.True(t, strings.HasPrefix(link.URL, "http://objects.local/objects/customer/c1/account/a1/2025-12/"))
	assert.WithinDuration(t, time.Now().Add(120*time.Second), link.ExpiresAt, 5*time.Second)

	req := httptest.NewRequest(http.MethodPost, "/statements/"+created.ID+"/revoke", nil)
	w = ts.do(t, req, customer)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, req.Clone(context.Background()), ts.token(t, "ops", "admin"))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, jsonRequest(t, http.MethodPost, "/statements/"+created.ID+"/download-link", DownloadLinkRequest{TTLSeconds: 120}), customer)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Statement is not available for download", decode[ErrorResponse](t, w).Error.Message)

	revokes, err := ts.repo.ListAudit(context.Background(), simplestatement.AuditFilter{Action: simplestatement.AuditActionRevoke})
	require.NoError(t, err)
	require.Len(t, revokes.Items, 1)
	assert.Equal(t, "c1", revokes.Items[0].CustomerID)

	links, err := ts.repo.ListAudit(context.Background(), simplestatement.AuditFilter{Action: simplestatement.AuditActionGenerateLink})
	require.NoError(t, err)
	assert.Equal(t, int64(1), links.Total)
}

func TestDownloadLink_TTLValidation(t *testing.T) {
	ts := setupRouter(t, 10)
	created := decode[StatementResponse](t, ts.upload(t, defaultFields(), pdfBytes))
	customer := ts.token(t, "c1", "customer")

	for _, ttl := range []int{0, 29, 901} {
		w := ts.do(t, jsonRequest(t, http.MethodPost, "/statements/"+created.ID+"/download-link", DownloadLinkRequest{TTLSeconds: ttl}), customer)
		assert.Equal(t, http.StatusBadRequest, w.Code, "ttl %d", ttl)
		assert.Contains(t, decode[ErrorResponse](t, w).Error.Message, "ttlSeconds: must be between 30 and 900")
	}
}

func TestDownloadLink_RateLimited(t *testing.T) {
	ts := setupRouter(t, 2)
	created := decode[StatementResponse](t, ts.upload(t, defaultFields(), pdfBytes))
	customer := ts.token(t, "c1", "customer")
	path := "/statements/" + created.ID + "/download-link"

	for i := 0; i < 2; i++ {
		w := ts.do(t, jsonRequest(t, http.MethodPost, path, DownloadLinkRequest{TTLSeconds: 60}), customer)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := ts.do(t, jsonRequest(t, http.MethodPost, path, DownloadLinkRequest{TTLSeconds: 60}), customer)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", decode[ErrorResponse](t, w).Error.Code)

	// the redirect shares the quota
	req := httptest.NewRequest(http.MethodGet, "/statements/"+created.ID+"/download", nil)
	w = ts.do(t, req, customer)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestDownload_Redirects(t *testing.T) {
	ts := setupRouter(t, 10)
	created := decode[StatementResponse](t, ts.upload(t, defaultFields(), pdfBytes))

	req := httptest.NewRequest(http.MethodGet, "/statements/"+created.ID+"/download", nil)
	req.Header.Set("User-Agent", "statement-test")
	w := ts.do(t, req, ts.token(t, "c1", "customer"))
	require.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "signature=")

	downloads, err := ts.repo.ListAudit(context.Background(), simplestatement.AuditFilter{Action: simplestatement.AuditActionDownload})
	require.NoError(t, err)
	require.Len(t, downloads.Items, 1)
	assert.Equal(t, "statement-test", downloads.Items[0].UserAgent)
}

func TestAuditEvents_Filters(t *testing.T) {
	ts := setupRouter(t, 10)
	ts.upload(t, defaultFields(), pdfBytes)
	other := defaultFields()
	other["customerId"] = "c2"
	ts.upload(t, other, pdfBytes)
	admin := ts.token(t, "ops", "admin")

	req := httptest.NewRequest(http.MethodGet, "/audit-events?customerId=c2", nil)
	w := ts.do(t, req, admin)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[PageResponse[AuditEventResponse]](t, w)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "c2", page.Items[0].CustomerID)
	assert.Equal(t, "UPLOAD", page.Items[0].Action)
	assert.NotNil(t, page.Items[0].StatementID)

	req = httptest.NewRequest(http.MethodGet, "/audit-events?action=upload", nil)
	w = ts.do(t, req, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), decode[PageResponse[AuditEventResponse]](t, w).Total)

	req = httptest.NewRequest(http.MethodGet, "/audit-events?action=DELETE", nil)
	w = ts.do(t, req, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDevToken(t *testing.T) {
	ts := setupRouter(t, 10)

	w := ts.do(t, jsonRequest(t, http.MethodPost, "/dev/token", DevTokenRequest{CustomerID: "c7"}), "")
	require.Equal(t, http.StatusOK, w.Code)
	tok := decode[DevTokenResponse](t, w).Token
	require.NotEmpty(t, tok)

	req := httptest.NewRequest(http.MethodGet, "/statements", nil)
	w = ts.do(t, req, tok)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, jsonRequest(t, http.MethodPost, "/dev/token", DevTokenRequest{CustomerID: "c7", Scope: "root"}), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, jsonRequest(t, http.MethodPost, "/dev/token", DevTokenRequest{}), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCorrelationIDEchoed(t *testing.T) {
	ts := setupRouter(t, 10)

	req := httptest.NewRequest(http.MethodGet, "/statements", nil)
	req.Header.Set(CorrelationIDHeader, "abc-123")
	w := ts.do(t, req, ts.token(t, "c1", "customer"))
	assert.Equal(t, "abc-123", w.Header().Get(CorrelationIDHeader))
}

func TestRecovererReturnsJSON(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recoverer(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal_error", decode[ErrorResponse](t, w).Error.Code)
}
