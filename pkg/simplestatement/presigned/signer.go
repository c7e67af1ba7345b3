package presigned

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Signer generates and validates HMAC-signed download URLs for object
// stores that cannot presign on their own (filesystem, memory).
type Signer struct {
	secretKey  []byte
	baseURL    string
	pathPrefix string
	now        func() time.Time
}

// New creates a new Signer with the given options
func New(opts ...Option) *Signer {
	s := &Signer{
		pathPrefix: "/objects/",
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if !strings.HasSuffix(s.pathPrefix, "/") {
		s.pathPrefix += "/"
	}
	s.baseURL = strings.TrimSuffix(s.baseURL, "/")

	return s
}

// PathPrefix returns the route prefix the signed URLs point at.
func (s *Signer) PathPrefix() string {
	return s.pathPrefix
}

// SignGet returns a URL granting GET access to key until now+ttl. The object
// is served with contentType, which is covered by the signature.
//
// Example:
//   url, err := signer.SignGet("customer/c1/account/a1/2025-12/id.pdf", 5*time.Minute, "application/pdf")
//   // Returns: /objects/customer/c1/...pdf?content_type=application%2Fpdf&expires=1696789012&signature=abc...
func (s *Signer) SignGet(key string, ttl time.Duration, contentType string) (string, error) {
	if len(s.secretKey) == 0 {
		return "", ErrNoSecretKey
	}

	expiresAt := s.now().Add(ttl).Unix()
	signature := s.generateSignature(s.createPayload(http.MethodGet, key, contentType, expiresAt))

	query := url.Values{}
	query.Set("content_type", contentType)
	query.Set("expires", strconv.FormatInt(expiresAt, 10))
	query.Set("signature", signature)

	return fmt.Sprintf("%s%s%s?%s", s.baseURL, s.pathPrefix, escapeKey(key), query.Encode()), nil
}

// ValidateRequest checks the signature and expiry of r and returns the
// object key and the content type the object must be served with.
func (s *Signer) ValidateRequest(r *http.Request) (key string, contentType string, err error) {
	if len(s.secretKey) == 0 {
		return "", "", ErrNoSecretKey
	}

	if !strings.HasPrefix(r.URL.Path, s.pathPrefix) {
		return "", "", ErrInvalidPath
	}
	key = strings.TrimPrefix(r.URL.Path, s.pathPrefix)
	if key == "" {
		return "", "", ErrInvalidPath
	}

	query := r.URL.Query()
	signature := query.Get("signature")
	expiresStr := query.Get("expires")
	contentType = query.Get("content_type")

	if signature == "" {
		return "", "", ErrMissingSignature
	}
	if expiresStr == "" {
		return "", "", ErrMissingExpiration
	}

	expiresAt, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidExpiration, err)
	}

	// A GET signature also covers HEAD.
	method := r.Method
	if method == http.MethodHead {
		method = http.MethodGet
	}
	if err := s.Validate(method, key, contentType, signature, expiresAt); err != nil {
		return "", "", err
	}
	return key, contentType, nil
}

// Validate validates the signature and expiration for the given request parts
func (s *Signer) Validate(method, key, contentType, signature string, expiresAt int64) error {
	if s.now().Unix() > expiresAt {
		return ErrExpired
	}

	expected := s.generateSignature(s.createPayload(method, key, contentType, expiresAt))

	// Constant-time comparison
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrInvalidSignature
	}

	return nil
}

// createPayload format: METHOD|KEY|CONTENT_TYPE|EXPIRES
func (s *Signer) createPayload(method, key, contentType string, expiresAt int64) string {
	return fmt.Sprintf("%s|%s|%s|%d", method, key, contentType, expiresAt)
}

func (s *Signer) generateSignature(payload string) string {
	h := hmac.New(sha256.New, s.secretKey)
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
