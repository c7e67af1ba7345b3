package presigned

import "time"

// Option is a functional option for configuring a Signer
type Option func(*Signer)

// WithSecretKey sets the secret key used for HMAC signing
// The key should be at least 32 bytes for security
func WithSecretKey(key string) Option {
	return func(s *Signer) {
		s.secretKey = []byte(key)
	}
}

// WithBaseURL sets the scheme and host prepended to signed paths,
// e.g. "https://statements.example.com". Empty yields relative URLs.
func WithBaseURL(baseURL string) Option {
	return func(s *Signer) {
		s.baseURL = baseURL
	}
}

// WithPathPrefix sets the route under which objects are served
// Default is "/objects/"
func WithPathPrefix(prefix string) Option {
	return func(s *Signer) {
		s.pathPrefix = prefix
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}
