package presigned

import "errors"

// ErrNoSecretKey is returned when signing or validating without a configured key.
var ErrNoSecretKey = errors.New("presigned: no secret key configured")

// Request validation failures. All of them mean the link must not be served.
var (
	ErrInvalidPath       = errors.New("presigned: path does not match prefix")
	ErrMissingSignature  = errors.New("presigned: missing signature parameter")
	ErrMissingExpiration = errors.New("presigned: missing expires parameter")
	ErrInvalidExpiration = errors.New("presigned: invalid expires parameter")
	ErrExpired           = errors.New("presigned: link has expired")
	ErrInvalidSignature  = errors.New("presigned: invalid signature")
)

var authErrors = []error{
	ErrInvalidPath,
	ErrMissingSignature,
	ErrMissingExpiration,
	ErrInvalidExpiration,
	ErrExpired,
	ErrInvalidSignature,
}

// IsAuthError reports whether err means the link itself was rejected, as
// opposed to a failure reading the object.
func IsAuthError(err error) bool {
	for _, target := range authErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
