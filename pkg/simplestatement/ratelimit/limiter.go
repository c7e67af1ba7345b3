// Package ratelimit provides per-key fixed-window request limiters.
//
// A window opens on the first request for a key and admits at most Limit
// requests until it is Window old. The next request after that opens a
// fresh window.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Limiter admits or rejects one request for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

const (
	DefaultLimit  = 10
	DefaultWindow = time.Minute
)

// DownloadLinkKey is the limiter key shared by link issuance and redirects
// for one statement.
func DownloadLinkKey(statementID fmt.Stringer) string {
	return "download-link:" + statementID.String()
}

func validate(limit int, window time.Duration) error {
	if limit <= 0 {
		return fmt.Errorf("rate limit must be positive, got %d", limit)
	}
	if window <= 0 {
		return fmt.Errorf("rate limit window must be positive, got %s", window)
	}
	return nil
}
