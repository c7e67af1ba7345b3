package simplestatement

import (
	"io"
	"time"
)

// UploadRequest contains parameters for uploading a statement
type UploadRequest struct {
	CustomerID  string
	AccountID   string
	PeriodStart time.Time
	PeriodEnd   time.Time
	ContentType string
	Body        io.Reader
	// Size is the declared payload size, or -1 when unknown. Zero is rejected.
	Size int64
}

// ParseDate parses a YYYY-MM-DD period date into UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
