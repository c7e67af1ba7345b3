package objectkey

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generator defines the interface for object key generation strategies
type Generator interface {
	// GenerateKey creates an object key for a newly uploaded statement
	GenerateKey(statementID uuid.UUID, metadata *KeyMetadata) string
}

// KeyMetadata contains information that influences key generation
type KeyMetadata struct {
	CustomerID  string
	AccountID   string
	PeriodStart time.Time
	ContentType string
}

// PeriodGenerator lays objects out by owner and statement month:
// customer/{customerId}/account/{accountId}/{YYYY-MM}/{statementId}.{ext}
//
// Operational tooling browses the bucket with this layout, so changing it
// breaks reconcile prefixes for existing data.
type PeriodGenerator struct{}

func NewPeriodGenerator() *PeriodGenerator {
	return &PeriodGenerator{}
}

func (g *PeriodGenerator) GenerateKey(statementID uuid.UUID, metadata *KeyMetadata) string {
	if metadata == nil {
		return fmt.Sprintf("statements/%s.bin", statementID)
	}
	return fmt.Sprintf("customer/%s/account/%s/%s/%s.%s",
		sanitizePathComponent(metadata.CustomerID),
		sanitizePathComponent(metadata.AccountID),
		metadata.PeriodStart.Format("2006-01"),
		statementID,
		Extension(metadata.ContentType))
}

// CustomerPrefix returns the key prefix under which PeriodGenerator places
// all objects of a customer.
func CustomerPrefix(customerID string) string {
	return fmt.Sprintf("customer/%s/", sanitizePathComponent(customerID))
}

var extensions = map[string]string{
	"application/pdf": "pdf",
	"text/csv":        "csv",
	"application/xml": "xml",
	"text/plain":      "txt",
}

// Extension maps a content type to the file extension used in object keys.
// Parameters such as charset are ignored; unknown types map to "bin".
func Extension(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ext, ok := extensions[ct]; ok {
		return ext
	}
	return "bin"
}

// sanitizePathComponent keeps ids readable but stops them from adding
// path segments. Case is preserved so keys match the ids stored in rows.
func sanitizePathComponent(component string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		" ", "_",
	)
	return replacer.Replace(component)
}

// NewDefaultGenerator returns the generator used when none is configured
func NewDefaultGenerator() Generator {
	return NewPeriodGenerator()
}
