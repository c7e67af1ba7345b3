package simplestatement_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-statement/pkg/simplestatement"
)

func TestNewAuditEvent(t *testing.T) {
	id := uuid.New()

	event := simplestatement.NewAuditEvent("c1", simplestatement.AuditActionGenerateLink, &id, "10.0.0.1", "curl/8.0")

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, "c1", event.CustomerID)
	assert.Equal(t, simplestatement.AuditActionGenerateLink, event.Action)
	require.NotNil(t, event.StatementID)
	assert.Equal(t, id, *event.StatementID)
	assert.Equal(t, "10.0.0.1", event.IP)
	assert.Equal(t, "curl/8.0", event.UserAgent)
	assert.False(t, event.CreatedAt.IsZero())
}

func TestNewAuditEventWithoutStatement(t *testing.T) {
	event := simplestatement.NewAuditEvent("c1", simplestatement.AuditActionUpload, nil, "", "")
	assert.Nil(t, event.StatementID)
}

func TestTruncateUserAgent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{name: "empty", in: "", want: 0},
		{name: "short", in: "Mozilla/5.0", want: 11},
		{name: "exact", in: strings.Repeat("a", 512), want: 512},
		{name: "long", in: strings.Repeat("a", 2000), want: 512},
		{name: "multibyte", in: strings.Repeat("é", 600), want: 512},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := simplestatement.TruncateUserAgent(tt.in)
			assert.Equal(t, tt.want, len([]rune(got)))
		})
	}
}

func TestAuditActionIsValid(t *testing.T) {
	for _, a := range []simplestatement.AuditAction{
		simplestatement.AuditActionUpload,
		simplestatement.AuditActionGenerateLink,
		simplestatement.AuditActionRevoke,
		simplestatement.AuditActionDownload,
	} {
		assert.True(t, a.IsValid(), a)
	}
	assert.False(t, simplestatement.AuditAction("DELETE").IsValid())
}
