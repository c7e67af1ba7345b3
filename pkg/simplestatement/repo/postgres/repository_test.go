package postgres_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tendant/simple-statement/pkg/simplestatement"
	"github.com/tendant/simple-statement/pkg/simplestatement/repo/postgres"
)

// setupRepository starts PostgreSQL in a container, applies migrations and
// returns a repository bound to it.
func setupRepository(t *testing.T) *postgres.Repository {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION is not set")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		tcpostgres.WithDatabase("statements_test"),
		tcpostgres.WithUsername("statements"),
		tcpostgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, postgres.Migrate(dsn, "", logger))

	pool, err := postgres.NewPool(ctx, dsn, "")
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return postgres.NewWithPool(pool)
}

func newStatement(customerID, accountID, sha string) *simplestatement.Statement {
	id := uuid.New()
	return &simplestatement.Statement{
		ID:          id,
		CustomerID:  customerID,
		AccountID:   accountID,
		PeriodStart: time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		ObjectKey:   fmt.Sprintf("customer/%s/account/%s/2025-12/%s.pdf", customerID, accountID, id),
		ContentType: "application/pdf",
		SizeBytes:   4,
		SHA256:      sha,
		UploadedAt:  time.Now().UTC().Truncate(time.Microsecond),
		Status:      simplestatement.StatementStatusActive,
		Version:     1,
	}
}

func TestPostgresRepository_StatementLifecycle(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	s := newStatement("c1", "a1", "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08")
	result, err := repo.Save(ctx, s)
	require.NoError(t, err)
	require.Equal(t, simplestatement.SaveOutcomeSaved, result.Outcome)
	assert.Equal(t, s.PeriodStart, result.Statement.PeriodStart)
	assert.Equal(t, s.UploadedAt, result.Statement.UploadedAt)

	byKey, err := repo.FindByNaturalKey(ctx, s.NaturalKey())
	require.NoError(t, err)
	assert.Equal(t, s.ID, byKey.ID)

	_, err = repo.FindByIDAndCustomer(ctx, s.ID, "c2")
	assert.ErrorIs(t, err, simplestatement.ErrStatementNotFound)

	exists, err := repo.ExistsByObjectKey(ctx, s.ObjectKey)
	require.NoError(t, err)
	assert.True(t, exists)

	dup := newStatement("c1", "a1", s.SHA256)
	conflict, err := repo.Save(ctx, dup)
	require.NoError(t, err)
	assert.Equal(t, simplestatement.SaveOutcomeConflict, conflict.Outcome)

	revoked, err := repo.UpdateStatus(ctx, s.ID, 1, simplestatement.StatementStatusRevoked)
	require.NoError(t, err)
	assert.Equal(t, simplestatement.StatementStatusRevoked, revoked.Status)
	assert.Equal(t, 2, revoked.Version)

	_, err = repo.UpdateStatus(ctx, s.ID, 1, simplestatement.StatementStatusRevoked)
	assert.ErrorIs(t, err, simplestatement.ErrVersionConflict)

	_, err = repo.UpdateStatus(ctx, uuid.New(), 1, simplestatement.StatementStatusRevoked)
	assert.ErrorIs(t, err, simplestatement.ErrStatementNotFound)
}

func TestPostgresRepository_ConcurrentSaveSameNaturalKey(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	const workers = 10
	var wg sync.WaitGroup
	results := make([]simplestatement.SaveResult, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = repo.Save(ctx, newStatement("c1", "a1", "same-digest"))
		}(i)
	}
	wg.Wait()

	saved := 0
	for i := range results {
		require.NoError(t, errs[i])
		if results[i].Outcome == simplestatement.SaveOutcomeSaved {
			saved++
		}
	}
	assert.Equal(t, 1, saved)

	page, err := repo.FindByCustomer(ctx, "c1", simplestatement.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
}

func TestPostgresRepository_Audit(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sid := uuid.New()
	events := []*simplestatement.AuditEvent{
		{ID: uuid.New(), CustomerID: "c1", Action: simplestatement.AuditActionUpload, StatementID: &sid, IP: "10.0.0.1", UserAgent: "curl", CreatedAt: base},
		{ID: uuid.New(), CustomerID: "c1", Action: simplestatement.AuditActionRevoke, StatementID: &sid, IP: "cli", CreatedAt: base.Add(time.Minute)},
		{ID: uuid.New(), CustomerID: "c2", Action: simplestatement.AuditActionUpload, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range events {
		require.NoError(t, repo.AppendAudit(ctx, e))
	}

	all, err := repo.ListAudit(ctx, simplestatement.AuditFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)
	require.Len(t, all.Items, 3)
	assert.Equal(t, events[2].ID, all.Items[0].ID)
	assert.Nil(t, all.Items[0].StatementID)

	c1Revokes, err := repo.ListAudit(ctx, simplestatement.AuditFilter{CustomerID: "c1", Action: simplestatement.AuditActionRevoke})
	require.NoError(t, err)
	require.Len(t, c1Revokes.Items, 1)
	assert.Equal(t, "cli", c1Revokes.Items[0].IP)
	require.NotNil(t, c1Revokes.Items[0].StatementID)
	assert.Equal(t, sid, *c1Revokes.Items[0].StatementID)
}
