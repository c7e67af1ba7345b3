package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-statement/pkg/simplestatement"
)

const naturalKeyConstraint = "uq_statements_natural_key"

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements simplestatement.Repository and
// simplestatement.AuditRepository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// NewPool opens a pool and pings it. When schema is set every connection
// gets it as search_path.
func NewPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		if !isSchemaName(schema) {
			return nil, fmt.Errorf("invalid schema name %q", schema)
		}
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", schema))
			return err
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// isSchemaName reports whether s is a plain identifier safe to interpolate.
func isSchemaName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return simplestatement.ErrStatementNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("duplicate entry on %s", pgErr.ConstraintName)
		case "23514": // check_violation
			return fmt.Errorf("check constraint %s violated", pgErr.ConstraintName)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func isNaturalKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == naturalKeyConstraint
}

const statementColumns = `id, customer_id, account_id, period_start, period_end, object_key,
               content_type, size_bytes, sha256, uploaded_at, status, version`

func scanStatement(row pgx.Row) (*simplestatement.Statement, error) {
	var s simplestatement.Statement
	var status string
	err := row.Scan(
		&s.ID, &s.CustomerID, &s.AccountID, &s.PeriodStart, &s.PeriodEnd, &s.ObjectKey,
		&s.ContentType, &s.SizeBytes, &s.SHA256, &s.UploadedAt, &status, &s.Version)
	if err != nil {
		return nil, err
	}
	s.Status = simplestatement.StatementStatus(status)
	s.PeriodStart = simplestatement.DateOf(s.PeriodStart)
	s.PeriodEnd = simplestatement.DateOf(s.PeriodEnd)
	s.UploadedAt = s.UploadedAt.UTC()
	return &s, nil
}

// Statement operations

func (r *Repository) FindByNaturalKey(ctx context.Context, key simplestatement.NaturalKey) (*simplestatement.Statement, error) {
	query := `
        SELECT ` + statementColumns + `
        FROM statements
        WHERE customer_id = $1 AND account_id = $2 AND period_start = $3
          AND period_end = $4 AND sha256 = $5`

	s, err := scanStatement(r.db.QueryRow(ctx, query,
		key.CustomerID, key.AccountID, key.PeriodStart, key.PeriodEnd, key.SHA256))
	if err != nil {
		return nil, r.handlePostgresError("find statement by natural key", err)
	}
	return s, nil
}

func (r *Repository) Save(ctx context.Context, statement *simplestatement.Statement) (simplestatement.SaveResult, error) {
	query := `
		INSERT INTO statements (
			id, customer_id, account_id, period_start, period_end, object_key,
			content_type, size_bytes, sha256, uploaded_at, status, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + statementColumns

	saved, err := scanStatement(r.db.QueryRow(ctx, query,
		statement.ID, statement.CustomerID, statement.AccountID,
		statement.PeriodStart, statement.PeriodEnd, statement.ObjectKey,
		statement.ContentType, statement.SizeBytes, statement.SHA256,
		statement.UploadedAt, string(statement.Status), statement.Version))
	if err != nil {
		if isNaturalKeyViolation(err) {
			return simplestatement.Conflict(), nil
		}
		return simplestatement.SaveResult{}, r.handlePostgresError("save statement", err)
	}

	return simplestatement.Saved(saved), nil
}

func (r *Repository) FindByIDAndCustomer(ctx context.Context, id uuid.UUID, customerID string) (*simplestatement.Statement, error) {
	query := `
        SELECT ` + statementColumns + `
        FROM statements WHERE id = $1 AND customer_id = $2`

	s, err := scanStatement(r.db.QueryRow(ctx, query, id, customerID))
	if err != nil {
		return nil, r.handlePostgresError("find statement for customer", err)
	}
	return s, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*simplestatement.Statement, error) {
	query := `
        SELECT ` + statementColumns + `
        FROM statements WHERE id = $1`

	s, err := scanStatement(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.handlePostgresError("find statement", err)
	}
	return s, nil
}

func (r *Repository) FindByCustomer(ctx context.Context, customerID string, page simplestatement.PageRequest) (*simplestatement.StatementPage, error) {
	page = page.Normalize()

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM statements WHERE customer_id = $1`, customerID).Scan(&total); err != nil {
		return nil, r.handlePostgresError("count statements", err)
	}

	query := `
        SELECT ` + statementColumns + `
        FROM statements WHERE customer_id = $1
        ORDER BY uploaded_at DESC, id
        LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, customerID, page.Size, page.Offset())
	if err != nil {
		return nil, r.handlePostgresError("list statements", err)
	}
	defer rows.Close()

	items := []*simplestatement.Statement{}
	for rows.Next() {
		s, err := scanStatement(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan statement", err)
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list statements", err)
	}

	return &simplestatement.StatementPage{
		Items: items,
		Page:  page.Page,
		Size:  page.Size,
		Total: total,
	}, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, expectedVersion int, status simplestatement.StatementStatus) (*simplestatement.Statement, error) {
	query := `
		UPDATE statements SET status = $3, version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING ` + statementColumns

	s, err := scanStatement(r.db.QueryRow(ctx, query, id, expectedVersion, string(status)))
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, r.handlePostgresError("update statement status", err)
	}

	// Nothing updated: either the row is gone or its version moved on
	if _, findErr := r.FindByID(ctx, id); findErr != nil {
		return nil, findErr
	}
	return nil, simplestatement.ErrVersionConflict
}

func (r *Repository) ExistsByObjectKey(ctx context.Context, objectKey string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM statements WHERE object_key = $1)`, objectKey).Scan(&exists)
	if err != nil {
		return false, r.handlePostgresError("check object key", err)
	}
	return exists, nil
}

// Audit operations

func (r *Repository) AppendAudit(ctx context.Context, event *simplestatement.AuditEvent) error {
	query := `
		INSERT INTO audit_events (id, customer_id, action, statement_id, ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		event.ID, event.CustomerID, string(event.Action), event.StatementID,
		nullIfEmpty(event.IP), nullIfEmpty(event.UserAgent), event.CreatedAt)
	if err != nil {
		return r.handlePostgresError("append audit event", err)
	}
	return nil
}

func (r *Repository) ListAudit(ctx context.Context, filter simplestatement.AuditFilter) (*simplestatement.AuditPage, error) {
	page := filter.Page.Normalize()
	where := `WHERE ($1 = '' OR customer_id = $1) AND ($2 = '' OR action = $2)`

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_events `+where,
		filter.CustomerID, string(filter.Action)).Scan(&total); err != nil {
		return nil, r.handlePostgresError("count audit events", err)
	}

	query := `
		SELECT id, customer_id, action, statement_id, COALESCE(ip, ''), COALESCE(user_agent, ''), created_at
		FROM audit_events ` + where + `
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4`

	rows, err := r.db.Query(ctx, query, filter.CustomerID, string(filter.Action), page.Size, page.Offset())
	if err != nil {
		return nil, r.handlePostgresError("list audit events", err)
	}
	defer rows.Close()

	items := []*simplestatement.AuditEvent{}
	for rows.Next() {
		var e simplestatement.AuditEvent
		var action string
		if err := rows.Scan(&e.ID, &e.CustomerID, &action, &e.StatementID, &e.IP, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, r.handlePostgresError("scan audit event", err)
		}
		e.Action = simplestatement.AuditAction(action)
		e.CreatedAt = e.CreatedAt.UTC()
		items = append(items, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list audit events", err)
	}

	return &simplestatement.AuditPage{
		Items: items,
		Page:  page.Page,
		Size:  page.Size,
		Total: total,
	}, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
