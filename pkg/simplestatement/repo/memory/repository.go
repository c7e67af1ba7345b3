package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-statement/pkg/simplestatement"
)

// Repository implements simplestatement.Repository and
// simplestatement.AuditRepository using in-memory storage
type Repository struct {
	mu           sync.RWMutex
	statements   map[uuid.UUID]*simplestatement.Statement
	byNaturalKey map[naturalKey]uuid.UUID
	byObjectKey  map[string]uuid.UUID
	audit        []*simplestatement.AuditEvent
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		statements:   make(map[uuid.UUID]*simplestatement.Statement),
		byNaturalKey: make(map[naturalKey]uuid.UUID),
		byObjectKey:  make(map[string]uuid.UUID),
	}
}

// naturalKey is the comparable form of simplestatement.NaturalKey. Fields
// stay separate so ids containing any character cannot collide.
type naturalKey struct {
	customerID  string
	accountID   string
	periodStart string
	periodEnd   string
	sha256      string
}

func indexKey(k simplestatement.NaturalKey) naturalKey {
	return naturalKey{
		customerID:  k.CustomerID,
		accountID:   k.AccountID,
		periodStart: k.PeriodStart.Format(simplestatement.DateLayout),
		periodEnd:   k.PeriodEnd.Format(simplestatement.DateLayout),
		sha256:      k.SHA256,
	}
}

// Statement operations

func (r *Repository) FindByNaturalKey(ctx context.Context, key simplestatement.NaturalKey) (*simplestatement.Statement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byNaturalKey[indexKey(key)]
	if !exists {
		return nil, simplestatement.ErrStatementNotFound
	}
	return r.copyOf(id), nil
}

func (r *Repository) Save(ctx context.Context, statement *simplestatement.Statement) (simplestatement.SaveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nk := indexKey(statement.NaturalKey())
	if _, exists := r.byNaturalKey[nk]; exists {
		return simplestatement.Conflict(), nil
	}

	// Create a copy to avoid external modifications
	statementCopy := *statement
	r.statements[statement.ID] = &statementCopy
	r.byNaturalKey[nk] = statement.ID
	r.byObjectKey[statement.ObjectKey] = statement.ID

	saved := statementCopy
	return simplestatement.Saved(&saved), nil
}

func (r *Repository) FindByIDAndCustomer(ctx context.Context, id uuid.UUID, customerID string) (*simplestatement.Statement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	statement, exists := r.statements[id]
	if !exists || statement.CustomerID != customerID {
		return nil, simplestatement.ErrStatementNotFound
	}
	return r.copyOf(id), nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*simplestatement.Statement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, exists := r.statements[id]; !exists {
		return nil, simplestatement.ErrStatementNotFound
	}
	return r.copyOf(id), nil
}

func (r *Repository) FindByCustomer(ctx context.Context, customerID string, page simplestatement.PageRequest) (*simplestatement.StatementPage, error) {
	page = page.Normalize()

	r.mu.RLock()
	var matched []*simplestatement.Statement
	for _, s := range r.statements {
		if s.CustomerID == customerID {
			statementCopy := *s
			matched = append(matched, &statementCopy)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].UploadedAt.Equal(matched[j].UploadedAt) {
			return matched[i].UploadedAt.After(matched[j].UploadedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	return &simplestatement.StatementPage{
		Items: paginate(matched, page),
		Page:  page.Page,
		Size:  page.Size,
		Total: int64(len(matched)),
	}, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, expectedVersion int, status simplestatement.StatementStatus) (*simplestatement.Statement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	statement, exists := r.statements[id]
	if !exists {
		return nil, simplestatement.ErrStatementNotFound
	}
	if statement.Version != expectedVersion {
		return nil, simplestatement.ErrVersionConflict
	}

	statement.Status = status
	statement.Version++
	return r.copyOf(id), nil
}

func (r *Repository) ExistsByObjectKey(ctx context.Context, objectKey string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.byObjectKey[objectKey]
	return exists, nil
}

// Count returns the number of stored statements
func (r *Repository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.statements)
}

// copyOf must be called with r.mu held
func (r *Repository) copyOf(id uuid.UUID) *simplestatement.Statement {
	statementCopy := *r.statements[id]
	return &statementCopy
}

// Audit operations

func (r *Repository) AppendAudit(ctx context.Context, event *simplestatement.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	eventCopy := *event
	r.audit = append(r.audit, &eventCopy)
	return nil
}

func (r *Repository) ListAudit(ctx context.Context, filter simplestatement.AuditFilter) (*simplestatement.AuditPage, error) {
	page := filter.Page.Normalize()

	r.mu.RLock()
	var matched []*simplestatement.AuditEvent
	// Newest first
	for i := len(r.audit) - 1; i >= 0; i-- {
		e := r.audit[i]
		if filter.CustomerID != "" && e.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		eventCopy := *e
		matched = append(matched, &eventCopy)
	}
	r.mu.RUnlock()

	return &simplestatement.AuditPage{
		Items: paginate(matched, page),
		Page:  page.Page,
		Size:  page.Size,
		Total: int64(len(matched)),
	}, nil
}

func paginate[T any](items []T, page simplestatement.PageRequest) []T {
	start := page.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + page.Size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
