// Package reconcile finds stored objects that no statement references.
//
// Orphans appear when a concurrent duplicate upload loses the natural key
// race after its bytes were already written, or when a save fails after a
// successful put.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tendant/simple-statement/pkg/simplestatement"
)

// DefaultMinAge is how old an object must be before it can be an orphan.
// An upload writes its object before the statement row, so younger objects
// may still be waiting for their save.
const DefaultMinAge = time.Hour

// Options scope a reconciliation pass.
type Options struct {
	// Prefix limits the pass to keys under it. Empty scans the whole store.
	Prefix string
	// MinAge skips objects modified less than MinAge ago. Negative values
	// are treated as zero.
	MinAge time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

func (o Options) cutoff() time.Time {
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	return now().Add(-max(o.MinAge, 0))
}

// Report summarizes one reconciliation pass.
type Report struct {
	Scanned int
	// Skipped counts objects too young to judge.
	Skipped int
	Orphans []string
	Deleted int
}

// Orphans lists keys under opts.Prefix that no statement references and
// that are at least opts.MinAge old.
func Orphans(ctx context.Context, lister simplestatement.ObjectLister, repo simplestatement.Repository, opts Options) ([]string, error) {
	report, err := scan(ctx, lister, repo, opts)
	if err != nil {
		return nil, err
	}
	return report.Orphans, nil
}

// Run finds orphans and, when deleter is non-nil, removes them. Delete
// failures are logged and do not stop the pass.
func Run(ctx context.Context, lister simplestatement.ObjectLister, deleter simplestatement.ObjectDeleter, repo simplestatement.Repository, opts Options, logger *slog.Logger) (*Report, error) {
	report, err := scan(ctx, lister, repo, opts)
	if err != nil {
		return nil, err
	}

	if deleter == nil {
		return report, nil
	}
	for _, key := range report.Orphans {
		if err := deleter.Delete(ctx, key); err != nil {
			logger.Warn("failed to delete orphan object", "key", key, "error", err)
			continue
		}
		logger.Info("deleted orphan object", "key", key)
		report.Deleted++
	}
	return report, nil
}

func scan(ctx context.Context, lister simplestatement.ObjectLister, repo simplestatement.Repository, opts Options) (*Report, error) {
	objects, err := lister.ListObjects(ctx, opts.Prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	cutoff := opts.cutoff()
	report := &Report{Scanned: len(objects)}
	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if obj.LastModified.After(cutoff) {
			report.Skipped++
			continue
		}
		exists, err := repo.ExistsByObjectKey(ctx, obj.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to check object key %s: %w", obj.Key, err)
		}
		if !exists {
			report.Orphans = append(report.Orphans, obj.Key)
		}
	}
	return report, nil
}
