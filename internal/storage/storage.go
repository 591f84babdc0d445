package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Varun5711/shortlinks/internal/models"
)

var (
	ErrNotFound         = errors.New("short code not found")
	ErrDuplicateAlias   = errors.New("short code already in use")
	ErrStoreUnavailable = errors.New("link store unavailable")
)

// Storage is the authoritative short code -> LinkRecord mapping. Every
// mutating method is a single atomic operation against the backing store.
type Storage interface {
	// Create inserts the record and returns its assigned ID. A short code
	// that is already present yields ErrDuplicateAlias.
	Create(ctx context.Context, link *models.LinkRecord) (int64, error)

	// FindByCode returns nil, nil when the code is absent. Expired records
	// that have not been swept yet are still returned.
	FindByCode(ctx context.Context, code string) (*models.LinkRecord, error)

	// FindByURL returns the short code of the oldest record for url, or "".
	FindByURL(ctx context.Context, url string) (string, error)

	IncrementUsage(ctx context.Context, code string, now time.Time) (int64, error)
	UpdateAlias(ctx context.Context, code, newCode string) error
	Delete(ctx context.Context, code string) error

	// DeleteExpired removes every record with expires_at < now in one step.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	GetStats(ctx context.Context, code string) (*models.LinkRecord, error)
	AliasExists(ctx context.Context, code string) (bool, error)
	Ping(ctx context.Context) error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, ErrStoreUnavailable, err)
}
