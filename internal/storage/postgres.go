package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Varun5711/shortlinks/internal/database"
	"github.com/Varun5711/shortlinks/internal/idgen"
	"github.com/Varun5711/shortlinks/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const linkColumns = `id, owner_id, original_url, short_code, expires_at, last_used_at, created_at, usage_count, requires_auth_to_mutate`

type PostgresStorage struct {
	db      *database.DBManager
	idGen   *idgen.Generator
	timeout time.Duration
}

func NewPostgresStorage(db *database.DBManager, idGen *idgen.Generator, timeout time.Duration) *PostgresStorage {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PostgresStorage{
		db:      db,
		idGen:   idGen,
		timeout: timeout,
	}
}

func (s *PostgresStorage) Create(ctx context.Context, link *models.LinkRecord) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	id, err := s.idGen.NextID()
	if err != nil {
		return 0, unavailable("assign id", err)
	}

	query := `
		INSERT INTO links (id, owner_id, original_url, short_code, expires_at, last_used_at, created_at, usage_count, requires_auth_to_mutate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = s.db.Write().Exec(ctx, query,
		id,
		link.OwnerID,
		link.OriginalURL,
		link.ShortCode,
		link.ExpiresAt,
		link.LastUsedAt,
		link.CreatedAt,
		link.UsageCount,
		link.RequiresAuthToMutate,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateAlias
		}
		return 0, unavailable("save link", err)
	}

	link.ID = id
	return id, nil
}

// FindByCode reads from the primary so a redirect issued right after a
// shorten never misses on replica lag.
func (s *PostgresStorage) FindByCode(ctx context.Context, code string) (*models.LinkRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	link, err := scanLink(s.db.Write().QueryRow(ctx,
		`SELECT `+linkColumns+` FROM links WHERE short_code = $1`, code))
	if err != nil {
		return nil, unavailable("get link", err)
	}
	return link, nil
}

func (s *PostgresStorage) FindByURL(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT short_code
		FROM links
		WHERE original_url = $1
		ORDER BY id
		LIMIT 1
	`

	var code string
	err := s.db.Read().QueryRow(ctx, query, url).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", unavailable("search link", err)
	}
	return code, nil
}

func (s *PostgresStorage) IncrementUsage(ctx context.Context, code string, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		UPDATE links
		SET usage_count = usage_count + 1,
			last_used_at = $2
		WHERE short_code = $1
		RETURNING usage_count
	`

	var count int64
	err := s.db.Write().QueryRow(ctx, query, code, now).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, unavailable("increment usage", err)
	}
	return count, nil
}

func (s *PostgresStorage) UpdateAlias(ctx context.Context, code, newCode string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmdTag, err := s.db.Write().Exec(ctx,
		`UPDATE links SET short_code = $2 WHERE short_code = $1`, code, newCode)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateAlias
		}
		return unavailable("update alias", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) Delete(ctx context.Context, code string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmdTag, err := s.db.Write().Exec(ctx, `DELETE FROM links WHERE short_code = $1`, code)
	if err != nil {
		return unavailable("delete link", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmdTag, err := s.db.Write().Exec(ctx, `DELETE FROM links WHERE expires_at < $1`, now)
	if err != nil {
		return 0, unavailable("delete expired links", err)
	}

	return cmdTag.RowsAffected(), nil
}

func (s *PostgresStorage) GetStats(ctx context.Context, code string) (*models.LinkRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	link, err := scanLink(s.db.Read().QueryRow(ctx,
		`SELECT `+linkColumns+` FROM links WHERE short_code = $1`, code))
	if err != nil {
		return nil, unavailable("get stats", err)
	}
	return link, nil
}

func (s *PostgresStorage) AliasExists(ctx context.Context, code string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var exists bool
	err := s.db.Write().QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM links WHERE short_code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, unavailable("check alias", err)
	}
	return exists, nil
}

func (s *PostgresStorage) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// scanLink returns nil, nil on pgx.ErrNoRows.
func scanLink(row pgx.Row) (*models.LinkRecord, error) {
	var link models.LinkRecord
	err := row.Scan(
		&link.ID,
		&link.OwnerID,
		&link.OriginalURL,
		&link.ShortCode,
		&link.ExpiresAt,
		&link.LastUsedAt,
		&link.CreatedAt,
		&link.UsageCount,
		&link.RequiresAuthToMutate,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
