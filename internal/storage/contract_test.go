package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Varun5711/shortlinks/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLink(code, url string, expiresAt time.Time) *models.LinkRecord {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.LinkRecord{
		OwnerID:              1,
		OriginalURL:          url,
		ShortCode:            code,
		ExpiresAt:            expiresAt.UTC().Truncate(time.Microsecond),
		LastUsedAt:           now,
		CreatedAt:            now,
		RequiresAuthToMutate: true,
	}
}

// runContract exercises the Storage semantics every implementation shares.
func runContract(t *testing.T, newStore func(t *testing.T) Storage) {
	ctx := context.Background()
	hour := time.Now().Add(time.Hour)

	t.Run("create and find", func(t *testing.T) {
		s := newStore(t)
		link := newLink("abcdefghij", "https://example.com/a", hour)

		id, err := s.Create(ctx, link)
		require.NoError(t, err)
		assert.NotZero(t, id)
		assert.Equal(t, id, link.ID)

		got, err := s.FindByCode(ctx, "abcdefghij")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "https://example.com/a", got.OriginalURL)
		assert.Equal(t, int64(0), got.UsageCount)
		assert.True(t, got.RequiresAuthToMutate)

		exists, err := s.AliasExists(ctx, "abcdefghij")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("find missing returns nil", func(t *testing.T) {
		s := newStore(t)

		got, err := s.FindByCode(ctx, "missing000")
		require.NoError(t, err)
		assert.Nil(t, got)

		stats, err := s.GetStats(ctx, "missing000")
		require.NoError(t, err)
		assert.Nil(t, stats)
	})

	t.Run("duplicate alias rejected", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Create(ctx, newLink("dupdupdup1", "https://example.com/a", hour))
		require.NoError(t, err)

		_, err = s.Create(ctx, newLink("dupdupdup1", "https://example.com/b", hour))
		assert.ErrorIs(t, err, ErrDuplicateAlias)

		got, err := s.FindByCode(ctx, "dupdupdup1")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/a", got.OriginalURL)
	})

	t.Run("concurrent creates with same alias", func(t *testing.T) {
		s := newStore(t)
		const workers = 8

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			conflicts int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := s.Create(ctx, newLink("racerace01", fmt.Sprintf("https://example.com/%d", i), hour))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case errors.Is(err, ErrDuplicateAlias):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, successes)
		assert.Equal(t, workers-1, conflicts)
	})

	t.Run("find by url returns oldest", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Create(ctx, newLink("first00001", "https://example.com/same", hour))
		require.NoError(t, err)
		_, err = s.Create(ctx, newLink("second0001", "https://example.com/same", hour))
		require.NoError(t, err)

		code, err := s.FindByURL(ctx, "https://example.com/same")
		require.NoError(t, err)
		assert.Equal(t, "first00001", code)

		code, err = s.FindByURL(ctx, "https://example.com/none")
		require.NoError(t, err)
		assert.Empty(t, code)
	})

	t.Run("increment usage", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Create(ctx, newLink("counter001", "https://example.com/c", hour))
		require.NoError(t, err)

		usedAt := time.Now().Add(time.Minute).UTC().Truncate(time.Microsecond)
		for i := 1; i <= 5; i++ {
			n, err := s.IncrementUsage(ctx, "counter001", usedAt)
			require.NoError(t, err)
			assert.Equal(t, int64(i), n)
		}

		stats, err := s.GetStats(ctx, "counter001")
		require.NoError(t, err)
		assert.Equal(t, int64(5), stats.UsageCount)
		assert.True(t, stats.LastUsedAt.Equal(usedAt))

		_, err = s.IncrementUsage(ctx, "missing000", usedAt)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Create(ctx, newLink("hotkey0001", "https://example.com/hot", hour))
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.IncrementUsage(ctx, "hotkey0001", time.Now())
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		stats, err := s.GetStats(ctx, "hotkey0001")
		require.NoError(t, err)
		assert.Equal(t, int64(50), stats.UsageCount)
	})

	t.Run("update alias", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Create(ctx, newLink("oldcode001", "https://example.com/u", hour))
		require.NoError(t, err)
		_, err = s.Create(ctx, newLink("taken00001", "https://example.com/t", hour))
		require.NoError(t, err)

		assert.ErrorIs(t, s.UpdateAlias(ctx, "oldcode001", "taken00001"), ErrDuplicateAlias)
		assert.ErrorIs(t, s.UpdateAlias(ctx, "missing000", "whatever01"), ErrNotFound)

		require.NoError(t, s.UpdateAlias(ctx, "oldcode001", "newcode001"))

		old, err := s.FindByCode(ctx, "oldcode001")
		require.NoError(t, err)
		assert.Nil(t, old)

		moved, err := s.FindByCode(ctx, "newcode001")
		require.NoError(t, err)
		require.NotNil(t, moved)
		assert.Equal(t, "https://example.com/u", moved.OriginalURL)

		code, err := s.FindByURL(ctx, "https://example.com/u")
		require.NoError(t, err)
		assert.Equal(t, "newcode001", code)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Create(ctx, newLink("deleteme01", "https://example.com/d", hour))
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, "deleteme01"))
		assert.ErrorIs(t, s.Delete(ctx, "deleteme01"), ErrNotFound)

		got, err := s.FindByCode(ctx, "deleteme01")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("delete expired removes exactly the expired set", func(t *testing.T) {
		s := newStore(t)
		now := time.Now()

		_, err := s.Create(ctx, newLink("expired001", "https://example.com/e1", now.Add(-time.Hour)))
		require.NoError(t, err)
		_, err = s.Create(ctx, newLink("expired002", "https://example.com/e2", now.Add(-time.Second)))
		require.NoError(t, err)
		_, err = s.Create(ctx, newLink("livelink01", "https://example.com/l", now.Add(time.Hour)))
		require.NoError(t, err)

		// Still readable before the sweep runs.
		stale, err := s.FindByCode(ctx, "expired001")
		require.NoError(t, err)
		assert.NotNil(t, stale)

		n, err := s.DeleteExpired(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = s.DeleteExpired(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		live, err := s.FindByCode(ctx, "livelink01")
		require.NoError(t, err)
		assert.NotNil(t, live)

		gone, err := s.FindByCode(ctx, "expired002")
		require.NoError(t, err)
		assert.Nil(t, gone)
	})

	t.Run("ping", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(ctx))
	})
}
