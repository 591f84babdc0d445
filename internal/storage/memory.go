package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Varun5711/shortlinks/internal/idgen"
	"github.com/Varun5711/shortlinks/internal/models"
)

type MemoryStorage struct {
	mu    sync.RWMutex
	links map[string]*models.LinkRecord
	byURL map[string]map[string]struct{}

	idGen  *idgen.Generator
	nextID int64
}

// NewMemoryStorage builds an in-process store. idGen may be nil, in which
// case IDs are a plain counter.
func NewMemoryStorage(idGen *idgen.Generator) *MemoryStorage {
	return &MemoryStorage{
		links: make(map[string]*models.LinkRecord),
		byURL: make(map[string]map[string]struct{}),
		idGen: idGen,
	}
}

func (s *MemoryStorage) newID() (int64, error) {
	if s.idGen != nil {
		return s.idGen.NextID()
	}
	return atomic.AddInt64(&s.nextID, 1), nil
}

func (s *MemoryStorage) Create(ctx context.Context, link *models.LinkRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.links[link.ShortCode]; exists {
		return 0, ErrDuplicateAlias
	}

	id, err := s.newID()
	if err != nil {
		return 0, unavailable("assign id", err)
	}

	stored := *link
	stored.ID = id
	s.links[stored.ShortCode] = &stored
	s.index(stored.OriginalURL, stored.ShortCode)

	link.ID = id
	return id, nil
}

func (s *MemoryStorage) FindByCode(ctx context.Context, code string) (*models.LinkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, exists := s.links[code]
	if !exists {
		return nil, nil
	}

	copied := *link
	return &copied, nil
}

func (s *MemoryStorage) FindByURL(ctx context.Context, url string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var oldest *models.LinkRecord
	for code := range s.byURL[url] {
		link := s.links[code]
		if oldest == nil || link.ID < oldest.ID {
			oldest = link
		}
	}

	if oldest == nil {
		return "", nil
	}
	return oldest.ShortCode, nil
}

func (s *MemoryStorage) IncrementUsage(ctx context.Context, code string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, exists := s.links[code]
	if !exists {
		return 0, ErrNotFound
	}

	link.UsageCount++
	link.LastUsedAt = now
	return link.UsageCount, nil
}

func (s *MemoryStorage) UpdateAlias(ctx context.Context, code, newCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, exists := s.links[code]
	if !exists {
		return ErrNotFound
	}
	if _, taken := s.links[newCode]; taken {
		return ErrDuplicateAlias
	}

	delete(s.links, code)
	s.unindex(link.OriginalURL, code)

	link.ShortCode = newCode
	s.links[newCode] = link
	s.index(link.OriginalURL, newCode)
	return nil
}

func (s *MemoryStorage) Delete(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, exists := s.links[code]
	if !exists {
		return ErrNotFound
	}

	delete(s.links, code)
	s.unindex(link.OriginalURL, code)
	return nil
}

func (s *MemoryStorage) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for code, link := range s.links {
		if link.ExpiresAt.Before(now) {
			delete(s.links, code)
			s.unindex(link.OriginalURL, code)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStorage) GetStats(ctx context.Context, code string) (*models.LinkRecord, error) {
	return s.FindByCode(ctx, code)
}

func (s *MemoryStorage) AliasExists(ctx context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.links[code]
	return exists, nil
}

func (s *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.links)
}

func (s *MemoryStorage) index(url, code string) {
	codes, ok := s.byURL[url]
	if !ok {
		codes = make(map[string]struct{})
		s.byURL[url] = codes
	}
	codes[code] = struct{}{}
}

func (s *MemoryStorage) unindex(url, code string) {
	codes := s.byURL[url]
	delete(codes, code)
	if len(codes) == 0 {
		delete(s.byURL, url)
	}
}
