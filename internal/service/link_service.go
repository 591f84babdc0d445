// Package service orchestrates the link operations on top of the store,
// the alias generator, the redirect cache and the usage tracker.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Varun5711/shortlinks/internal/alias"
	"github.com/Varun5711/shortlinks/internal/cache"
	"github.com/Varun5711/shortlinks/internal/logger"
	"github.com/Varun5711/shortlinks/internal/models"
	"github.com/Varun5711/shortlinks/internal/qrcode"
	"github.com/Varun5711/shortlinks/internal/storage"
	"github.com/Varun5711/shortlinks/internal/usage"
)

var (
	ErrUnauthorized  = errors.New("authentication required")
	ErrInvalidURL    = errors.New("original_url must be an absolute http or https URL")
	ErrInvalidExpiry = errors.New("expires_at is required")
	ErrNotFound      = storage.ErrNotFound
)

type ShortenResult struct {
	// Created is false when the requested alias is already taken.
	Created   bool
	ShortCode string
	ShortURL  string
	QRCode    string
}

type ChangeAliasResult struct {
	Found     bool
	ShortCode string
}

type StatsResult struct {
	Found       bool
	OriginalURL string
	CreatedAt   time.Time
	UsageCount  int64
	LastUsedAt  time.Time
}

type SearchResult struct {
	Found     bool
	ShortCode string
}

type Options struct {
	// BaseURL is the public prefix short codes are appended to.
	BaseURL string
	QRCode  bool
}

type LinkService struct {
	store   storage.Storage
	aliases *alias.Generator
	cache   *cache.LinkCache
	tracker *usage.Tracker
	opts    Options
	log     *logger.Logger
	now     func() time.Time
}

func NewLinkService(
	store storage.Storage,
	aliases *alias.Generator,
	linkCache *cache.LinkCache,
	tracker *usage.Tracker,
	opts Options,
	log *logger.Logger,
) *LinkService {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &LinkService{
		store:   store,
		aliases: aliases,
		cache:   linkCache,
		tracker: tracker,
		opts:    opts,
		log:     log,
		now:     time.Now,
	}
}

// Shorten creates a link. A taken caller alias is reported through
// ShortenResult.Created rather than as an error.
func (s *LinkService) Shorten(ctx context.Context, req models.ShortenRequest) (ShortenResult, error) {
	if err := validateURL(req.OriginalURL); err != nil {
		return ShortenResult{}, err
	}
	if req.ExpiresAt.IsZero() {
		return ShortenResult{}, ErrInvalidExpiry
	}

	custom := alias.IsCustom(req.CustomAlias)
	now := s.now().UTC()

	for attempt := 1; attempt <= s.aliases.MaxAttempts(); attempt++ {
		code, err := s.aliases.Resolve(ctx, req.OriginalURL, req.CustomAlias)
		if errors.Is(err, alias.ErrAliasConflict) {
			return ShortenResult{}, nil
		}
		if err != nil {
			return ShortenResult{}, err
		}

		link := &models.LinkRecord{
			OwnerID:              req.OwnerID,
			OriginalURL:          req.OriginalURL,
			ShortCode:            code,
			ExpiresAt:            req.ExpiresAt.UTC(),
			LastUsedAt:           now,
			CreatedAt:            now,
			RequiresAuthToMutate: true,
		}

		// The unique index is the real arbiter; AliasExists above only
		// saves a round trip in the common case.
		_, err = s.store.Create(context.WithoutCancel(ctx), link)
		if errors.Is(err, storage.ErrDuplicateAlias) {
			if custom {
				return ShortenResult{}, nil
			}
			s.log.Debug("Generated code %s taken on insert, retrying", code)
			continue
		}
		if err != nil {
			return ShortenResult{}, err
		}

		s.log.Info("Shortened %s -> %s (owner %d)", link.OriginalURL, code, link.OwnerID)
		return s.shortenResult(code), nil
	}

	return ShortenResult{}, alias.ErrGenerationExhausted
}

func (s *LinkService) shortenResult(code string) ShortenResult {
	res := ShortenResult{
		Created:   true,
		ShortCode: code,
		ShortURL:  s.opts.BaseURL + "/" + code,
	}

	if s.opts.QRCode {
		qr, err := qrcode.DataURL(res.ShortURL, qrcode.DefaultSize)
		if err != nil {
			s.log.Warn("QR code for %s skipped: %v", code, err)
		} else {
			res.QRCode = qr
		}
	}
	return res
}

// Redirect resolves code and counts the visit. Every successful call
// increments usage exactly once, cache hit or not.
func (s *LinkService) Redirect(ctx context.Context, code string, meta models.ClickMeta) (string, error) {
	link, version, ok := s.cache.GetLink(ctx, code)
	if !ok {
		var err error
		link, err = s.store.FindByCode(ctx, code)
		if err != nil {
			return "", err
		}
		if link == nil {
			return "", ErrNotFound
		}
		s.cache.SetLink(ctx, link, version)
	}

	if _, err := s.tracker.Track(ctx, link, meta); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.cache.Invalidate(ctx, code)
		}
		return "", err
	}

	return link.OriginalURL, nil
}

func (s *LinkService) Delete(ctx context.Context, code string, principal *models.Principal) error {
	if principal == nil {
		return ErrUnauthorized
	}

	link, err := s.store.FindByCode(ctx, code)
	if err != nil {
		return err
	}
	if link == nil {
		return ErrNotFound
	}

	if err := s.store.Delete(context.WithoutCancel(ctx), code); err != nil {
		return err
	}

	s.cache.Invalidate(ctx, code)
	s.cache.InvalidateSearch(ctx, link.OriginalURL)

	s.log.Info("Deleted %s (by owner %d)", code, principal.OwnerID)
	return nil
}

// ChangeAlias replaces code with a freshly derived one.
func (s *LinkService) ChangeAlias(ctx context.Context, code string, principal *models.Principal) (ChangeAliasResult, error) {
	if principal == nil {
		return ChangeAliasResult{}, ErrUnauthorized
	}

	link, err := s.store.FindByCode(ctx, code)
	if err != nil {
		return ChangeAliasResult{}, err
	}
	if link == nil {
		return ChangeAliasResult{}, nil
	}

	for attempt := 1; attempt <= s.aliases.MaxAttempts(); attempt++ {
		newCode, err := s.aliases.Derive(ctx, link.OriginalURL)
		if err != nil {
			return ChangeAliasResult{}, err
		}

		err = s.store.UpdateAlias(context.WithoutCancel(ctx), code, newCode)
		switch {
		case errors.Is(err, storage.ErrDuplicateAlias):
			s.log.Debug("Derived code %s taken on update, retrying", newCode)
			continue
		case errors.Is(err, storage.ErrNotFound):
			s.cache.Invalidate(ctx, code)
			return ChangeAliasResult{}, nil
		case err != nil:
			return ChangeAliasResult{}, err
		}

		s.cache.Invalidate(ctx, code, newCode)
		s.cache.InvalidateSearch(ctx, link.OriginalURL)

		s.log.Info("Changed alias %s -> %s (by owner %d)", code, newCode, principal.OwnerID)
		return ChangeAliasResult{Found: true, ShortCode: newCode}, nil
	}

	return ChangeAliasResult{}, alias.ErrGenerationExhausted
}

// Stats may lag the real usage count by up to the cache TTL.
func (s *LinkService) Stats(ctx context.Context, code string) (StatsResult, error) {
	link, version, ok := s.cache.GetStats(ctx, code)
	if !ok {
		var err error
		link, err = s.store.GetStats(ctx, code)
		if err != nil {
			return StatsResult{}, err
		}
		if link == nil {
			return StatsResult{}, nil
		}
		s.cache.SetStats(ctx, link, version)
	}

	return StatsResult{
		Found:       true,
		OriginalURL: link.OriginalURL,
		CreatedAt:   link.CreatedAt,
		UsageCount:  link.UsageCount,
		LastUsedAt:  link.LastUsedAt,
	}, nil
}

func (s *LinkService) SearchByURL(ctx context.Context, originalURL string) (SearchResult, error) {
	code, version, ok := s.cache.GetSearch(ctx, originalURL)
	if ok {
		return SearchResult{Found: true, ShortCode: code}, nil
	}

	code, err := s.store.FindByURL(ctx, originalURL)
	if err != nil {
		return SearchResult{}, err
	}
	if code == "" {
		return SearchResult{}, nil
	}

	s.cache.SetSearch(ctx, originalURL, code, version)
	return SearchResult{Found: true, ShortCode: code}, nil
}

func (s *LinkService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func validateURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidURL
	}
	if u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}
