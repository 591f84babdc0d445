// Package alias assigns short codes: it either accepts a caller supplied
// alias or derives one from the URL with a salted PBKDF2 hash.
package alias

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
	"unicode/utf8"

	"github.com/Varun5711/shortlinks/internal/logger"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// CodeLength is both the required length of a caller alias and the
	// length of a derived code.
	CodeLength = 10

	DefaultIterations  = 100000
	DefaultMaxAttempts = 5

	saltSize = 16
	keySize  = 32
)

var (
	ErrAliasConflict       = errors.New("alias in use")
	ErrGenerationExhausted = errors.New("could not derive a free short code")
	ErrInvalidAlias        = errors.New("alias can only contain letters, numbers, hyphens, and underscores")
)

var aliasRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Checker is the slice of the link store the generator needs.
type Checker interface {
	AliasExists(ctx context.Context, code string) (bool, error)
}

type Config struct {
	Iterations  int
	MaxAttempts int
}

type Generator struct {
	store       Checker
	iterations  int
	maxAttempts int
	rand        io.Reader
	log         *logger.Logger
}

func NewGenerator(store Checker, cfg Config, log *logger.Logger) *Generator {
	if cfg.Iterations <= 0 {
		cfg.Iterations = DefaultIterations
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Generator{
		store:       store,
		iterations:  cfg.Iterations,
		maxAttempts: cfg.MaxAttempts,
		rand:        rand.Reader,
		log:         log,
	}
}

func (g *Generator) MaxAttempts() int {
	return g.maxAttempts
}

// IsCustom reports whether requested is used as-is instead of derived.
// Anything that is not exactly CodeLength characters is ignored.
func IsCustom(requested string) bool {
	return utf8.RuneCountInString(requested) == CodeLength
}

// Resolve returns the short code for a new link.
func (g *Generator) Resolve(ctx context.Context, url, requested string) (string, error) {
	if !IsCustom(requested) {
		return g.Derive(ctx, url)
	}

	if !aliasRegex.MatchString(requested) {
		return "", ErrInvalidAlias
	}

	exists, err := g.store.AliasExists(ctx, requested)
	if err != nil {
		return "", fmt.Errorf("check alias: %w", err)
	}
	if exists {
		return "", ErrAliasConflict
	}
	return requested, nil
}

// Derive hashes url with a fresh salt until the code is unused, giving up
// after MaxAttempts tries.
func (g *Generator) Derive(ctx context.Context, url string) (string, error) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		code, err := g.Code(url)
		if err != nil {
			return "", err
		}

		exists, err := g.store.AliasExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check alias: %w", err)
		}
		if !exists {
			return code, nil
		}

		g.log.Debug("Derived code %s collides, re-rolling (attempt %d/%d)", code, attempt, g.maxAttempts)
	}

	return "", ErrGenerationExhausted
}

// Code derives one candidate: the first CodeLength hex chars of
// PBKDF2-HMAC-SHA256(url, random salt).
func (g *Generator) Code(url string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(g.rand, salt); err != nil {
		return "", fmt.Errorf("failed to read salt: %w", err)
	}

	key := pbkdf2.Key([]byte(url), salt, g.iterations, keySize, sha256.New)
	return hex.EncodeToString(key)[:CodeLength], nil
}
