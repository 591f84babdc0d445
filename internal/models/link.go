package models

import "time"

// LinkRecord is the persisted mapping from a short code to its original URL.
type LinkRecord struct {
	ID                   int64     `json:"id"`
	OwnerID              int64     `json:"owner_id"`
	OriginalURL          string    `json:"original_url"`
	ShortCode            string    `json:"short_code"`
	ExpiresAt            time.Time `json:"expires_at"`
	LastUsedAt           time.Time `json:"last_used_at"`
	CreatedAt            time.Time `json:"created_at"`
	UsageCount           int64     `json:"usage_count"`
	RequiresAuthToMutate bool      `json:"requires_auth_to_mutate"`
}

// Expired reports whether the record is eligible for the sweep at now.
func (l *LinkRecord) Expired(now time.Time) bool {
	return l.ExpiresAt.Before(now)
}

// Principal is the authenticated caller of a mutating operation.
type Principal struct {
	OwnerID int64
	Email   string
}

// ClickMeta is what the redirect path knows about the visitor.
type ClickMeta struct {
	IP        string
	UserAgent string
	Referer   string
}
