package models

import "time"

const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusFailed  = "failed"
)

type ShortenRequest struct {
	OwnerID     int64     `json:"owner_id"`
	OriginalURL string    `json:"original_url"`
	CustomAlias string    `json:"custom_alias"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ShortenResponse is returned for both outcomes of a shorten call; Data is
// only set when Status is "error".
type ShortenResponse struct {
	Status    string `json:"status"`
	ShortCode string `json:"short_code,omitempty"`
	ShortURL  string `json:"short_url,omitempty"`
	QRCode    string `json:"qr_code,omitempty"`
	Data      string `json:"data,omitempty"`
}

type ChangeAliasResponse struct {
	Status    string `json:"status"`
	ShortCode string `json:"short_code,omitempty"`
	Data      string `json:"data,omitempty"`
}

type StatsResponse struct {
	OriginalURL string    `json:"original_url"`
	CreatedAt   time.Time `json:"created_at"`
	UsageCount  int64     `json:"usage_count"`
	LastUsedAt  time.Time `json:"last_used_at"`
}

type SearchResponse struct {
	ShortCode string `json:"short_code"`
}

// SoftFailure is the body returned with 200 when a lookup found nothing.
type SoftFailure struct {
	Status string `json:"status"`
	Data   string `json:"data"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type SweepResponse struct {
	Status  int    `json:"status"`
	Details string `json:"details"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
