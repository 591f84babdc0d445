package events

import (
	"time"

	"github.com/Varun5711/shortlinks/internal/enrichment"
	"github.com/Varun5711/shortlinks/internal/models"
	"github.com/google/uuid"
)

// ClickEvent is one successful redirect as published to the click stream.
type ClickEvent struct {
	ID          string
	ShortCode   string
	OriginalURL string
	Timestamp   int64
	UsageCount  int64
	IP          string
	Network     string
	UserAgent   string
	Browser     string
	OS          string
	DeviceType  string
	Referer     string
}

// NewClickEvent builds an enriched event for a redirect of link at now.
func NewClickEvent(link *models.LinkRecord, count int64, meta models.ClickMeta, now time.Time) *ClickEvent {
	ua := enrichment.ParseUserAgent(meta.UserAgent)

	return &ClickEvent{
		ID:          uuid.NewString(),
		ShortCode:   link.ShortCode,
		OriginalURL: link.OriginalURL,
		Timestamp:   now.UnixMilli(),
		UsageCount:  count,
		IP:          meta.IP,
		Network:     enrichment.ClassifyIP(meta.IP),
		UserAgent:   meta.UserAgent,
		Browser:     ua.Browser,
		OS:          ua.OS,
		DeviceType:  ua.DeviceType,
		Referer:     meta.Referer,
	}
}

func (e *ClickEvent) fields() map[string]interface{} {
	fields := map[string]interface{}{
		"event_id":     e.ID,
		"short_code":   e.ShortCode,
		"original_url": e.OriginalURL,
		"timestamp":    e.Timestamp,
		"usage_count":  e.UsageCount,
		"network":      e.Network,
		"device_type":  e.DeviceType,
	}

	if e.IP != "" {
		fields["ip"] = e.IP
	}
	if e.UserAgent != "" {
		fields["user_agent"] = e.UserAgent
		fields["browser"] = e.Browser
		fields["os"] = e.OS
	}
	if e.Referer != "" {
		fields["referer"] = e.Referer
	}

	return fields
}
