package usage

import (
	"context"
	"time"

	"github.com/Varun5711/shortlinks/internal/events"
	"github.com/Varun5711/shortlinks/internal/logger"
	"github.com/Varun5711/shortlinks/internal/models"
)

const publishTimeout = 500 * time.Millisecond

type Incrementer interface {
	IncrementUsage(ctx context.Context, code string, now time.Time) (int64, error)
}

type Publisher interface {
	Publish(ctx context.Context, event *events.ClickEvent) error
}

// Tracker counts redirects. The increment always goes to the store; the
// click event is best-effort.
type Tracker struct {
	store     Incrementer
	publisher Publisher
	log       *logger.Logger
	now       func() time.Time
}

// NewTracker accepts a nil publisher when no click stream is configured.
func NewTracker(store Incrementer, publisher Publisher, log *logger.Logger) *Tracker {
	return &Tracker{
		store:     store,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

// Track records one redirect of link and returns the new usage count.
func (t *Tracker) Track(ctx context.Context, link *models.LinkRecord, meta models.ClickMeta) (int64, error) {
	now := t.now().UTC()

	count, err := t.store.IncrementUsage(context.WithoutCancel(ctx), link.ShortCode, now)
	if err != nil {
		return 0, err
	}

	if t.publisher != nil {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()

		if err := t.publisher.Publish(pctx, events.NewClickEvent(link, count, meta, now)); err != nil {
			t.log.Warn("Click event for %s dropped: %v", link.ShortCode, err)
		}
	}

	return count, nil
}
