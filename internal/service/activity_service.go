package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/admission-leads-api/internal/models"
	"github.com/noah-isme/admission-leads-api/pkg/changefeed"
)

type systemLogWriter interface {
	Append(ctx context.Context, entry *models.SystemLog) error
}

type changePublisher interface {
	Publish(ctx context.Context, collection string) error
}

// ActivityRecorder appends system log entries and announces collection changes.
// Both side effects are best-effort: failures are logged and never fail the caller.
type ActivityRecorder struct {
	logs   systemLogWriter
	feed   changePublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewActivityRecorder constructs a recorder. Either sink may be nil.
func NewActivityRecorder(logs systemLogWriter, feed changePublisher, logger *zap.Logger) *ActivityRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityRecorder{logs: logs, feed: feed, logger: logger, now: time.Now}
}

// Record appends an activity entry attributed to actor.
func (r *ActivityRecorder) Record(ctx context.Context, actor models.Actor, action, detail string) {
	if r == nil || r.logs == nil {
		return
	}
	entry := &models.SystemLog{
		ID:        uuid.NewString(),
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Action:    action,
		Detail:    detail,
		CreatedAt: r.now().UTC(),
	}
	if err := r.logs.Append(ctx, entry); err != nil {
		r.logger.Sugar().Warnw("failed to write system log", "action", action, "actor_id", actor.ID, "error", err)
		return
	}
	r.changed(ctx, changefeed.CollectionSystemLogs)
}

// Changed announces that collections were mutated.
func (r *ActivityRecorder) Changed(ctx context.Context, collections ...string) {
	if r == nil {
		return
	}
	for _, collection := range collections {
		r.changed(ctx, collection)
	}
}

func (r *ActivityRecorder) changed(ctx context.Context, collection string) {
	if r.feed == nil {
		return
	}
	if err := r.feed.Publish(ctx, collection); err != nil {
		r.logger.Sugar().Warnw("failed to publish change notice", "collection", collection, "error", err)
	}
}
