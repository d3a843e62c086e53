package audit

import (
	"context"
	"fmt"
	"log/slog"

	"hrportal-backend/internal/models"

	"gorm.io/gorm"
)

type LogOptions struct {
	ActorID     *uint
	ActorEmail  string
	Action      models.AuditAction
	TargetType  string
	TargetID    uint
	Description string
}

// Writer is satisfied by Recorder and by test doubles.
type Writer interface {
	WriteLog(ctx context.Context, opts LogOptions) error
}

// Recorder appends audit events. Rows are never updated or removed.
type Recorder struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRecorder(db *gorm.DB, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{db: db, logger: logger}
}

func (r *Recorder) WriteLog(ctx context.Context, opts LogOptions) error {
	event := models.AuditEvent{
		ActorID:     opts.ActorID,
		ActorEmail:  opts.ActorEmail,
		Action:      opts.Action,
		TargetType:  opts.TargetType,
		TargetID:    opts.TargetID,
		Description: opts.Description,
		RemoteAddr:  RemoteAddrFromContext(ctx),
	}

	if err := r.db.WithContext(ctx).Create(&event).Error; err != nil {
		r.logger.ErrorContext(ctx, "audit event could not be stored",
			"action", opts.Action,
			"target_type", opts.TargetType,
			"target_id", opts.TargetID,
			"error", err,
		)
		return fmt.Errorf("audit event could not be stored: %w", err)
	}
	return nil
}

type remoteAddrKey struct{}

func ContextWithRemoteAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, remoteAddrKey{}, addr)
}

func RemoteAddrFromContext(ctx context.Context) string {
	addr, _ := ctx.Value(remoteAddrKey{}).(string)
	return addr
}
