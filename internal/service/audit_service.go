package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/bankcore/banking-api/internal/events"
	"github.com/bankcore/banking-api/internal/observability"
)

// AuditService writes authentication events to a dedicated audit logger.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventLoginSucceeded, a.record)
	a.dispatcher.Subscribe(events.EventLoginFailed, a.recordWarn)
	a.dispatcher.Subscribe(events.EventLogout, a.record)
	a.dispatcher.Subscribe(events.EventTokenRevoked, a.handleTokenRevoked)
	a.dispatcher.Subscribe(events.EventPasswordResetRequested, a.record)
	a.dispatcher.Subscribe(events.EventPasswordResetCompleted, a.record)
}

func (a *AuditService) record(_ context.Context, event events.Event) error {
	a.logger.Info(string(event.Type), a.fields(event)...)
	return nil
}

func (a *AuditService) recordWarn(_ context.Context, event events.Event) error {
	a.logger.Warn(string(event.Type), a.fields(event)...)
	return nil
}

func (a *AuditService) handleTokenRevoked(_ context.Context, event events.Event) error {
	if payload, ok := event.Payload.(events.TokenRevokedPayload); ok && !payload.Persisted {
		a.logger.Error(string(event.Type), a.fields(event)...)
		return nil
	}
	a.logger.Info(string(event.Type), a.fields(event)...)
	return nil
}

func (a *AuditService) fields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("subject", observability.MaskEmail(event.Subject)),
		zap.Time("at", event.Timestamp),
		zap.Any("payload", event.Payload),
	}
}
