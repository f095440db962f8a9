package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-api/internal/events"
)

// Publisher forwards serialized events to an external channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// NotificationService logs domain events and fans them out to a pub/sub
// channel. Fan-out is best effort: failures are logged and dropped.
type NotificationService struct {
	dispatcher events.Dispatcher
	publisher  Publisher
	channel    string
	logger     *zap.Logger
}

// NewNotificationService creates the service. publisher may be nil.
func NewNotificationService(dispatcher events.Dispatcher, publisher Publisher, channel string, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		publisher:  publisher,
		channel:    channel,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to every ticket event.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		n.dispatcher.Subscribe(eventType, n.handle)
	}
}

func (n *NotificationService) handle(ctx context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
	}
	if event.Actor.UserID != "" {
		fields = append(fields, zap.String("actor_id", event.Actor.UserID))
	}

	if event.Type == events.EventTicketSLABreached {
		n.logger.Warn("ticket SLA breached", fields...)
	} else {
		n.logger.Info("ticket event", fields...)
	}

	n.forward(ctx, event)
	return nil
}

func (n *NotificationService) forward(ctx context.Context, event events.Event) {
	if n.publisher == nil || n.channel == "" {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Warn("encode event failed", zap.String("event_id", event.ID), zap.Error(err))
		return
	}
	if err := n.publisher.Publish(ctx, n.channel, payload); err != nil {
		n.logger.Warn("publish event failed",
			zap.String("event_id", event.ID),
			zap.String("channel", n.channel),
			zap.Error(err))
	}
}
