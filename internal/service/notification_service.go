package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/noah-isme/rto-compliance-api/internal/models"
	"github.com/noah-isme/rto-compliance-api/pkg/jobs"
)

// Notification is the hand-off contract for the delivery collaborator.
type Notification struct {
	AlertID         string               `json:"alertId"`
	Recipient       string               `json:"recipient"`
	Channel         string               `json:"channel"`
	Severity        models.AlertSeverity `json:"severity"`
	Title           string               `json:"title"`
	StudentID       string               `json:"studentId,omitempty"`
	EscalationLevel int                  `json:"escalationLevel"`
	Reason          string               `json:"reason"`
	DispatchedAt    time.Time            `json:"dispatchedAt"`
}

// Notifier hands a notification to whatever delivers it.
type Notifier interface {
	Notify(ctx context.Context, note Notification) error
}

type messagePublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// NATSNotifier publishes notifications as JSON on a NATS subject.
type NATSNotifier struct {
	conn    messagePublisher
	subject string
}

// NewNATSNotifier constructs a notifier bound to subject.
func NewNATSNotifier(conn messagePublisher, subject string) *NATSNotifier {
	if subject == "" {
		subject = "compliance.alerts.notify"
	}
	return &NATSNotifier{conn: conn, subject: subject}
}

// Notify implements Notifier.
func (n *NATSNotifier) Notify(_ context.Context, note Notification) error {
	payload, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	msg := nats.NewMsg(n.subject)
	msg.Data = payload
	msg.Header.Set("Alert-Id", note.AlertID)
	msg.Header.Set("Channel", note.Channel)
	if err := n.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish notification %s: %w", note.AlertID, err)
	}
	return nil
}

// LogNotifier writes notifications to the log. Used when no broker is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a log-only notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, note Notification) error {
	n.logger.Info("alert notification",
		zap.String("alert_id", note.AlertID),
		zap.String("recipient", note.Recipient),
		zap.String("channel", note.Channel),
		zap.String("severity", string(note.Severity)),
		zap.Int("escalation_level", note.EscalationLevel),
		zap.String("reason", note.Reason),
	)
	return nil
}

// NotificationConfig sets the default routing for alert notifications.
type NotificationConfig struct {
	DefaultChannel   string
	DefaultRecipient string
}

// NotificationDispatcher routes alert notifications through the job queue, or inline when no queue is attached.
type NotificationDispatcher struct {
	notifier Notifier
	queue    jobDispatcher
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      NotificationConfig
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// NewNotificationDispatcher constructs a dispatcher.
func NewNotificationDispatcher(notifier Notifier, metrics *MetricsService, logger *zap.Logger, cfg NotificationConfig) *NotificationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	if cfg.DefaultChannel == "" {
		cfg.DefaultChannel = "email"
	}
	if cfg.DefaultRecipient == "" {
		cfg.DefaultRecipient = "compliance-team"
	}
	return &NotificationDispatcher{notifier: notifier, metrics: metrics, logger: logger, cfg: cfg}
}

// UseQueue routes future dispatches through q. The queue handler must be Handle.
func (d *NotificationDispatcher) UseQueue(q jobDispatcher) {
	d.queue = q
}

// Dispatch hands off a notification for the alert. Failures are logged, never returned to the caller's operation.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, alert models.ComplianceAlert, reason string) {
	note := Notification{
		AlertID:         alert.ID,
		Recipient:       d.recipientFor(alert),
		Channel:         d.cfg.DefaultChannel,
		Severity:        alert.Severity,
		Title:           alert.Title,
		EscalationLevel: alert.EscalationLevel,
		Reason:          reason,
		DispatchedAt:    time.Now().UTC(),
	}
	if alert.StudentID != nil {
		note.StudentID = *alert.StudentID
	}
	if d.queue != nil {
		err := d.queue.Enqueue(jobs.Job{ID: alert.ID, Type: "alert_notification", Payload: note})
		if err == nil {
			return
		}
		d.logger.Warn("notification queue unavailable, sending inline", zap.String("alert_id", alert.ID), zap.Error(err))
	}
	if err := d.send(ctx, note); err != nil {
		d.logger.Warn("failed to send alert notification", zap.String("alert_id", alert.ID), zap.Error(err))
	}
}

// Handle is the queue handler for notification jobs.
func (d *NotificationDispatcher) Handle(ctx context.Context, job jobs.Job) error {
	note, ok := job.Payload.(Notification)
	if !ok {
		d.logger.Error("dropping notification job with unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	return d.send(ctx, note)
}

func (d *NotificationDispatcher) send(ctx context.Context, note Notification) error {
	err := d.notifier.Notify(ctx, note)
	d.metrics.RecordNotification(note.Channel, err)
	return err
}

// recipientFor escalates routing for critical or escalated alerts.
func (d *NotificationDispatcher) recipientFor(alert models.ComplianceAlert) string {
	if alert.EscalationLevel > 0 || alert.Severity == models.SeverityCritical {
		return d.cfg.DefaultRecipient + "-escalations"
	}
	return d.cfg.DefaultRecipient
}
