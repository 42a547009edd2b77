package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Publisher is the part of *nats.Conn the transport needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Event is the JSON payload published for each notification.
type Event struct {
	NotificationID string                  `json:"notificationId"`
	InvoiceID      string                  `json:"invoiceId"`
	Type           domain.NotificationType `json:"type"`
	Email          string                  `json:"email"`
	Subject        string                  `json:"subject"`
	Message        string                  `json:"message"`
	ScheduleDate   time.Time               `json:"scheduleDate"`
	Invoice        *domain.Invoice         `json:"invoice,omitempty"`
}

// NATSDeliverer publishes notifications for a downstream mailer.
type NATSDeliverer struct {
	pub     Publisher
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
}

// ConnectNATS dials the server with reconnect handling.
func ConnectNATS(url, subject, name string, logger *zap.Logger) (*NATSDeliverer, error) {
	conn, err := nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(2*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(60),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	d := NewNATSDeliverer(conn, subject, logger)
	d.conn = conn
	return d, nil
}

func NewNATSDeliverer(pub Publisher, subject string, logger *zap.Logger) *NATSDeliverer {
	return &NATSDeliverer{pub: pub, subject: subject, logger: logger}
}

func (d *NATSDeliverer) Name() string { return "nats" }

func (d *NATSDeliverer) Deliver(ctx context.Context, n *domain.Notification, inv *domain.Invoice) error {
	_, span := tracer.Start(ctx, "NATSDeliverer.Deliver")
	defer span.End()

	payload, err := json.Marshal(Event{
		NotificationID: n.ID,
		InvoiceID:      n.InvoiceID,
		Type:           n.Type,
		Email:          n.Recipient,
		Subject:        Subject(n),
		Message:        n.Message,
		ScheduleDate:   n.ScheduledDate,
		Invoice:        inv,
	})
	if err != nil {
		return fmt.Errorf("encode notification event: %w", err)
	}
	if err := d.pub.Publish(d.subject, payload); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}

	d.logger.Debug("notification published",
		zap.String("notification_id", n.ID),
		zap.String("subject", d.subject),
	)
	return nil
}

// Close drains the connection when the deliverer owns one.
func (d *NATSDeliverer) Close() {
	if d.conn != nil {
		if err := d.conn.Drain(); err != nil {
			d.conn.Close()
		}
	}
}
