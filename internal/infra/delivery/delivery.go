// Package delivery holds the notification transports: a log-only sink for
// development, SMTP e-mail and a NATS event publisher.
package delivery

import (
	"context"
	"fmt"
	"strings"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/alerts"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("delivery")

// Subject is the e-mail subject line for a notification.
func Subject(n *domain.Notification) string {
	return "Fatura - " + n.Type.Label()
}

// Body renders the message followed by the invoice details it refers to.
func Body(n *domain.Notification, inv *domain.Invoice) string {
	var b strings.Builder
	b.WriteString(n.Message)
	b.WriteString("\n\n")
	if inv != nil {
		fmt.Fprintf(&b, "Emissor: %s\n", inv.IssuerOr("Emissor não identificado"))
		if inv.Amount.Valid {
			fmt.Fprintf(&b, "Valor: %s\n", alerts.FormatBRL(inv.Amount.Decimal))
		}
		if inv.DueDate != nil {
			fmt.Fprintf(&b, "Vencimento: %s\n", alerts.FormatDate(*inv.DueDate))
		}
		fmt.Fprintf(&b, "Categoria: %s\n", inv.Category.Label())
		fmt.Fprintf(&b, "Arquivo: %s\n", inv.Filename)
	}
	return b.String()
}

// ============================================================
// Log transport
// ============================================================

// LogDeliverer writes notifications to the logger instead of sending them.
type LogDeliverer struct {
	logger *zap.Logger
}

func NewLogDeliverer(logger *zap.Logger) *LogDeliverer {
	return &LogDeliverer{logger: logger}
}

func (d *LogDeliverer) Name() string { return "log" }

func (d *LogDeliverer) Deliver(ctx context.Context, n *domain.Notification, inv *domain.Invoice) error {
	_, span := tracer.Start(ctx, "LogDeliverer.Deliver")
	defer span.End()

	d.logger.Info("notification delivered",
		zap.String("notification_id", n.ID),
		zap.String("invoice_id", n.InvoiceID),
		zap.String("type", string(n.Type)),
		zap.String("to", n.Recipient),
		zap.String("subject", Subject(n)),
		zap.String("body", Body(n, inv)),
	)
	return nil
}
