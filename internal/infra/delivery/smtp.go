package delivery

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPConfig holds the mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SMTPDeliverer sends notifications as plain-text e-mail.
type SMTPDeliverer struct {
	cfg    SMTPConfig
	auth   smtp.Auth
	send   SendFunc
	cb     *gobreaker.CircuitBreaker
	rcfg   resilience.Config
	logger *zap.Logger
	now    func() time.Time
}

func NewSMTPDeliverer(cfg SMTPConfig, cb *gobreaker.CircuitBreaker, rcfg resilience.Config, logger *zap.Logger) *SMTPDeliverer {
	var auth smtp.Auth
	if cfg.User != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)
	}
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	return &SMTPDeliverer{
		cfg:    cfg,
		auth:   auth,
		send:   smtp.SendMail,
		cb:     cb,
		rcfg:   rcfg,
		logger: logger,
		now:    time.Now,
	}
}

// WithSendFunc replaces smtp.SendMail, for tests.
func (d *SMTPDeliverer) WithSendFunc(fn SendFunc) *SMTPDeliverer {
	d.send = fn
	return d
}

func (d *SMTPDeliverer) Name() string { return "smtp" }

func (d *SMTPDeliverer) Deliver(ctx context.Context, n *domain.Notification, inv *domain.Invoice) error {
	ctx, span := tracer.Start(ctx, "SMTPDeliverer.Deliver")
	defer span.End()

	if n.Recipient == "" {
		return fmt.Errorf("notification %s has no recipient", n.ID)
	}

	addr := net.JoinHostPort(d.cfg.Host, strconv.Itoa(d.cfg.Port))
	msg := d.buildMessage(n, inv)

	err := resilience.Execute(ctx, d.cb, d.rcfg, func() error {
		return d.send(addr, d.auth, d.cfg.From, []string{n.Recipient}, msg)
	})
	if err != nil {
		d.logger.Error("smtp delivery failed",
			zap.String("notification_id", n.ID),
			zap.String("addr", addr),
			zap.Error(err),
		)
		return err
	}

	d.logger.Info("notification e-mailed",
		zap.String("notification_id", n.ID),
		zap.String("to", n.Recipient),
	)
	return nil
}

func (d *SMTPDeliverer) buildMessage(n *domain.Notification, inv *domain.Invoice) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", d.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", n.Recipient)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", Subject(n)))
	fmt.Fprintf(&b, "Date: %s\r\n", d.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(Body(n, inv))
	return b.Bytes()
}
