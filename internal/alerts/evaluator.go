package alerts

import (
	"fmt"
	"time"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"
)

const (
	// DefaultLeadDays is how many days before the due date reminders go out.
	DefaultLeadDays = 2

	unknownIssuer = "Emissor não identificado"
	unknownAmount = "valor não identificado"
)

// Config carries the evaluator settings read from the environment.
type Config struct {
	Recipient string
	LeadDays  int
	Location  *time.Location
}

// Evaluator applies the limit and due-soon rules. It has no mutable state.
type Evaluator struct {
	limits *Limits
	cfg    Config
}

// NewEvaluator builds an evaluator. Nil limits means DefaultLimits; a zero
// lead time means DefaultLeadDays; a nil location means UTC.
func NewEvaluator(limits *Limits, cfg Config) *Evaluator {
	if limits == nil {
		limits = DefaultLimits()
	}
	if cfg.LeadDays <= 0 {
		cfg.LeadDays = DefaultLeadDays
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Evaluator{limits: limits, cfg: cfg}
}

// Limits exposes the ceiling table.
func (e *Evaluator) Limits() *Limits { return e.limits }

// Evaluate returns the notifications due at upload time. Only the limit
// rule applies here; due-soon reminders come from the daily sweep.
func (e *Evaluator) Evaluate(inv *domain.Invoice, now time.Time) []domain.Notification {
	if !inv.Amount.Valid {
		return nil
	}

	ceiling := e.limits.For(inv.Category)
	if !inv.Amount.Decimal.GreaterThan(ceiling) {
		return nil
	}

	msg := fmt.Sprintf("Fatura de %s no valor de %s excede o limite de %s definido para %s",
		inv.IssuerOr(unknownIssuer),
		FormatBRL(inv.Amount.Decimal),
		FormatBRL(ceiling),
		inv.Category.Label(),
	)
	return []domain.Notification{
		domain.NewNotification(inv.ID, domain.NotificationLimitExceeded, now, e.cfg.Recipient, msg, now),
	}
}

// Today is the calendar date of now in the configured time zone.
func (e *Evaluator) Today(now time.Time) time.Time {
	return domain.DateIn(now, e.cfg.Location)
}

// DueSoonTarget is the due date the daily sweep looks for: today plus the
// lead time.
func (e *Evaluator) DueSoonTarget(now time.Time) time.Time {
	return e.Today(now).AddDate(0, 0, e.cfg.LeadDays)
}

// IsDueSoon reports whether inv is unpaid and due exactly on the target date.
func (e *Evaluator) IsDueSoon(inv *domain.Invoice, now time.Time) bool {
	if inv.Paid || inv.DueDate == nil {
		return false
	}
	return domain.DateOf(*inv.DueDate).Equal(e.DueSoonTarget(now))
}

// DueSoon builds the reminder for inv, scheduled immediately. The second
// result is false when inv is not due soon.
func (e *Evaluator) DueSoon(inv *domain.Invoice, now time.Time) (domain.Notification, bool) {
	if !e.IsDueSoon(inv, now) {
		return domain.Notification{}, false
	}

	amount := unknownAmount
	if inv.Amount.Valid {
		amount = FormatBRL(inv.Amount.Decimal)
	}
	msg := fmt.Sprintf("Fatura de %s no valor de %s vence em %s",
		inv.IssuerOr(unknownIssuer), amount, FormatDate(*inv.DueDate))

	return domain.NewNotification(inv.ID, domain.NotificationDueSoon, now, e.cfg.Recipient, msg, now), true
}
