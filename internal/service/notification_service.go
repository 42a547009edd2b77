package service

import (
	"context"
	"sync"
	"time"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/alerts"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/infra/observability"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var notifyTracer = otel.Tracer("service/notifications")

// NotificationService delivers notifications and runs the dispatch and
// due-soon sweeps.
type NotificationService struct {
	store     port.Store
	deliverer port.Deliverer
	evaluator *alerts.Evaluator
	limiter   *rate.Limiter
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
	lease     time.Duration

	dispatchMu sync.Mutex
	scanMu     sync.Mutex
}

// NewNotificationService wires the service. perSecond caps deliveries
// during a dispatch sweep; zero or less means unlimited.
func NewNotificationService(
	store port.Store,
	deliverer port.Deliverer,
	evaluator *alerts.Evaluator,
	perSecond float64,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *NotificationService {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &NotificationService{
		store:     store,
		deliverer: deliverer,
		evaluator: evaluator,
		limiter:   rate.NewLimiter(limit, 1),
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
		lease:     defaultClaimLease,
	}
}

const defaultClaimLease = 10 * time.Minute

// WithClaimLease sets how long a claim blocks other senders. A sender that
// has not marked its notification sent within the lease is presumed dead.
func (s *NotificationService) WithClaimLease(d time.Duration) *NotificationService {
	if d > 0 {
		s.lease = d
	}
	return s
}

// WithClock replaces time.Now, for tests.
func (s *NotificationService) WithClock(now func() time.Time) *NotificationService {
	s.now = now
	return s
}

func (s *NotificationService) List(ctx context.Context) ([]domain.Notification, error) {
	ctx, span := notifyTracer.Start(ctx, "NotificationService.List")
	defer span.End()

	return s.store.ListNotifications(ctx)
}

// ListPending returns unsent notifications whose schedule has arrived.
func (s *NotificationService) ListPending(ctx context.Context) ([]domain.Notification, error) {
	ctx, span := notifyTracer.Start(ctx, "NotificationService.ListPending")
	defer span.End()

	return s.store.ListPendingNotifications(ctx, s.now())
}

// ============================================================
// Send
// ============================================================

// Send delivers one notification. The store claim decides the winner among
// concurrent callers; losers and already-sent notifications get
// {Success:false}. A failed delivery releases the claim and returns
// *domain.ErrDelivery. A claim whose holder never finishes expires after
// the lease, so a crash between claim and delivery delays the notification
// instead of losing it.
func (s *NotificationService) Send(ctx context.Context, id string) (*domain.SendResult, error) {
	ctx, span := notifyTracer.Start(ctx, "NotificationService.Send")
	defer span.End()
	span.SetAttributes(attribute.String("notification.id", id))

	n, err := s.store.GetNotification(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Sent {
		s.metrics.IncrDispatch("skipped")
		return &domain.SendResult{NotificationID: id, Success: false, Reason: "already sent"}, nil
	}

	now := s.now()
	claimed, err := s.store.ClaimNotification(ctx, id, now, now.Add(-s.lease))
	if err != nil {
		return nil, err
	}
	if !claimed {
		s.metrics.IncrDispatch("skipped")
		return &domain.SendResult{NotificationID: id, Success: false, Reason: "already being sent"}, nil
	}

	inv, err := s.store.GetInvoice(ctx, n.InvoiceID)
	if err != nil {
		s.logger.Warn("invoice unavailable for notification",
			zap.String("notification_id", id),
			zap.String("invoice_id", n.InvoiceID),
			zap.Error(err),
		)
		inv = nil
	}

	if err := s.deliverer.Deliver(ctx, n, inv); err != nil {
		if rerr := s.store.ReleaseNotification(context.WithoutCancel(ctx), id); rerr != nil {
			s.logger.Error("failed to release notification claim",
				zap.String("notification_id", id),
				zap.Error(rerr),
			)
		}
		s.metrics.IncrDispatch("failed")
		return nil, &domain.ErrDelivery{NotificationID: id, Transport: s.deliverer.Name(), Err: err}
	}

	if err := s.store.MarkNotificationSent(context.WithoutCancel(ctx), id, s.now()); err != nil {
		// Delivered but still claimed; the lease makes it eligible again.
		s.logger.Error("failed to mark notification sent",
			zap.String("notification_id", id),
			zap.Error(err),
		)
	}

	s.metrics.IncrDispatch("sent")
	s.logger.Info("notification sent",
		zap.String("notification_id", id),
		zap.String("type", string(n.Type)),
		zap.String("transport", s.deliverer.Name()),
	)
	return &domain.SendResult{NotificationID: id, Success: true}, nil
}

// ============================================================
// Sweeps
// ============================================================

// DispatchPending sends every pending notification. Individual failures
// are counted and the sweep moves on.
func (s *NotificationService) DispatchPending(ctx context.Context) (*domain.DispatchReport, error) {
	if !s.dispatchMu.TryLock() {
		return nil, &domain.ErrBusy{Operation: "dispatch"}
	}
	defer s.dispatchMu.Unlock()

	ctx, span := notifyTracer.Start(ctx, "NotificationService.DispatchPending")
	defer span.End()

	pending, err := s.store.ListPendingNotifications(ctx, s.now())
	if err != nil {
		return nil, err
	}

	report := &domain.DispatchReport{Pending: len(pending)}
	for _, n := range pending {
		if err := s.limiter.Wait(ctx); err != nil {
			return report, err
		}

		res, err := s.Send(ctx, n.ID)
		switch {
		case err != nil:
			report.Failed++
			s.logger.Warn("dispatch: send failed", zap.String("notification_id", n.ID), zap.Error(err))
		case !res.Success:
			report.Skipped++
		default:
			report.Sent++
		}
	}

	span.SetAttributes(
		attribute.Int("dispatch.pending", report.Pending),
		attribute.Int("dispatch.sent", report.Sent),
		attribute.Int("dispatch.failed", report.Failed),
	)
	s.logger.Info("dispatch sweep finished",
		zap.Int("pending", report.Pending),
		zap.Int("sent", report.Sent),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// ScanDueSoon creates a DUE_SOON notification for every unpaid invoice due
// exactly lead days from today, unless the invoice already has one.
func (s *NotificationService) ScanDueSoon(ctx context.Context) (*domain.DueSoonReport, error) {
	if !s.scanMu.TryLock() {
		return nil, &domain.ErrBusy{Operation: "due-soon scan"}
	}
	defer s.scanMu.Unlock()

	ctx, span := notifyTracer.Start(ctx, "NotificationService.ScanDueSoon")
	defer span.End()

	now := s.now()
	target := s.evaluator.DueSoonTarget(now)
	unpaid := false

	invoices, err := s.store.ListInvoices(ctx, domain.InvoiceFilter{Paid: &unpaid, DueFrom: &target, DueTo: &target})
	if err != nil {
		return nil, err
	}

	report := &domain.DueSoonReport{TargetDate: target}
	for i := range invoices {
		inv := &invoices[i]
		n, ok := s.evaluator.DueSoon(inv, now)
		if !ok {
			continue
		}
		report.Candidates++

		created, err := s.store.CreateNotificationIfAbsent(ctx, &n)
		if err != nil {
			s.logger.Error("due-soon: failed to store notification", zap.String("invoice_id", inv.ID), zap.Error(err))
			continue
		}
		if !created {
			report.Existing++
			continue
		}
		report.Created++
		s.metrics.IncrNotificationCreated(domain.NotificationDueSoon)
	}

	s.logger.Info("due-soon sweep finished",
		zap.Time("target_date", target),
		zap.Int("candidates", report.Candidates),
		zap.Int("created", report.Created),
		zap.Int("existing", report.Existing),
	)
	return report, nil
}
