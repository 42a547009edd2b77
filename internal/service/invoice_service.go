// Package service provides the business logic layer (use cases).
// InvoiceService runs uploads through OCR, extraction, classification and
// the limit rule; NotificationService owns delivery and the sweeps.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/alerts"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/classification"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/export"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/extraction"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/infra/observability"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/infra/resilience"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service/invoices")

// DefaultUpcomingDays is the window used when the caller gives none.
const DefaultUpcomingDays = 7

// InvoiceService orchestrates invoice processing and queries.
type InvoiceService struct {
	store      port.Store
	ocr        port.TextExtractor
	classifier *classification.Classifier
	evaluator  *alerts.Evaluator
	cache      port.Cache[string]
	bulkhead   *resilience.Bulkhead
	ocrTimeout time.Duration
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewInvoiceService creates the invoice service with all dependencies injected.
func NewInvoiceService(
	store port.Store,
	ocr port.TextExtractor,
	classifier *classification.Classifier,
	evaluator *alerts.Evaluator,
	cache port.Cache[string],
	bulkhead *resilience.Bulkhead,
	ocrTimeout time.Duration,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *InvoiceService {
	return &InvoiceService{
		store:      store,
		ocr:        ocr,
		classifier: classifier,
		evaluator:  evaluator,
		cache:      cache,
		bulkhead:   bulkhead,
		ocrTimeout: ocrTimeout,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock replaces time.Now, for tests.
func (s *InvoiceService) WithClock(now func() time.Time) *InvoiceService {
	s.now = now
	return s
}

// ============================================================
// Upload processing
// ============================================================

// ProcessUpload creates the invoice, extracts its text and fields and stores
// any limit notification. OCR failures do not fail the call: the invoice is
// stored with status ERROR and the reason in its description.
func (s *InvoiceService) ProcessUpload(ctx context.Context, doc domain.RawDocument) (*domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "InvoiceService.ProcessUpload")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.filename", doc.Filename),
		attribute.Int("document.size", len(doc.Data)),
	)

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("process_upload", time.Since(start)) }()

	if len(doc.Data) == 0 {
		return nil, &domain.ErrValidation{Field: "file", Message: "empty upload"}
	}
	if strings.TrimSpace(doc.Filename) == "" {
		doc.Filename = "upload"
	}

	inv := domain.NewInvoice(doc.Filename, s.now())
	if err := s.store.CreateInvoice(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	span.SetAttributes(attribute.String("invoice.id", inv.ID))

	// The record is finished even if the client goes away mid-upload.
	persistCtx := context.WithoutCancel(ctx)

	text, err := s.extractText(ctx, doc)
	if err != nil {
		s.logger.Warn("invoice processing failed",
			zap.String("invoice_id", inv.ID),
			zap.String("filename", doc.Filename),
			zap.Error(err),
		)
		inv.MarkFailed("Erro ao processar: "+err.Error(), s.now())
		if uerr := s.store.UpdateInvoice(persistCtx, inv); uerr != nil {
			return nil, fmt.Errorf("update failed invoice: %w", uerr)
		}
		s.metrics.IncrInvoice(domain.StatusError)
		return inv, nil
	}

	res := extraction.Extract(text)
	s.metrics.RecordExtraction(res.Fields)

	issuer := ""
	if res.Fields.Issuer.Present {
		issuer = res.Fields.Issuer.Value
	}
	cls := s.classifier.Classify(res.Normalized, issuer)

	inv.ApplyExtraction(text, res.Fields, cls.Category, s.now())
	if err := s.store.UpdateInvoice(persistCtx, inv); err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}
	s.metrics.IncrInvoice(domain.StatusProcessed)

	s.logger.Info("invoice processed",
		zap.String("invoice_id", inv.ID),
		zap.String("category", string(inv.Category)),
		zap.Int("category_score", cls.Score),
		zap.Bool("amount_found", res.Fields.Amount.Present),
		zap.String("amount_pattern", res.Fields.Amount.Pattern),
		zap.Bool("due_date_found", res.Fields.DueDate.Present),
		zap.Bool("issuer_found", res.Fields.Issuer.Present),
	)

	s.raiseNotifications(persistCtx, inv)
	return inv, nil
}

// extractText runs OCR through the content cache, the bulkhead and the
// OCR timeout.
func (s *InvoiceService) extractText(ctx context.Context, doc domain.RawDocument) (string, error) {
	sum := sha256.Sum256(doc.Data)
	key := "ocr:" + hex.EncodeToString(sum[:])

	if text, ok := s.cache.Get(key); ok {
		s.metrics.IncrCacheHit("ocr")
		return text, nil
	}
	s.metrics.IncrCacheMiss("ocr")

	if err := s.bulkhead.Acquire(ctx); err != nil {
		return "", fmt.Errorf("ocr queue: %w", err)
	}
	defer s.bulkhead.Release()

	ocrCtx, cancel := context.WithTimeout(ctx, s.ocrTimeout)
	defer cancel()

	start := time.Now()
	text, err := s.ocr.ExtractText(ocrCtx, doc)
	s.metrics.RecordOCRDuration(time.Since(start))
	if err != nil {
		s.metrics.IncrExternalError("ocr")
		if errors.Is(ocrCtx.Err(), context.DeadlineExceeded) {
			return "", &domain.ErrTimeout{Operation: "ocr"}
		}
		return "", err
	}

	s.cache.Set(key, text)
	return text, nil
}

func (s *InvoiceService) raiseNotifications(ctx context.Context, inv *domain.Invoice) {
	for _, n := range s.evaluator.Evaluate(inv, s.now()) {
		n := n
		created, err := s.store.CreateNotificationIfAbsent(ctx, &n)
		if err != nil {
			s.logger.Error("failed to store notification",
				zap.String("invoice_id", inv.ID),
				zap.String("type", string(n.Type)),
				zap.Error(err),
			)
			continue
		}
		if !created {
			continue
		}
		s.metrics.IncrNotificationCreated(n.Type)
		s.logger.Info("notification scheduled",
			zap.String("invoice_id", inv.ID),
			zap.String("notification_id", n.ID),
			zap.String("type", string(n.Type)),
		)
	}
}

// ============================================================
// CRUD
// ============================================================

func (s *InvoiceService) Get(ctx context.Context, id string) (*domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "InvoiceService.Get")
	defer span.End()
	span.SetAttributes(attribute.String("invoice.id", id))

	return s.store.GetInvoice(ctx, id)
}

func (s *InvoiceService) List(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "InvoiceService.List")
	defer span.End()

	return s.store.ListInvoices(ctx, filter)
}

// Update applies a manual correction. A changed amount or category is
// checked against the limit table again.
func (s *InvoiceService) Update(ctx context.Context, id string, patch domain.InvoicePatch) (*domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "InvoiceService.Update")
	defer span.End()
	span.SetAttributes(attribute.String("invoice.id", id))

	if patch.Category != nil && !patch.Category.Valid() {
		return nil, &domain.ErrValidation{Field: "category", Message: "unknown category " + string(*patch.Category)}
	}
	if patch.Amount != nil && patch.Amount.IsNegative() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must not be negative"}
	}

	inv, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *inv

	patch.Apply(inv, s.now())
	if err := s.store.UpdateInvoice(ctx, inv); err != nil {
		return nil, err
	}

	if limitInputsChanged(&before, inv) {
		has, err := s.store.HasNotification(ctx, inv.ID, domain.NotificationLimitExceeded)
		if err != nil {
			s.logger.Warn("failed to check existing notifications", zap.String("invoice_id", id), zap.Error(err))
		} else if !has {
			s.raiseNotifications(ctx, inv)
		}
	}
	return inv, nil
}

func limitInputsChanged(before, after *domain.Invoice) bool {
	if before.Category != after.Category {
		return true
	}
	if before.Amount.Valid != after.Amount.Valid {
		return true
	}
	return after.Amount.Valid && !before.Amount.Decimal.Equal(after.Amount.Decimal)
}

func (s *InvoiceService) MarkAsPaid(ctx context.Context, id string) (*domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "InvoiceService.MarkAsPaid")
	defer span.End()

	paid := true
	return s.Update(ctx, id, domain.InvoicePatch{Paid: &paid})
}

// Delete removes the invoice and its notifications.
func (s *InvoiceService) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "InvoiceService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("invoice.id", id))

	if _, err := s.store.GetInvoice(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteNotificationsByInvoice(ctx, id); err != nil {
		return fmt.Errorf("delete notifications: %w", err)
	}
	if err := s.store.DeleteInvoice(ctx, id); err != nil {
		return err
	}
	s.logger.Info("invoice deleted", zap.String("invoice_id", id))
	return nil
}

// ============================================================
// Calendar queries
// ============================================================

// Upcoming lists unpaid invoices due between today and today+days,
// earliest first. days <= 0 means DefaultUpcomingDays.
func (s *InvoiceService) Upcoming(ctx context.Context, days int) ([]domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "InvoiceService.Upcoming")
	defer span.End()

	if days <= 0 {
		days = DefaultUpcomingDays
	}
	today := s.evaluator.Today(s.now())
	end := today.AddDate(0, 0, days)
	unpaid := false

	list, err := s.store.ListInvoices(ctx, domain.InvoiceFilter{Paid: &unpaid, DueFrom: &today, DueTo: &end})
	if err != nil {
		return nil, err
	}
	sortByDueDate(list)
	return list, nil
}

// Overdue lists unpaid invoices due before today, earliest first.
func (s *InvoiceService) Overdue(ctx context.Context) ([]domain.Invoice, error) {
	ctx, span := tracer.Start(ctx, "InvoiceService.Overdue")
	defer span.End()

	yesterday := s.evaluator.Today(s.now()).AddDate(0, 0, -1)
	unpaid := false

	list, err := s.store.ListInvoices(ctx, domain.InvoiceFilter{Paid: &unpaid, DueTo: &yesterday})
	if err != nil {
		return nil, err
	}
	sortByDueDate(list)
	return list, nil
}

func sortByDueDate(list []domain.Invoice) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].DueDate.Before(*list[j].DueDate)
	})
}

// ============================================================
// Dashboard & export
// ============================================================

// Summary aggregates every stored invoice for the dashboard. Invoices in
// ERROR are counted but excluded from the amounts.
func (s *InvoiceService) Summary(ctx context.Context) (*domain.InvoiceSummary, error) {
	ctx, span := tracer.Start(ctx, "InvoiceService.Summary")
	defer span.End()

	all, err := s.store.ListInvoices(ctx, domain.InvoiceFilter{})
	if err != nil {
		return nil, err
	}

	today := s.evaluator.Today(s.now())
	horizon := today.AddDate(0, 0, DefaultUpcomingDays)

	sum := &domain.InvoiceSummary{
		TotalAmount:   decimal.Zero,
		PaidAmount:    decimal.Zero,
		PendingAmount: decimal.Zero,
		ByCategory:    make(map[domain.Category]decimal.Decimal),
	}
	for i := range all {
		inv := &all[i]
		sum.TotalCount++
		if inv.Status == domain.StatusError {
			sum.ErrorCount++
			continue
		}

		amount := decimal.Zero
		if inv.Amount.Valid {
			amount = inv.Amount.Decimal
		}
		sum.TotalAmount = sum.TotalAmount.Add(amount)
		sum.ByCategory[inv.Category] = sum.ByCategory[inv.Category].Add(amount)

		if inv.Paid {
			sum.PaidCount++
			sum.PaidAmount = sum.PaidAmount.Add(amount)
			continue
		}
		sum.PendingCount++
		sum.PendingAmount = sum.PendingAmount.Add(amount)

		if inv.DueDate == nil {
			continue
		}
		due := domain.DateOf(*inv.DueDate)
		switch {
		case due.Before(today):
			sum.OverdueCount++
		case !due.After(horizon):
			sum.UpcomingCount++
		}
	}
	return sum, nil
}

// Export writes the filtered listing as an XLSX workbook.
func (s *InvoiceService) Export(ctx context.Context, filter domain.InvoiceFilter, w io.Writer) error {
	ctx, span := tracer.Start(ctx, "InvoiceService.Export")
	defer span.End()

	list, err := s.store.ListInvoices(ctx, filter)
	if err != nil {
		return err
	}
	if err := export.WriteInvoices(w, list); err != nil {
		return fmt.Errorf("export invoices: %w", err)
	}
	s.logger.Info("invoices exported",
		zap.Int("rows", len(list)),
		zap.String("total", export.FormatTotal(list)),
	)
	return nil
}

// Categories returns the category catalogue with labels and ceilings.
func (s *InvoiceService) Categories() []domain.CategoryInfo {
	cats := domain.Categories()
	out := make([]domain.CategoryInfo, 0, len(cats))
	for _, c := range cats {
		out = append(out, domain.CategoryInfo{ID: c, Label: c.Label(), Limit: s.evaluator.Limits().For(c)})
	}
	return out
}
