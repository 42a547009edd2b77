package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

const dateLayout = "2006-01-02"

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// parseDate reads a YYYY-MM-DD query value; an empty value yields nil.
func parseDate(field, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, &domain.ErrValidation{Field: field, Message: "expected YYYY-MM-DD"}
	}
	return &t, nil
}

func parseDecimal(field, v string) (*decimal.Decimal, error) {
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.Replace(v, ",", ".", 1))
	if err != nil {
		return nil, &domain.ErrValidation{Field: field, Message: "invalid number"}
	}
	return &d, nil
}

// parseInvoiceFilter maps the listing query string onto a filter.
func parseInvoiceFilter(r *http.Request) (domain.InvoiceFilter, error) {
	q := r.URL.Query()
	var f domain.InvoiceFilter

	if v := q.Get("category"); v != "" {
		c, err := domain.ParseCategory(v)
		if err != nil {
			return f, err
		}
		f.Category = &c
	}
	if v := q.Get("paid"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, &domain.ErrValidation{Field: "paid", Message: "expected true or false"}
		}
		f.Paid = &b
	}

	var err error
	if f.DueFrom, err = parseDate("dueDateStart", q.Get("dueDateStart")); err != nil {
		return f, err
	}
	if f.DueTo, err = parseDate("dueDateEnd", q.Get("dueDateEnd")); err != nil {
		return f, err
	}
	if f.MinAmount, err = parseDecimal("minAmount", q.Get("minAmount")); err != nil {
		return f, err
	}
	if f.MaxAmount, err = parseDecimal("maxAmount", q.Get("maxAmount")); err != nil {
		return f, err
	}
	f.Search = strings.TrimSpace(q.Get("search"))
	return f, nil
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var timeout *domain.ErrTimeout
	var validation *domain.ErrValidation
	var unsupported *domain.ErrUnsupportedMedia
	var delivery *domain.ErrDelivery
	var external *domain.ErrExternalService
	var busy *domain.ErrBusy

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &timeout):
		logger.Error("request timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &unsupported):
		logger.Debug("unsupported media", zap.String("media_type", unsupported.MediaType))
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.As(err, &busy):
		logger.Info("sweep already running", zap.String("operation", busy.Operation))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &delivery):
		logger.Warn("notification delivery failed",
			zap.String("notification_id", delivery.NotificationID),
			zap.String("transport", delivery.Transport),
			zap.Error(delivery.Err),
		)
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &external):
		logger.Error("external service error", zap.String("service", external.Service), zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream service unavailable")
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
