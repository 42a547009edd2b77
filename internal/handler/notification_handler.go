package handler

import (
	"net/http"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func listNotificationsHandler(svc *service.NotificationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/notifications")
		defer span.End()

		list, err := svc.List(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if list == nil {
			list = []domain.Notification{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func pendingNotificationsHandler(svc *service.NotificationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/notifications/pending")
		defer span.End()

		list, err := svc.ListPending(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if list == nil {
			list = []domain.Notification{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func sendNotificationHandler(svc *service.NotificationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/notifications/{id}/send")
		defer span.End()

		res, err := svc.Send(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// dispatchHandler runs the pending sweep on demand. A sweep already in
// flight yields 409.
func dispatchHandler(svc *service.NotificationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/notifications/dispatch")
		defer span.End()

		report, err := svc.DispatchPending(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func dueSoonScanHandler(svc *service.NotificationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/notifications/due-soon/scan")
		defer span.End()

		report, err := svc.ScanDueSoon(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}
