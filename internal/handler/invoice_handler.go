package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/export"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

var allowedMedia = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
}

// ============================================================
// Upload
// ============================================================

func uploadInvoiceHandler(svc *service.InvoiceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/invoices/upload")
		defer span.End()

		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "arquivo excede o tamanho máximo permitido")
				return
			}
			writeError(w, http.StatusBadRequest, "requisição multipart inválida")
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "campo 'file' é obrigatório")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "falha ao ler o arquivo enviado")
			return
		}

		mediaType := detectMediaType(header.Header.Get("Content-Type"), header.Filename, data)
		span.SetAttributes(
			attribute.String("upload.filename", header.Filename),
			attribute.String("upload.media_type", mediaType),
			attribute.Int("upload.bytes", len(data)),
		)
		if !allowedMedia[mediaType] {
			handleServiceError(w, &domain.ErrUnsupportedMedia{MediaType: mediaType}, logger)
			return
		}

		inv, err := svc.ProcessUpload(ctx, domain.RawDocument{
			Filename:  filepath.Base(header.Filename),
			MediaType: mediaType,
			Data:      data,
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, inv)
	}
}

// detectMediaType trusts the declared part type when it is specific,
// then the file extension, then content sniffing.
func detectMediaType(declared, filename string, data []byte) string {
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		mt = ""
	}
	if mt == "image/jpg" {
		mt = "image/jpeg"
	}
	if mt != "" && mt != "application/octet-stream" {
		return mt
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	}

	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return sniffed
}

// ============================================================
// Queries
// ============================================================

func listInvoicesHandler(svc *service.InvoiceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/invoices")
		defer span.End()

		filter, err := parseInvoiceFilter(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		list, err := svc.List(ctx, filter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if list == nil {
			list = []domain.Invoice{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func getInvoiceHandler(svc *service.InvoiceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/invoices/{id}")
		defer span.End()

		inv, err := svc.Get(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, inv)
	}
}

func upcomingInvoicesHandler(svc *service.InvoiceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/invoices/upcoming")
		defer span.End()

		days := 0
		if v := r.URL.Query().Get("days"); v != "" {
			d, err := strconv.Atoi(v)
			if err != nil || d < 0 {
				writeError(w, http.StatusBadRequest, "days must be a non-negative integer")
				return
			}
			days = d
		}

		list, err := svc.Upcoming(ctx, days)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if list == nil {
			list = []domain.Invoice{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func overdueInvoicesHandler(svc *service.InvoiceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/invoices/overdue")
		defer span.End()

		list, err := svc.Overdue(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if list == nil {
			list = []domain.Invoice{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func invoiceSummaryHandler(svc *service.InvoiceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/invoices/summary")
		defer span.End()

		sum, err := svc.Summary(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

func exportInvoicesHandler(svc *service.InvoiceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/invoices/export")
		defer span.End()

		filter, err := parseInvoiceFilter(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		var buf bytes.Buffer
		if err := svc.Export(ctx, filter, &buf); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", export.ContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="faturas.xlsx"`)
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.WriteHeader(http.StatusOK)
		buf.WriteTo(w)
	}
}

// ============================================================
// Mutations
// ============================================================

// updateInvoiceRequest mirrors domain.InvoicePatch with calendar dates as
// YYYY-MM-DD strings.
type updateInvoiceRequest struct {
	Amount      *decimal.Decimal `json:"amount"`
	DueDate     *string          `json:"dueDate"`
	IssueDate   *string          `json:"issueDate"`
	Issuer      *string          `json:"issuer"`
	Category    *string          `json:"category"`
	Description *string          `json:"description"`
	Paid        *bool            `json:"paid"`
}

func (req updateInvoiceRequest) toPatch() (domain.InvoicePatch, error) {
	patch := domain.InvoicePatch{
		Amount:      req.Amount,
		Issuer:      req.Issuer,
		Description: req.Description,
		Paid:        req.Paid,
	}
	var err error
	if req.DueDate != nil {
		if patch.DueDate, err = parseDate("dueDate", *req.DueDate); err != nil {
			return patch, err
		}
	}
	if req.IssueDate != nil {
		if patch.IssueDate, err = parseDate("issueDate", *req.IssueDate); err != nil {
			return patch, err
		}
	}
	if req.Category != nil {
		c := domain.Category(*req.Category)
		patch.Category = &c
	}
	return patch, nil
}

func updateInvoiceHandler(svc *service.InvoiceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/invoices/{id}")
		defer span.End()

		var req updateInvoiceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		patch, err := req.toPatch()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		inv, err := svc.Update(ctx, chi.URLParam(r, "id"), patch)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, inv)
	}
}

func markPaidHandler(svc *service.InvoiceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/invoices/{id}/mark-paid")
		defer span.End()

		inv, err := svc.MarkAsPaid(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, inv)
	}
}

func deleteInvoiceHandler(svc *service.InvoiceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/invoices/{id}")
		defer span.End()

		if err := svc.Delete(ctx, chi.URLParam(r, "id")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func categoriesHandler(svc *service.InvoiceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Categories())
	}
}
