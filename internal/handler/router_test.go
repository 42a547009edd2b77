package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/alerts"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/classification"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/export"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/handler"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/infra/cache"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/infra/delivery"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/infra/memory"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/infra/observability"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/infra/resilience"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/service"

	"go.uber.org/zap"
)

const invoiceText = `CEDENTE: COMPANHIA DE SANEAMENTO BASICO SABESP
DATA DE EMISSAO: 02/05/2025
VENCIMENTO: 20/05/2025
VALOR DO DOCUMENTO R$ 89,90`

type staticExtractor struct{ text string }

func (s staticExtractor) ExtractText(context.Context, domain.RawDocument) (string, error) {
	return s.text, nil
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type testServer struct {
	router http.Handler
	store  *memory.Store
}

func newTestServer(t *testing.T, maxUpload int64) *testServer {
	t.Helper()
	store := memory.New()
	metrics := observability.NewMetrics()
	logger := zap.NewNop()
	evaluator := alerts.NewEvaluator(nil, alerts.Config{Recipient: "financeiro@example.com", Location: time.UTC})

	c := cache.New[string](time.Minute)
	t.Cleanup(c.Stop)

	invoices := service.NewInvoiceService(store, staticExtractor{text: invoiceText}, classification.New(nil),
		evaluator, c, resilience.NewBulkhead(2), time.Second, metrics, logger)
	notifications := service.NewNotificationService(store, delivery.NewLogDeliverer(logger), evaluator, 0, metrics, logger)

	return &testServer{
		router: handler.NewRouter(invoices, notifications, store, metrics, maxUpload, logger),
		store:  store,
	}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func (s *testServer) upload(t *testing.T) domain.Invoice {
	t.Helper()
	body, ct := multipartBody(t, "file", "sabesp.png", "image/png", []byte("\x89PNG fake"))
	req := httptest.NewRequest(http.MethodPost, "/v1/invoices/upload", body)
	req.Header.Set("Content-Type", ct)

	rec := s.do(req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var inv domain.Invoice
	if err := json.NewDecoder(rec.Body).Decode(&inv); err != nil {
		t.Fatalf("decode invoice: %v", err)
	}
	return inv
}

// --- Operational endpoints ---

func TestOperationalEndpoints(t *testing.T) {
	srv := newTestServer(t, 1<<20)

	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/ping", "/v1/metrics/pipeline"} {
		rec := srv.do(httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestReadyz_StoreDown(t *testing.T) {
	metrics := observability.NewMetrics()
	router := handler.NewRouter(nil, nil, failingPinger{}, metrics, 0, zap.NewNop())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var health domain.HealthStatus
	json.NewDecoder(rec.Body).Decode(&health)
	if health.Status != "degraded" {
		t.Errorf("expected degraded, got %q", health.Status)
	}
}

// --- Upload ---

func TestUpload_Success(t *testing.T) {
	srv := newTestServer(t, 1<<20)
	inv := srv.upload(t)

	if inv.Status != domain.StatusProcessed {
		t.Errorf("status = %s", inv.Status)
	}
	if inv.Category != domain.CategoryAgua {
		t.Errorf("category = %s", inv.Category)
	}
	if inv.Filename != "sabesp.png" {
		t.Errorf("filename = %q", inv.Filename)
	}
	if inv.DueDate == nil || !inv.DueDate.Equal(domain.Date(2025, time.May, 20)) {
		t.Errorf("due date = %v", inv.DueDate)
	}
}

func TestUpload_MissingFile(t *testing.T) {
	srv := newTestServer(t, 1<<20)
	body, ct := multipartBody(t, "document", "a.pdf", "application/pdf", []byte("%PDF"))
	req := httptest.NewRequest(http.MethodPost, "/v1/invoices/upload", body)
	req.Header.Set("Content-Type", ct)

	if rec := srv.do(req); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestUpload_UnsupportedMedia(t *testing.T) {
	srv := newTestServer(t, 1<<20)
	body, ct := multipartBody(t, "file", "notes.txt", "text/plain", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/v1/invoices/upload", body)
	req.Header.Set("Content-Type", ct)

	if rec := srv.do(req); rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415, got %d", rec.Code)
	}
}

func TestUpload_TooLarge(t *testing.T) {
	srv := newTestServer(t, 128)
	body, ct := multipartBody(t, "file", "big.pdf", "application/pdf", bytes.Repeat([]byte("x"), 1024))
	req := httptest.NewRequest(http.MethodPost, "/v1/invoices/upload", body)
	req.Header.Set("Content-Type", ct)

	if rec := srv.do(req); rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}
}

// --- Queries & mutations ---

func TestListInvoices_Filters(t *testing.T) {
	srv := newTestServer(t, 1<<20)
	srv.upload(t)

	cases := []struct {
		query string
		code  int
		count int
	}{
		{"", http.StatusOK, 1},
		{"?category=agua", http.StatusOK, 1},
		{"?category=energia", http.StatusOK, 0},
		{"?search=sabesp", http.StatusOK, 1},
		{"?dueDateStart=2025-05-01&dueDateEnd=2025-05-31", http.StatusOK, 1},
		{"?minAmount=100", http.StatusOK, 0},
		{"?category=luz", http.StatusBadRequest, 0},
		{"?paid=talvez", http.StatusBadRequest, 0},
		{"?dueDateStart=20/05/2025", http.StatusBadRequest, 0},
	}

	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			rec := srv.do(httptest.NewRequest(http.MethodGet, "/v1/invoices"+tc.query, nil))
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, rec.Code)
			}
			if tc.code != http.StatusOK {
				return
			}
			var list []domain.Invoice
			json.NewDecoder(rec.Body).Decode(&list)
			if len(list) != tc.count {
				t.Errorf("expected %d invoices, got %d", tc.count, len(list))
			}
		})
	}
}

func TestGetInvoice_NotFound(t *testing.T) {
	srv := newTestServer(t, 1<<20)
	rec := srv.do(httptest.NewRequest(http.MethodGet, "/v1/invoices/does-not-exist", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestUpdateInvoice(t *testing.T) {
	srv := newTestServer(t, 1<<20)
	inv := srv.upload(t)

	req := httptest.NewRequest(http.MethodPatch, "/v1/invoices/"+inv.ID,
		strings.NewReader(`{"category":"outros","dueDate":"2025-06-01","issuer":"SABESP"}`))
	rec := srv.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated domain.Invoice
	json.NewDecoder(rec.Body).Decode(&updated)
	if updated.Category != domain.CategoryOutros || updated.IssuerOr("") != "SABESP" {
		t.Errorf("unexpected invoice: %+v", updated)
	}
	if updated.DueDate == nil || !updated.DueDate.Equal(domain.Date(2025, time.June, 1)) {
		t.Errorf("due date = %v", updated.DueDate)
	}

	bad := []string{`{"category":"luz"}`, `{"dueDate":"01/06/2025"}`, `{"amount":-1}`, `not json`}
	for _, body := range bad {
		req := httptest.NewRequest(http.MethodPatch, "/v1/invoices/"+inv.ID, strings.NewReader(body))
		if rec := srv.do(req); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestMarkPaidAndDelete(t *testing.T) {
	srv := newTestServer(t, 1<<20)
	inv := srv.upload(t)

	rec := srv.do(httptest.NewRequest(http.MethodPatch, "/v1/invoices/"+inv.ID+"/mark-paid", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("mark-paid: expected 200, got %d", rec.Code)
	}
	var paid domain.Invoice
	json.NewDecoder(rec.Body).Decode(&paid)
	if !paid.Paid {
		t.Error("invoice should be paid")
	}

	rec = srv.do(httptest.NewRequest(http.MethodDelete, "/v1/invoices/"+inv.ID, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
	rec = srv.do(httptest.NewRequest(http.MethodGet, "/v1/invoices/"+inv.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("after delete: expected 404, got %d", rec.Code)
	}
}

func TestSummaryAndCalendarEndpoints(t *testing.T) {
	srv := newTestServer(t, 1<<20)
	srv.upload(t)

	for _, path := range []string{"/v1/invoices/summary", "/v1/invoices/upcoming?days=30", "/v1/invoices/overdue"} {
		if rec := srv.do(httptest.NewRequest(http.MethodGet, path, nil)); rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
	if rec := srv.do(httptest.NewRequest(http.MethodGet, "/v1/invoices/upcoming?days=-1", nil)); rec.Code != http.StatusBadRequest {
		t.Errorf("negative days: expected 400, got %d", rec.Code)
	}
}

func TestExport(t *testing.T) {
	srv := newTestServer(t, 1<<20)
	srv.upload(t)

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/v1/invoices/export?category=agua", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != export.ContentType {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "faturas.xlsx") {
		t.Errorf("content disposition = %q", rec.Header().Get("Content-Disposition"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Error("body is not a zip container")
	}
}

func TestCategories(t *testing.T) {
	srv := newTestServer(t, 1<<20)
	rec := srv.do(httptest.NewRequest(http.MethodGet, "/v1/categories", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var cats []domain.CategoryInfo
	json.NewDecoder(rec.Body).Decode(&cats)
	if len(cats) != len(domain.Categories()) {
		t.Errorf("expected %d categories, got %d", len(domain.Categories()), len(cats))
	}
}

// --- Notifications ---

func TestNotificationEndpoints(t *testing.T) {
	srv := newTestServer(t, 1<<20)
	inv := srv.upload(t)

	n := domain.NewNotification(inv.ID, domain.NotificationLimitExceeded, time.Now().Add(-time.Minute),
		"financeiro@example.com", "limite", time.Now())
	if err := srv.store.CreateNotification(context.Background(), &n); err != nil {
		t.Fatal(err)
	}

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/v1/notifications/pending", nil))
	var pending []domain.Notification
	json.NewDecoder(rec.Body).Decode(&pending)
	if rec.Code != http.StatusOK || len(pending) != 1 {
		t.Fatalf("pending: code %d, %d items", rec.Code, len(pending))
	}

	rec = srv.do(httptest.NewRequest(http.MethodPost, "/v1/notifications/"+n.ID+"/send", nil))
	var res domain.SendResult
	json.NewDecoder(rec.Body).Decode(&res)
	if rec.Code != http.StatusOK || !res.Success {
		t.Fatalf("send: code %d, %+v", rec.Code, res)
	}

	rec = srv.do(httptest.NewRequest(http.MethodPost, "/v1/notifications/"+n.ID+"/send", nil))
	res = domain.SendResult{}
	json.NewDecoder(rec.Body).Decode(&res)
	if rec.Code != http.StatusOK || res.Success {
		t.Fatalf("resend: code %d, %+v", rec.Code, res)
	}

	rec = srv.do(httptest.NewRequest(http.MethodPost, "/v1/notifications/unknown/send", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown send: expected 404, got %d", rec.Code)
	}

	rec = srv.do(httptest.NewRequest(http.MethodPost, "/v1/notifications/dispatch", nil))
	var report domain.DispatchReport
	json.NewDecoder(rec.Body).Decode(&report)
	if rec.Code != http.StatusOK || report.Pending != 0 {
		t.Errorf("dispatch: code %d, %+v", rec.Code, report)
	}

	if rec := srv.do(httptest.NewRequest(http.MethodPost, "/v1/notifications/due-soon/scan", nil)); rec.Code != http.StatusOK {
		t.Errorf("scan: expected 200, got %d", rec.Code)
	}

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/v1/notifications", nil))
	var all []domain.Notification
	json.NewDecoder(rec.Body).Decode(&all)
	if len(all) != 1 || !all[0].Sent {
		t.Errorf("list: %+v", all)
	}
}
