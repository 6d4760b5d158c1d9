package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/schoolbill/internal/authorization"
	"github.com/smallbiznis/schoolbill/internal/catalog"
	"github.com/smallbiznis/schoolbill/internal/config"
	documentdomain "github.com/smallbiznis/schoolbill/internal/document/domain"
	documentrepo "github.com/smallbiznis/schoolbill/internal/document/repository"
	documentservice "github.com/smallbiznis/schoolbill/internal/document/service"
	feetypedomain "github.com/smallbiznis/schoolbill/internal/feetype/domain"
	invoicedomain "github.com/smallbiznis/schoolbill/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/schoolbill/internal/payment/domain"
	"github.com/smallbiznis/schoolbill/internal/providers/pdf"
	"github.com/smallbiznis/schoolbill/internal/reconciliation"
	"github.com/smallbiznis/schoolbill/internal/storage"
	"github.com/smallbiznis/schoolbill/internal/testutil/billingfixture"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

type testServer struct {
	fx     *billingfixture.Fixture
	engine *gin.Engine
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error errorPayload    `json:"error"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := billingfixture.New(t)
	require.NoError(t, f.DB.AutoMigrate(&documentdomain.Document{}))

	log := zap.NewNop()
	enforcer, err := authorization.NewEnforcer(f.DB)
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{Log: log, Enforcer: enforcer, AuditSvc: f.Audit})

	policy := config.NewStaticPolicyHolder(config.DefaultPolicy())
	documents := documentservice.NewService(documentservice.Params{
		DB:       f.DB,
		Log:      log,
		GenID:    f.Node,
		Clock:    f.Clock,
		Policy:   policy,
		Store:    storage.NewAferoStore(afero.NewMemMapFs(), log),
		Repo:     documentrepo.Provide(),
		AuditSvc: f.Audit,
	})

	cfg := config.Config{School: config.SchoolConfig{Name: "Hillside Academy"}}
	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())
	NewServer(ServerParams{
		Gin:         engine,
		Cfg:         cfg,
		Policy:      policy,
		AuthzSvc:    authz,
		AuditSvc:    f.Audit,
		FeeTypeSvc:  f.FeeTypes,
		InvoiceSvc:  f.Invoices,
		PaymentSvc:  f.Payments,
		DocumentSvc: documents,
		Catalog:     catalog.NewGormCatalog(f.DB),
		PDF:         pdf.New(cfg),
	})

	return &testServer{fx: f, engine: engine}
}

func (ts *testServer) do(t *testing.T, req *http.Request, userID snowflake.ID, role string) *httptest.ResponseRecorder {
	t.Helper()
	if userID != 0 {
		req.Header.Set(HeaderUserID, userID.String())
	}
	if role != "" {
		req.Header.Set(HeaderUserRole, role)
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func (ts *testServer) doJSON(t *testing.T, method, path string, userID snowflake.ID, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return ts.do(t, req, userID, role)
}

func (ts *testServer) upload(t *testing.T, userID snowflake.ID, role, filename string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return ts.do(t, req, userID, role)
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func TestActorRequired(t *testing.T) {
	ts := newTestServer(t)
	userID := ts.fx.Node.Generate()

	w := ts.doJSON(t, http.MethodGet, "/api/fee-types", 0, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.doJSON(t, http.MethodGet, "/api/fee-types", userID, "JANITOR", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/fee-types", http.NoBody)
	req.Header.Set(HeaderUserID, "not-a-number")
	req.Header.Set(HeaderUserRole, "ADMIN")
	w = httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.doJSON(t, http.MethodGet, "/api/fee-types", userID, "accountant", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBillingRoutes_RequireBillingRole(t *testing.T) {
	ts := newTestServer(t)
	parentID := ts.fx.Node.Generate()

	w := ts.doJSON(t, http.MethodPost, "/api/fee-types", parentID, "PARENT", gin.H{"name": "Tuition", "amount": "100.00"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	env := decode(t, w, nil)
	assert.Equal(t, "forbidden", env.Error.Type)

	w = ts.doJSON(t, http.MethodGet, "/api/invoices", parentID, "PARENT", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	var count int64
	require.NoError(t, ts.fx.DB.Model(&feetypedomain.FeeType{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestBillingFlow(t *testing.T) {
	ts := newTestServer(t)
	accountant := ts.fx.Node.Generate()
	admin := ts.fx.Node.Generate()
	studentID, yearID := ts.fx.Student(t)

	w := ts.doJSON(t, http.MethodPost, "/api/fee-types", accountant, "ACCOUNTANT", gin.H{"name": "Tuition", "amount": "1500.00"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var feeType feetypedomain.FeeType
	decode(t, w, &feeType)

	w = ts.doJSON(t, http.MethodPost, "/api/fee-types", accountant, "ACCOUNTANT", gin.H{"name": "tuition", "amount": "10.00"})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, feetypedomain.ErrDuplicateName.Error(), decode(t, w, nil).Error.Code)

	w = ts.doJSON(t, http.MethodPost, "/api/invoices", accountant, "ACCOUNTANT", gin.H{
		"student_id":       studentID.String(),
		"academic_year_id": yearID.String(),
		"due_date":         "2025-10-01",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var invoice invoiceResponse
	decode(t, w, &invoice)
	assert.Equal(t, invoicedomain.InvoiceStatusUnpaid, invoice.Status)

	invoicePath := "/api/invoices/" + invoice.ID.String()
	w = ts.doJSON(t, http.MethodPost, invoicePath+"/items", accountant, "ACCOUNTANT", gin.H{"fee_type_id": feeType.ID.String()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.doJSON(t, http.MethodPost, invoicePath+"/payments", accountant, "ACCOUNTANT", gin.H{
		"amount":    "500.00",
		"method":    "cash",
		"reference": "RCPT-0001",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var payment paymentdomain.Payment
	decode(t, w, &payment)

	w = ts.doJSON(t, http.MethodGet, invoicePath, accountant, "ACCOUNTANT", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &invoice)
	assert.Equal(t, invoicedomain.InvoiceStatusPartiallyPaid, invoice.Status)
	assert.True(t, invoice.TotalAmount.Equal(billingfixture.Dec("1500")))
	assert.True(t, invoice.AmountPaid.Equal(billingfixture.Dec("500")))
	assert.True(t, invoice.Balance.Equal(billingfixture.Dec("1000")))
	assert.Len(t, invoice.Items, 1)

	w = ts.doJSON(t, http.MethodPost, invoicePath+"/cancel", accountant, "ACCOUNTANT", gin.H{})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.doJSON(t, http.MethodPost, invoicePath+"/cancel", admin, "ADMIN", gin.H{"reason": "duplicate"})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, invoicedomain.ErrOutstandingPayment.Error(), decode(t, w, nil).Error.Code)

	w = ts.doJSON(t, http.MethodGet, invoicePath+"/statement.pdf", accountant, "ACCOUNTANT", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	w = ts.doJSON(t, http.MethodGet, "/api/payments/"+payment.ID.String()+"/receipt.pdf", accountant, "ACCOUNTANT", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	w = ts.doJSON(t, http.MethodPost, "/api/payments/"+payment.ID.String()+"/reverse", accountant, "ACCOUNTANT", gin.H{"reason": "bounced"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &invoice)
	assert.Equal(t, invoicedomain.InvoiceStatusUnpaid, invoice.Status)
	assert.True(t, invoice.AmountPaid.IsZero())

	w = ts.doJSON(t, http.MethodPost, "/api/payments/"+payment.ID.String()+"/reverse", accountant, "ACCOUNTANT", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, paymentdomain.ErrAlreadyReversed.Error(), decode(t, w, nil).Error.Code)

	w = ts.doJSON(t, http.MethodPost, invoicePath+"/cancel", admin, "ADMIN", gin.H{"reason": "duplicate"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &invoice)
	assert.Equal(t, invoicedomain.InvoiceStatusCancelled, invoice.Status)

	w = ts.doJSON(t, http.MethodDelete, "/api/fee-types/"+feeType.ID.String(), accountant, "ACCOUNTANT", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, feetypedomain.ErrReferentialIntegrity.Error(), decode(t, w, nil).Error.Code)
}

func TestRecordPayment_Validation(t *testing.T) {
	ts := newTestServer(t)
	accountant := ts.fx.Node.Generate()
	invoice := ts.fx.Invoice(t, "200.00")
	path := "/api/invoices/" + invoice.ID.String() + "/payments"

	w := ts.doJSON(t, http.MethodPost, path, accountant, "ACCOUNTANT", gin.H{"amount": "-1", "method": "cash"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, paymentdomain.ErrInvalidAmount.Error(), decode(t, w, nil).Error.Code)

	w = ts.doJSON(t, http.MethodPost, path, accountant, "ACCOUNTANT", gin.H{"amount": "10", "method": "barter"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, paymentdomain.ErrInvalidPaymentMethod.Error(), decode(t, w, nil).Error.Code)

	w = ts.doJSON(t, http.MethodPost, "/api/invoices/"+ts.fx.Node.Generate().String()+"/payments", accountant, "ACCOUNTANT", gin.H{"amount": "10", "method": "cash"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.doJSON(t, http.MethodGet, path, accountant, "ACCOUNTANT", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var payments []paymentdomain.Payment
	decode(t, w, &payments)
	assert.Empty(t, payments)
}

func TestDocumentRoutes(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.fx.Node.Generate()
	other := ts.fx.Node.Generate()
	teacher := ts.fx.Node.Generate()

	w := ts.upload(t, owner, "PARENT", "Report Card.PDF", samplePDF, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var doc documentdomain.Document
	decode(t, w, &doc)
	assert.Equal(t, owner, doc.OwnerID)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.NotContains(t, w.Body.String(), "storage_handle")

	w = ts.upload(t, owner, "PARENT", "report.exe", samplePDF, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, documentdomain.ErrUnsupportedExtension.Code, decode(t, w, nil).Error.Code)

	w = ts.upload(t, owner, "PARENT", "scan.png", samplePDF, map[string]string{"size": "3"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, documentdomain.ErrSizeMismatch.Code, decode(t, w, nil).Error.Code)

	w = ts.upload(t, other, "PARENT", "note.pdf", samplePDF, map[string]string{"owner_id": owner.String()})
	assert.Equal(t, http.StatusForbidden, w.Code)

	contentPath := "/api/documents/" + doc.ID.String() + "/content"
	w = ts.doJSON(t, http.MethodGet, contentPath, other, "PARENT", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.doJSON(t, http.MethodGet, contentPath, owner, "PARENT", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, samplePDF, w.Body.Bytes())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")

	w = ts.doJSON(t, http.MethodGet, contentPath, teacher, "TEACHER", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var docs []documentdomain.Document
	w = ts.doJSON(t, http.MethodGet, "/api/documents", other, "PARENT", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &docs)
	assert.Empty(t, docs)

	w = ts.doJSON(t, http.MethodGet, "/api/documents?owner_id="+owner.String(), teacher, "TEACHER", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &docs)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.ID, docs[0].ID)

	w = ts.doJSON(t, http.MethodGet, "/api/documents?page_token=garbage", owner, "PARENT", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.doJSON(t, http.MethodDelete, "/api/documents/"+doc.ID.String(), other, "PARENT", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.doJSON(t, http.MethodDelete, "/api/documents/"+doc.ID.String(), owner, "PARENT", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.doJSON(t, http.MethodGet, contentPath, owner, "PARENT", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadDocument_BodyOverLimit(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.fx.Node.Generate()

	content := bytes.Repeat([]byte("a"), 10_485_760+multipartOverhead+1)
	w := ts.upload(t, owner, "PARENT", "big.pdf", content, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, documentdomain.ErrFileTooLarge.Code, decode(t, w, nil).Error.Code)
}

func TestAuditLogs_SeniorOnly(t *testing.T) {
	ts := newTestServer(t)
	director := ts.fx.Node.Generate()
	accountant := ts.fx.Node.Generate()

	w := ts.doJSON(t, http.MethodPost, "/api/fee-types", accountant, "ACCOUNTANT", gin.H{"name": "Transport", "amount": "75.50"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.doJSON(t, http.MethodGet, "/api/audit-logs", accountant, "ACCOUNTANT", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.doJSON(t, http.MethodGet, "/api/audit-logs?target_type=fee_type", director, "DIRECTOR", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var logs []map[string]any
	decode(t, w, &logs)
	assert.NotEmpty(t, logs)
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err       error
		status    int
		errType   string
		code      string
		retryable bool
	}{
		{feetypedomain.ErrInvalidName, http.StatusBadRequest, "validation_error", "invalid_name", false},
		{fmt.Errorf("wrap: %w", invoicedomain.ErrInvalidDueDate), http.StatusBadRequest, "validation_error", "invalid_due_date", false},
		{documentdomain.ErrFileTooLarge, http.StatusBadRequest, "validation_error", "file_too_large", false},
		{authorization.ErrForbidden, http.StatusForbidden, "forbidden", "", false},
		{documentdomain.ErrPermission, http.StatusForbidden, "forbidden", "", false},
		{invoicedomain.ErrInvoiceNotFound, http.StatusNotFound, "not_found", "invoice_not_found", false},
		{documentdomain.ErrNotFound, http.StatusNotFound, "not_found", "document_not_found", false},
		{fmt.Errorf("cancel: %w", invoicedomain.ErrInvoiceCancelled), http.StatusConflict, "conflict", "invoice_cancelled", false},
		{paymentdomain.ErrInvalidOperation, http.StatusConflict, "conflict", "invoice_has_no_billable_items", false},
		{invoicedomain.ErrAmountLimitExceeded, http.StatusConflict, "conflict", "invoice_amount_limit_exceeded", false},
		{reconciliation.ErrConcurrentUpdate, http.StatusServiceUnavailable, "service_unavailable", "concurrent_update", true},
		{fmt.Errorf("%w: disk gone", documentdomain.ErrStorageUnavailable), http.StatusBadGateway, "storage_unavailable", "document_storage_unavailable", true},
		{ErrRateLimited, http.StatusTooManyRequests, "rate_limited", "", false},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error", "", false},
	}

	for _, tc := range cases {
		status, payload := mapError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.errType, payload.Type, tc.err.Error())
		assert.Equal(t, tc.code, payload.Code, tc.err.Error())
		assert.Equal(t, tc.retryable, payload.Retryable, tc.err.Error())
	}

	errType, code := classifyErrorForLog(invalidRequestError())
	assert.Equal(t, "validation_error", errType)
	assert.Equal(t, "invalid_request", code)
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 2, retryAfterSeconds(1500*1e6))
}
