package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/schoolbill/internal/invoice/domain"
	"github.com/smallbiznis/schoolbill/internal/providers/pdf"
	"github.com/smallbiznis/schoolbill/pkg/db/pagination"
)

type createInvoiceRequest struct {
	StudentID      string `json:"student_id"`
	AcademicYearID string `json:"academic_year_id"`
	DueDate        string `json:"due_date"`
}

type listInvoicesQuery struct {
	pagination.Pagination
	StudentID      string `form:"student_id"`
	AcademicYearID string `form:"academic_year_id"`
	Status         string `form:"status"`
}

type addInvoiceItemRequest struct {
	FeeTypeID   string           `json:"fee_type_id"`
	Amount      *decimal.Decimal `json:"amount"`
	Description string           `json:"description"`
}

type cancelInvoiceRequest struct {
	Force  bool   `json:"force"`
	Reason string `json:"reason"`
}

type invoiceResponse struct {
	invoicedomain.Invoice
	Balance decimal.Decimal             `json:"balance"`
	Items   []invoicedomain.InvoiceItem `json:"items,omitempty"`
}

func newInvoiceResponse(invoice invoicedomain.Invoice, items []invoicedomain.InvoiceItem) invoiceResponse {
	return invoiceResponse{Invoice: invoice, Balance: invoice.Balance(), Items: items}
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	studentID, err := parseOptionalID(req.StudentID)
	if err != nil || studentID == nil {
		AbortWithError(c, newValidationError("student_id", "invalid_student_id", "invalid student_id"))
		return
	}
	yearID, err := parseOptionalID(req.AcademicYearID)
	if err != nil || yearID == nil {
		AbortWithError(c, newValidationError("academic_year_id", "invalid_academic_year_id", "invalid academic_year_id"))
		return
	}
	dueDate, err := parseDate(req.DueDate)
	if err != nil || dueDate == nil {
		AbortWithError(c, invoicedomain.ErrInvalidDueDate)
		return
	}

	invoice, err := s.invoiceSvc.CreateInvoice(c.Request.Context(), invoicedomain.CreateInvoiceRequest{
		StudentID:      *studentID,
		AcademicYearID: *yearID,
		DueDate:        *dueDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": newInvoiceResponse(invoice, nil)})
}

func (s *Server) ListInvoices(c *gin.Context) {
	var query listInvoicesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	studentID, err := parseOptionalID(query.StudentID)
	if err != nil {
		AbortWithError(c, newValidationError("student_id", "invalid_student_id", "invalid student_id"))
		return
	}
	yearID, err := parseOptionalID(query.AcademicYearID)
	if err != nil {
		AbortWithError(c, newValidationError("academic_year_id", "invalid_academic_year_id", "invalid academic_year_id"))
		return
	}

	req := invoicedomain.ListInvoiceRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		StudentID:      studentID,
		AcademicYearID: yearID,
	}
	if raw := strings.TrimSpace(query.Status); raw != "" {
		status := invoicedomain.InvoiceStatus(strings.ToUpper(raw))
		req.Status = &status
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	data := make([]invoiceResponse, 0, len(resp.Invoices))
	for _, invoice := range resp.Invoices {
		data = append(data, newInvoiceResponse(invoice, nil))
	}
	c.JSON(http.StatusOK, gin.H{"data": data, "page_info": resp.PageInfo})
}

func (s *Server) GetInvoice(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	invoice, err := s.invoiceSvc.Get(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	items, err := s.invoiceSvc.ListItems(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newInvoiceResponse(invoice, items)})
}

func (s *Server) AddInvoiceItem(c *gin.Context) {
	invoiceID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req addInvoiceItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	feeTypeID, err := parseOptionalID(req.FeeTypeID)
	if err != nil || feeTypeID == nil {
		AbortWithError(c, newValidationError("fee_type_id", "invalid_fee_type_id", "invalid fee_type_id"))
		return
	}

	item, err := s.invoiceSvc.AddItem(c.Request.Context(), invoicedomain.AddItemRequest{
		InvoiceID:   invoiceID,
		FeeTypeID:   *feeTypeID,
		Amount:      req.Amount,
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": item})
}

func (s *Server) RemoveInvoiceItem(c *gin.Context) {
	invoiceID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	itemID, err := parseIDParam(c, "itemId")
	if err != nil {
		AbortWithError(c, invoicedomain.ErrItemNotFound)
		return
	}

	invoice, err := s.invoiceSvc.RemoveItem(c.Request.Context(), invoiceID, itemID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newInvoiceResponse(invoice, nil)})
}

func (s *Server) RecomputeInvoice(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	invoice, err := s.invoiceSvc.RecomputeTotals(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newInvoiceResponse(invoice, nil)})
}

func (s *Server) CancelInvoice(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req cancelInvoiceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	invoice, err := s.invoiceSvc.CancelInvoice(c.Request.Context(), id, invoicedomain.CancelInvoiceRequest{
		Force:  req.Force,
		Reason: strings.TrimSpace(req.Reason),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newInvoiceResponse(invoice, nil)})
}

func (s *Server) InvoiceStatementPDF(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	invoice, err := s.invoiceSvc.Get(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	items, err := s.invoiceSvc.ListItems(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	payments, err := s.paymentSvc.ListByInvoice(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	labels, err := s.catalog.Labels(ctx, invoice.StudentID, invoice.AcademicYearID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	body, err := s.pdf.GenerateStatement(ctx, pdf.NewStatement(invoice, items, payments, labels))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	writePDF(c, fmt.Sprintf("statement-%s.pdf", invoice.ID), body)
}

func writePDF(c *gin.Context, filename string, body []byte) {
	c.Header("Content-Disposition", contentDisposition("inline", filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", body)
}
