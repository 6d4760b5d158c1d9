package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallbiznis/schoolbill/internal/payment/domain"
	"github.com/smallbiznis/schoolbill/internal/providers/pdf"
)

type recordPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Reference string          `json:"reference"`
}

type reversePaymentRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) RecordPayment(c *gin.Context) {
	invoiceID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	payment, err := s.paymentSvc.RecordPayment(c.Request.Context(), paymentdomain.RecordPaymentRequest{
		InvoiceID: invoiceID,
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: strings.TrimSpace(req.Reference),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": payment})
}

func (s *Server) ListInvoicePayments(c *gin.Context) {
	invoiceID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	if _, err := s.invoiceSvc.Get(ctx, invoiceID); err != nil {
		AbortWithError(c, err)
		return
	}
	payments, err := s.paymentSvc.ListByInvoice(ctx, invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payments})
}

func (s *Server) GetPayment(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payment, err := s.paymentSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payment})
}

func (s *Server) ReversePayment(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req reversePaymentRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	invoice, err := s.paymentSvc.ReversePayment(c.Request.Context(), id, strings.TrimSpace(req.Reason))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newInvoiceResponse(invoice, nil)})
}

func (s *Server) PaymentReceiptPDF(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	payment, err := s.paymentSvc.Get(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	invoice, err := s.invoiceSvc.Get(ctx, payment.InvoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	labels, err := s.catalog.Labels(ctx, invoice.StudentID, invoice.AcademicYearID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	body, err := s.pdf.GenerateReceipt(ctx, pdf.NewReceipt(invoice, payment, labels))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	writePDF(c, fmt.Sprintf("receipt-%s.pdf", payment.ID), body)
}
