package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	feetypedomain "github.com/smallbiznis/schoolbill/internal/feetype/domain"
)

type createFeeTypeRequest struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) CreateFeeType(c *gin.Context) {
	var req createFeeTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	feeType, err := s.feeTypeSvc.Create(c.Request.Context(), feetypedomain.CreateFeeTypeRequest{
		Name:   strings.TrimSpace(req.Name),
		Amount: req.Amount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": feeType})
}

func (s *Server) ListFeeTypes(c *gin.Context) {
	feeTypes, err := s.feeTypeSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": feeTypes})
}

func (s *Server) GetFeeType(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	feeType, err := s.feeTypeSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": feeType})
}

func (s *Server) DeleteFeeType(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.feeTypeSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
