package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/schoolbill/internal/audit/domain"
	"github.com/smallbiznis/schoolbill/pkg/db/pagination"
)

type listAuditLogsQuery struct {
	PageToken  string `form:"page_token"`
	PageSize   int    `form:"page_size"`
	Action     string `form:"action"`
	TargetType string `form:"target_type"`
	TargetID   string `form:"target_id"`
	ActorID    string `form:"actor_id"`
	ActorRole  string `form:"actor_role"`
	From       string `form:"from"`
	To         string `form:"to"`
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	var query listAuditLogsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if _, err := parseOptionalID(query.ActorID); err != nil {
		AbortWithError(c, newValidationError("actor_id", "invalid_actor_id", "invalid actor_id"))
		return
	}
	since, err := parseDate(query.From)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from"))
		return
	}
	until, err := parseDate(query.To)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to"))
		return
	}
	// A bare date in "to" covers that whole day.
	if until != nil && isMidnight(*until) && !strings.Contains(query.To, "T") {
		next := until.AddDate(0, 0, 1)
		until = &next
	}

	resp, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		Action:     strings.TrimSpace(query.Action),
		TargetType: strings.TrimSpace(query.TargetType),
		TargetID:   strings.TrimSpace(query.TargetID),
		ActorID:    strings.TrimSpace(query.ActorID),
		ActorRole:  strings.TrimSpace(query.ActorRole),
		Since:      since,
		Until:      until,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.AuditLogs, "page_info": resp.PageInfo})
}
