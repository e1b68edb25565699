package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/customeros/dmarcwatch/internal/repository"
	"github.com/customeros/dmarcwatch/internal/tracing"
)

// ListAlerts returns raised alerts, newest first
func ListAlerts(r *repository.Repositories) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "ListAlerts", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		limit, offset := pagination(c)
		alerts, total, err := r.AlertRepository.List(ctx, limit, offset)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"alerts": alerts,
			"total":  total,
			"limit":  limit,
			"offset": offset,
		})
	}
}

// ListProcessingLogs returns the audit trail, newest first
func ListProcessingLogs(r *repository.Repositories) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "ListProcessingLogs", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		limit, offset := pagination(c)
		entries, total, err := r.ProcessingLogRepository.List(ctx, limit, offset)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"logs":   entries,
			"total":  total,
			"limit":  limit,
			"offset": offset,
		})
	}
}
