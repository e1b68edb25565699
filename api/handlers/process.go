package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/customeros/dmarcwatch/internal/enum"
	dmarcwatch_errors "github.com/customeros/dmarcwatch/internal/errors"
	"github.com/customeros/dmarcwatch/internal/tracing"
	"github.com/customeros/dmarcwatch/services/processor"
)

// TriggerProcessing kicks off a manual processing run. A run already in
// flight yields 409; the trigger is rejected, not queued.
func TriggerProcessing(p *processor.ProcessorService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "TriggerProcessing", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		result, err := p.ProcessReports(ctx, enum.JobTriggerManual)
		if err != nil {
			if err == dmarcwatch_errors.ErrRunInProgress {
				c.JSON(http.StatusConflict, gin.H{
					"status":  "error",
					"message": err.Error(),
				})
				return
			}
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"status":  "error",
				"message": err.Error(),
				"result":  result,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "success",
			"result": result,
		})
	}
}
