package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"legalis/internal/llm"
	"legalis/internal/port"
)

// UsageHandler handles LLM usage reporting endpoints.
type UsageHandler struct {
	usageRepo port.UsageRepository
	llmSvc    *llm.Service
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(usageRepo port.UsageRepository, llmSvc *llm.Service) *UsageHandler {
	return &UsageHandler{usageRepo: usageRepo, llmSvc: llmSvc}
}

// Summary handles GET /api/v1/usage?from=YYYY-MM-DD&to=YYYY-MM-DD
// Defaults to the last 30 days.
func (h *UsageHandler) Summary(c *gin.Context) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)

	var err error
	if s := c.Query("from"); s != "" {
		if from, err = time.Parse("2006-01-02", s); err != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_RANGE", "from must be YYYY-MM-DD")
			return
		}
	}
	if s := c.Query("to"); s != "" {
		if to, err = time.Parse("2006-01-02", s); err != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_RANGE", "to must be YYYY-MM-DD")
			return
		}
		// Inclusive end of day.
		to = to.Add(24*time.Hour - time.Nanosecond)
	}

	summaries, err := h.usageRepo.SummarizeByDay(c.Request.Context(), from, to)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, summaries)
}

// RateStatus handles GET /api/v1/usage/rate
// Returns the current rate limiter window counts for the active provider.
func (h *UsageHandler) RateStatus(c *gin.Context) {
	usage := h.llmSvc.Usage()
	RespondOK(c, gin.H{
		"requests_this_minute": usage.RequestsThisMinute,
		"requests_this_hour":   usage.RequestsThisHour,
		"tokens_this_minute":   usage.TokensThisMinute,
		"tokens_this_hour":     usage.TokensThisHour,
	})
}
