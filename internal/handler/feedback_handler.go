package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/critiqlab/critiq/internal/cache"
	"github.com/critiqlab/critiq/internal/pkg/errcode"
	appErr "github.com/critiqlab/critiq/internal/pkg/errors"
	"github.com/critiqlab/critiq/internal/pkg/response"
	"github.com/critiqlab/critiq/internal/service"
)

type FeedbackHandler struct {
	feedback *service.FeedbackService
}

func NewFeedbackHandler(feedback *service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedback: feedback}
}

type analyzeRequest struct {
	Content      string `json:"content"`
	FeedbackType string `json:"feedback_type"`
	TopicID      string `json:"topic_id"`
}

type analyzeResponse struct {
	Result     interface{}  `json:"result"`
	Source     cache.Source `json:"source"`
	Similarity float64      `json:"similarity,omitempty"`
}

func (h *FeedbackHandler) Analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	lookup, err := h.feedback.Analyze(c.Request.Context(), req.Content, req.FeedbackType, req.TopicID)
	if err != nil {
		if errors.Is(err, appErr.ErrInvalid) {
			response.Error(c, errcode.ErrInvalid, "content and a known feedback_type are required")
			return
		}
		if errors.Is(err, appErr.ErrAIUnavailable) {
			response.Error(c, errcode.ErrAIUnavailable, "analysis backend unavailable")
			return
		}
		response.Error(c, errcode.ErrAnalyzeFailed, "analysis failed")
		return
	}
	resp := analyzeResponse{Source: lookup.Source, Similarity: lookup.Similarity}
	if lookup.Result != nil {
		resp.Result = lookup.Result
	}
	response.Success(c, resp)
}

// Introspect reports which cache tier satisfied the most recent lookup.
func (h *FeedbackHandler) Introspect(c *gin.Context) {
	info, ok := h.feedback.LastLookup()
	if !ok {
		response.Error(c, errcode.ErrNotFound, "no lookup recorded yet")
		return
	}
	response.Success(c, info)
}
