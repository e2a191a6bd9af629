package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"matscigpt/backend/internal/models"
	"matscigpt/backend/internal/service"
	"matscigpt/backend/pkg/logger"
	"matscigpt/backend/shared/observability"
)

// ChatController handles chat completion endpoints
type ChatController struct {
	chatService *service.ChatService
	metrics     *observability.Metrics
	log         *logger.Logger
}

// NewChatController creates a new chat controller. metrics may be nil.
func NewChatController(chatService *service.ChatService, metrics *observability.Metrics, log *logger.Logger) *ChatController {
	return &ChatController{chatService: chatService, metrics: metrics, log: log}
}

// RegisterRoutesV1 registers the chat routes on the v1 group
func (c *ChatController) RegisterRoutesV1(v1 *gin.RouterGroup) {
	v1.POST("/chat", c.Complete)
}

// Complete handles POST /api/v1/chat. The endpoint answers HTTP 200 in
// (almost) all cases: upstream failures come back as a conversational
// message so the client UI stays simple. Only a malformed body is a 400.
func (c *ChatController) Complete(ctx *gin.Context) {
	var req models.ChatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	resp := c.chatService.Complete(ctx.Request.Context(), req)
	c.metrics.RecordChat(ctx.Request.Context(), len(req.Attachments) > 0, resp.Error != "")
	if resp.Error != "" {
		c.log.Warn("chat completion degraded",
			"error", resp.Error,
			"messages", len(req.Messages),
			"attachments", len(req.Attachments),
		)
	}

	ctx.JSON(http.StatusOK, resp)
}
