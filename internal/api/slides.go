package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"matscigpt/backend/internal/models"
	"matscigpt/backend/internal/service"
	"matscigpt/backend/pkg/logger"
	"matscigpt/backend/shared/observability"
)

// SlideController handles slide deck generation endpoints
type SlideController struct {
	slideService *service.SlideService
	metrics      *observability.Metrics
	log          *logger.Logger
}

// NewSlideController creates a new slide controller. metrics may be nil.
func NewSlideController(slideService *service.SlideService, metrics *observability.Metrics, log *logger.Logger) *SlideController {
	return &SlideController{slideService: slideService, metrics: metrics, log: log}
}

// RegisterRoutesV1 registers the slide routes on the v1 group
func (c *SlideController) RegisterRoutesV1(v1 *gin.RouterGroup) {
	v1.POST("/slides", c.Generate)
}

// Generate handles POST /api/v1/slides. An upstream failure still returns a
// deck: a fixed error deck rides along with the 500 so the client has
// something to render.
func (c *SlideController) Generate(ctx *gin.Context) {
	var req models.SlideRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	c.metrics.RecordSlides(ctx.Request.Context())

	slides, err := c.slideService.GenerateDeck(ctx.Request.Context(), req.Prompt)
	if err != nil {
		if errors.Is(err, service.ErrPromptRequired) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Prompt is required"})
			return
		}

		c.log.LogError(err, "slide generation failed")
		ctx.JSON(http.StatusInternalServerError, models.SlideResponse{
			Error:  "Failed to generate presentation",
			Slides: service.ErrorDeck(),
		})
		return
	}

	ctx.JSON(http.StatusOK, models.SlideResponse{Slides: slides})
}
