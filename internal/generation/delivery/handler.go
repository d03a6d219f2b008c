package delivery

import (
	"net/http"

	"github.com/gin-gonic/gin"

	agentdto "welcome-agent/internal/agent/dto"
	authdelivery "welcome-agent/internal/auth/delivery"
	"welcome-agent/internal/generation/dto"
	"welcome-agent/internal/generation/usecase"
	appErrors "welcome-agent/pkg/errors"
	"welcome-agent/pkg/response"
	"welcome-agent/pkg/validator"
)

type GenerationHandler struct {
	generationUsecase usecase.GenerationUsecase
}

func NewGenerationHandler(generationUsecase usecase.GenerationUsecase) *GenerationHandler {
	return &GenerationHandler{generationUsecase: generationUsecase}
}

// Generate handles POST /api/generate-email. Unlike the rest of the API it answers with the flat
// {success, email} / {success:false, error} shape the dashboard form expects.
func (h *GenerationHandler) Generate(c *gin.Context) {
	var req dto.GenerateEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.GenerateEmailResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	resp, err := h.generationUsecase.Generate(c.Request.Context(), authdelivery.CurrentUser(c), req)
	if err != nil {
		appErr := appErrors.FromError(err)
		status := appErr.StatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		if resp == nil {
			resp = &dto.GenerateEmailResponse{Error: appErr.Message}
		}
		c.JSON(status, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// POST /api/agents/:id/test
func (h *GenerationHandler) TestAgent(c *gin.Context) {
	var req agentdto.TestAgentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.NewBadRequest(err.Error()))
			return
		}
	}
	if err := validator.Check(req); err != nil {
		response.Error(c, err)
		return
	}

	test, err := h.generationUsecase.TestAgent(c.Request.Context(), authdelivery.CurrentUser(c), c.Param("id"), req.SignupInfo, req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, test)
}

// POST /api/agents/:id/website-summary
func (h *GenerationHandler) SummarizeWebsite(c *gin.Context) {
	summary, err := h.generationUsecase.SummarizeWebsite(c.Request.Context(), authdelivery.CurrentUser(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto.WebsiteSummaryResponse{Summary: summary})
}
