package delivery

import (
	"net/http"

	"github.com/gin-gonic/gin"

	agentdto "welcome-agent/internal/agent/dto"
	"welcome-agent/internal/agent/usecase"
	authdelivery "welcome-agent/internal/auth/delivery"
	appErrors "welcome-agent/pkg/errors"
	"welcome-agent/pkg/response"
)

type AgentHandler struct {
	agentUsecase usecase.AgentUsecase
}

func NewAgentHandler(agentUsecase usecase.AgentUsecase) *AgentHandler {
	return &AgentHandler{agentUsecase: agentUsecase}
}

// GET /api/workspaces/:id/agents
func (h *AgentHandler) List(c *gin.Context) {
	agents, err := h.agentUsecase.List(c.Request.Context(), authdelivery.CurrentUser(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, agents)
}

// POST /api/workspaces/:id/agents
func (h *AgentHandler) Create(c *gin.Context) {
	var req agentdto.CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	agent, err := h.agentUsecase.Create(c.Request.Context(), authdelivery.CurrentUser(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, agent)
}

// GET /api/agents/:id
func (h *AgentHandler) Get(c *gin.Context) {
	agent, err := h.agentUsecase.Get(c.Request.Context(), authdelivery.CurrentUser(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, agent)
}

// PATCH /api/agents/:id
func (h *AgentHandler) Update(c *gin.Context) {
	var req agentdto.UpdateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	agent, err := h.agentUsecase.Update(c.Request.Context(), authdelivery.CurrentUser(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, agent)
}

// DELETE /api/agents/:id
func (h *AgentHandler) Delete(c *gin.Context) {
	if err := h.agentUsecase.Delete(c.Request.Context(), authdelivery.CurrentUser(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "agent deleted"})
}
