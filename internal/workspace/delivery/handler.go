package delivery

import (
	"net/http"

	"github.com/gin-gonic/gin"

	authdelivery "welcome-agent/internal/auth/delivery"
	workspacedto "welcome-agent/internal/workspace/dto"
	"welcome-agent/internal/workspace/usecase"
	appErrors "welcome-agent/pkg/errors"
	"welcome-agent/pkg/response"
)

type WorkspaceHandler struct {
	workspaceUsecase usecase.WorkspaceUsecase
}

func NewWorkspaceHandler(workspaceUsecase usecase.WorkspaceUsecase) *WorkspaceHandler {
	return &WorkspaceHandler{workspaceUsecase: workspaceUsecase}
}

// GET /api/workspaces
func (h *WorkspaceHandler) List(c *gin.Context) {
	list, err := h.workspaceUsecase.List(c.Request.Context(), authdelivery.CurrentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, list)
}

// POST /api/workspaces
func (h *WorkspaceHandler) Create(c *gin.Context) {
	var req workspacedto.CreateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	ws, err := h.workspaceUsecase.Create(c.Request.Context(), authdelivery.CurrentUser(c), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, ws)
}

// GET /api/workspaces/:id
func (h *WorkspaceHandler) Get(c *gin.Context) {
	ws, err := h.workspaceUsecase.Get(c.Request.Context(), authdelivery.CurrentUser(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, ws)
}

// PATCH /api/workspaces/:id
func (h *WorkspaceHandler) Rename(c *gin.Context) {
	var req workspacedto.RenameWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	ws, err := h.workspaceUsecase.Rename(c.Request.Context(), authdelivery.CurrentUser(c), c.Param("id"), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, ws)
}

// DELETE /api/workspaces/:id
func (h *WorkspaceHandler) Delete(c *gin.Context) {
	if err := h.workspaceUsecase.Delete(c.Request.Context(), authdelivery.CurrentUser(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "workspace deleted"})
}

// POST /api/workspaces/:id/members
func (h *WorkspaceHandler) Invite(c *gin.Context) {
	var req workspacedto.InviteMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	member, err := h.workspaceUsecase.Invite(c.Request.Context(), authdelivery.CurrentUser(c), c.Param("id"), req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, member)
}

// DELETE /api/workspaces/:id/members/:userId
func (h *WorkspaceHandler) RemoveMember(c *gin.Context) {
	err := h.workspaceUsecase.RemoveMember(c.Request.Context(), authdelivery.CurrentUser(c), c.Param("id"), c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "member removed"})
}

// GET /api/workspaces/:id/stats
func (h *WorkspaceHandler) Stats(c *gin.Context) {
	stats, err := h.workspaceUsecase.Stats(c.Request.Context(), authdelivery.CurrentUser(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}
