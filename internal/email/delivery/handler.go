package delivery

import (
	"net/http"

	"github.com/gin-gonic/gin"

	authdelivery "welcome-agent/internal/auth/delivery"
	emaildto "welcome-agent/internal/email/dto"
	"welcome-agent/internal/email/usecase"
	appErrors "welcome-agent/pkg/errors"
	"welcome-agent/pkg/response"
)

type EmailHandler struct {
	emailUsecase usecase.EmailUsecase
}

func NewEmailHandler(emailUsecase usecase.EmailUsecase) *EmailHandler {
	return &EmailHandler{
		emailUsecase: emailUsecase,
	}
}

// GET /api/workspaces/:id/emails?agentId=&status=&cursor=&limit=
func (h *EmailHandler) List(c *gin.Context) {
	var q emaildto.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}
	q.WorkspaceID = c.Param("id")

	res, err := h.emailUsecase.List(c.Request.Context(), authdelivery.CurrentUser(c), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// GET /api/emails/:id
func (h *EmailHandler) Get(c *gin.Context) {
	rec, err := h.emailUsecase.Get(c.Request.Context(), authdelivery.CurrentUser(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rec)
}

// PATCH /api/emails/:id
func (h *EmailHandler) Update(c *gin.Context) {
	var req emaildto.UpdateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	rec, err := h.emailUsecase.Update(c.Request.Context(), authdelivery.CurrentUser(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rec)
}

// POST /api/emails/:id/approve
func (h *EmailHandler) Approve(c *gin.Context) {
	rec, err := h.emailUsecase.Approve(c.Request.Context(), authdelivery.CurrentUser(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rec)
}

// POST /api/emails/:id/deny
func (h *EmailHandler) Deny(c *gin.Context) {
	rec, err := h.emailUsecase.Deny(c.Request.Context(), authdelivery.CurrentUser(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rec)
}
