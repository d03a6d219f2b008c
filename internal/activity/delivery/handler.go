package delivery

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"welcome-agent/internal/activity/dto"
	"welcome-agent/internal/activity/usecase"
	authdelivery "welcome-agent/internal/auth/delivery"
	appErrors "welcome-agent/pkg/errors"
	"welcome-agent/pkg/response"
)

type ActivityHandler struct {
	activityUsecase usecase.ActivityUsecase
}

func NewActivityHandler(activityUsecase usecase.ActivityUsecase) *ActivityHandler {
	return &ActivityHandler{activityUsecase: activityUsecase}
}

// GET /api/workspaces/:id/logs?agentId=&limit=&offset=
func (h *ActivityHandler) List(c *gin.Context) {
	var q dto.ListLogsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	logs, total, err := h.activityUsecase.List(c.Request.Context(), authdelivery.CurrentUser(c), c.Param("id"), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, logs, &response.Meta{Total: total, Limit: q.Limit})
}
