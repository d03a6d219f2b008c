package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"welcome-agent/pkg/ai"
	appErrors "welcome-agent/pkg/errors"
	"welcome-agent/pkg/response"
)

// SettingsHandler exposes the runtime model selection of the generation pipeline.
type SettingsHandler struct {
	models *ai.ModelSettings
}

func NewSettingsHandler(models *ai.ModelSettings) *SettingsHandler {
	return &SettingsHandler{models: models}
}

// GET /api/settings/models
func (h *SettingsHandler) GetModels(c *gin.Context) {
	response.Success(c, http.StatusOK, h.models.Get())
}

// PUT /api/settings/models
func (h *SettingsHandler) UpdateModels(c *gin.Context) {
	var req ai.Models
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	updated, err := h.models.Update(req)
	if err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}
	response.Success(c, http.StatusOK, updated)
}
