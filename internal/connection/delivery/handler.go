package delivery

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	authdelivery "welcome-agent/internal/auth/delivery"
	"welcome-agent/internal/connection/dto"
	"welcome-agent/internal/connection/usecase"
	appErrors "welcome-agent/pkg/errors"
	"welcome-agent/pkg/logger"
	"welcome-agent/pkg/response"
)

type ConnectionHandler struct {
	connectionUsecase usecase.ConnectionUsecase
	frontendURL       string
}

func NewConnectionHandler(connectionUsecase usecase.ConnectionUsecase, frontendURL string) *ConnectionHandler {
	return &ConnectionHandler{connectionUsecase: connectionUsecase, frontendURL: frontendURL}
}

// GET /api/workspaces/:id/connections
func (h *ConnectionHandler) List(c *gin.Context) {
	conns, err := h.connectionUsecase.List(c.Request.Context(), authdelivery.CurrentUser(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, conns)
}

// POST /api/workspaces/:id/connections/check
func (h *ConnectionHandler) Check(c *gin.Context) {
	res, err := h.connectionUsecase.Check(c.Request.Context(), authdelivery.CurrentUser(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// DELETE /api/connections/:id
func (h *ConnectionHandler) Delete(c *gin.Context) {
	if err := h.connectionUsecase.Delete(c.Request.Context(), authdelivery.CurrentUser(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "gmail account disconnected"})
}

// GET /api/google/auth-url?workspaceId=
func (h *ConnectionHandler) AuthURL(c *gin.Context) {
	url, err := h.connectionUsecase.AuthURL(c.Request.Context(), authdelivery.CurrentUser(c), c.Query("workspaceId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto.AuthURLResponse{URL: url})
}

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head><title>Gmail connection</title></head>
<body>
<p>{{.Text}}</p>
<script>
  (function () {
    var payload = {{.Payload}};
    if (window.opener) {
      window.opener.postMessage(payload, {{.Origin}});
    }
    window.close();
  })();
</script>
</body>
</html>`))

type callbackView struct {
	Text    string
	Payload map[string]string
	Origin  string
}

// GET /api/google/callback
//
// Rendered inside the OAuth popup; the opener receives the outcome through postMessage.
func (h *ConnectionHandler) Callback(c *gin.Context) {
	view := callbackView{Origin: h.frontendURL}

	if oauthErr := c.Query("error"); oauthErr != "" {
		view.Text = "Gmail connection was cancelled."
		view.Payload = map[string]string{"type": "gmail-error", "error": oauthErr}
		h.render(c, http.StatusOK, view)
		return
	}

	conn, err := h.connectionUsecase.HandleCallback(c.Request.Context(), c.Query("code"), c.Query("state"))
	if err != nil {
		appErr := appErrors.FromError(err)
		logger.WithModule("connection").Warn("oauth callback failed", zap.Error(err))
		view.Text = "Gmail connection failed. You can close this window."
		view.Payload = map[string]string{"type": "gmail-error", "error": appErr.Message}
		h.render(c, appErr.StatusCode, view)
		return
	}

	view.Text = "Gmail connected. You can close this window."
	view.Payload = map[string]string{
		"type":         "gmail-connected",
		"connectionId": conn.ID,
		"email":        conn.Email,
		"workspaceId":  conn.WorkspaceID,
	}
	h.render(c, http.StatusOK, view)
}

func (h *ConnectionHandler) render(c *gin.Context, status int, view callbackView) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if err := callbackPage.Execute(c.Writer, view); err != nil {
		logger.WithModule("connection").Error("render oauth callback", zap.Error(err))
	}
}
