package api

import (
	"github.com/gin-gonic/gin"

	activitydelivery "welcome-agent/internal/activity/delivery"
	agentdelivery "welcome-agent/internal/agent/delivery"
	authdelivery "welcome-agent/internal/auth/delivery"
	authusecase "welcome-agent/internal/auth/usecase"
	connectiondelivery "welcome-agent/internal/connection/delivery"
	emaildelivery "welcome-agent/internal/email/delivery"
	generationdelivery "welcome-agent/internal/generation/delivery"
	workspacedelivery "welcome-agent/internal/workspace/delivery"
	"welcome-agent/pkg/config"
)

// Handler bundles every feature handler behind one gin engine.
type Handler struct {
	authUsecase authusecase.AuthUsecase
	config      *config.Config

	auth        *authdelivery.AuthHandler
	workspaces  *workspacedelivery.WorkspaceHandler
	agents      *agentdelivery.AgentHandler
	connections *connectiondelivery.ConnectionHandler
	emails      *emaildelivery.EmailHandler
	generation  *generationdelivery.GenerationHandler
	activity    *activitydelivery.ActivityHandler
	settings    *SettingsHandler
}

type Handlers struct {
	Workspaces  *workspacedelivery.WorkspaceHandler
	Agents      *agentdelivery.AgentHandler
	Connections *connectiondelivery.ConnectionHandler
	Emails      *emaildelivery.EmailHandler
	Generation  *generationdelivery.GenerationHandler
	Activity    *activitydelivery.ActivityHandler
	Settings    *SettingsHandler
}

func NewHandler(authUc authusecase.AuthUsecase, cfg *config.Config, hs Handlers) *Handler {
	return &Handler{
		authUsecase: authUc,
		config:      cfg,
		auth: authdelivery.NewAuthHandler(authUc, authdelivery.CookieOptions{
			Secure: cfg.CookieSecure,
			Domain: cfg.CookieDomain,
		}),
		workspaces:  hs.Workspaces,
		agents:      hs.Agents,
		connections: hs.Connections,
		emails:      hs.Emails,
		generation:  hs.Generation,
		activity:    hs.Activity,
		settings:    hs.Settings,
	}
}

// Engine builds the gin engine with middleware and routes.
func (h *Handler) Engine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(recovery(), requestLogger(), cors(h.config.FrontendURL))
	if h.config.MetricsEnabled {
		r.Use(recordLatency())
	}

	SetupRoutes(r, h)
	return r
}
