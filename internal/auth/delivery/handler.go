package delivery

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	authdto "welcome-agent/internal/auth/dto"
	"welcome-agent/internal/auth/usecase"
	appErrors "welcome-agent/pkg/errors"
	"welcome-agent/pkg/response"
)

// CookieOptions controls the attributes of the session cookie.
type CookieOptions struct {
	Secure bool
	Domain string
}

type AuthHandler struct {
	authUsecase usecase.AuthUsecase
	cookie      CookieOptions
}

func NewAuthHandler(authUsecase usecase.AuthUsecase, cookie CookieOptions) *AuthHandler {
	return &AuthHandler{authUsecase: authUsecase, cookie: cookie}
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req authdto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	res, err := h.authUsecase.Register(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.setSession(c, res)
	response.Success(c, http.StatusCreated, res)
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req authdto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	res, err := h.authUsecase.Login(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.setSession(c, res)
	response.Success(c, http.StatusOK, res)
}

// POST /api/auth/google
func (h *AuthHandler) GoogleSignIn(c *gin.Context) {
	var req authdto.GoogleSignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	res, err := h.authUsecase.GoogleSignIn(c.Request.Context(), req.Token)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.setSession(c, res)
	response.Success(c, http.StatusOK, res)
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if token := sessionToken(c); token != "" {
		if err := h.authUsecase.Logout(c.Request.Context(), token); err != nil {
			response.Error(c, err)
			return
		}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, "", -1, "/", h.cookie.Domain, h.cookie.Secure, true)
	response.Success(c, http.StatusOK, gin.H{"message": "logged out"})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.authUsecase.Me(c.Request.Context(), CurrentUser(c).ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// POST /api/fcm/register
func (h *AuthHandler) RegisterFCMToken(c *gin.Context) {
	var req authdto.RegisterFCMTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	if err := h.authUsecase.RegisterFCMToken(CurrentUser(c).ID, req.Token, req.DeviceInfo); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "token registered"})
}

// DELETE /api/fcm/:token
func (h *AuthHandler) UnregisterFCMToken(c *gin.Context) {
	if err := h.authUsecase.UnregisterFCMToken(CurrentUser(c).ID, c.Param("token")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "token removed"})
}

func (h *AuthHandler) setSession(c *gin.Context, res *authdto.SessionResponse) {
	maxAge := int(time.Until(res.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, res.Token, maxAge, "/", h.cookie.Domain, h.cookie.Secure, true)
}
