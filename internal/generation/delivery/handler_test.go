package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	agentdomain "welcome-agent/internal/agent/domain"
	authdomain "welcome-agent/internal/auth/domain"
	emaildomain "welcome-agent/internal/email/domain"
	"welcome-agent/internal/generation/dto"
	"welcome-agent/internal/generation/usecase"
	appErrors "welcome-agent/pkg/errors"
)

type stubUsecase struct {
	resp *dto.GenerateEmailResponse
	err  error
	got  dto.GenerateEmailRequest
}

func (s *stubUsecase) Generate(ctx context.Context, actor *authdomain.User, in dto.GenerateEmailRequest) (*dto.GenerateEmailResponse, error) {
	s.got = in
	return s.resp, s.err
}

func (s *stubUsecase) GenerateForAgent(ctx context.Context, agentID, signupInfo, email, sourceMessageID string) (*emaildomain.Record, error) {
	return nil, nil
}

func (s *stubUsecase) TestAgent(ctx context.Context, actor *authdomain.User, agentID string, signupInfo, email string) (*agentdomain.TestEmail, error) {
	return &agentdomain.TestEmail{To: email, Sent: true}, nil
}

func (s *stubUsecase) SummarizeWebsite(ctx context.Context, actor *authdomain.User, agentID string) (string, error) {
	return "", nil
}

func (s *stubUsecase) SetNotifier(n usecase.ReviewNotifier) {}

func newRouter(uc usecase.GenerationUsecase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user", &authdomain.User{ID: "user-1", Email: "owner@acme.com"})
	})
	h := NewGenerationHandler(uc)
	r.POST("/api/generate-email", h.Generate)
	r.POST("/api/agents/:id/test", h.TestAgent)
	return r
}

const body = `{"signupInfo":"Name: Jane Doe\nEmail: jane@acme.com","directive":"Welcome warmly","workspaceId":"ws-1","agentId":"agent-1","businessContext":{"purpose":"newsletter signup"}}`

func TestGenerateReturnsFlatEmailShape(t *testing.T) {
	uc := &stubUsecase{resp: &dto.GenerateEmailResponse{
		Success: true,
		Email:   &dto.GeneratedEmail{To: "jane@acme.com", Subject: "Welcome, Jane", Body: "<p>Hi</p>"},
	}}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/generate-email", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	newRouter(uc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, true, got["success"])
	require.Equal(t, "jane@acme.com", got["email"].(map[string]interface{})["to"])

	require.Equal(t, "newsletter signup", uc.got.BusinessContext.Purpose)
	require.Equal(t, "Welcome warmly", uc.got.Directive)
}

func TestGenerateFailureCarriesError(t *testing.T) {
	uc := &stubUsecase{err: appErrors.Upstream("llm", errors.New("openrouter API error (429): rate limited"))}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/generate-email", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	newRouter(uc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, false, got["success"])
	require.Contains(t, got["error"], "rate limited")
}

func TestTestAgentRejectsBadEmail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/agents/agent-1/test", strings.NewReader(`{"email":"not-an-email"}`))
	req.Header.Set("Content-Type", "application/json")
	newRouter(&stubUsecase{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
