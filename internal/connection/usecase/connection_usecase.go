package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	authdomain "welcome-agent/internal/auth/domain"
	"welcome-agent/internal/connection/domain"
	"welcome-agent/internal/connection/dto"
	"welcome-agent/internal/connection/repository"
	"welcome-agent/internal/quota"
	workspacedomain "welcome-agent/internal/workspace/domain"
	appErrors "welcome-agent/pkg/errors"
	"welcome-agent/pkg/gmail"
	"welcome-agent/pkg/logger"
	"welcome-agent/pkg/metrics"
)

const (
	// refreshHorizon is how close to expiry an access token gets refreshed.
	refreshHorizon = 5 * time.Minute
	stateTTL       = 10 * time.Minute
	defaultExpiry  = time.Hour
)

// GoogleClient is the subset of the Gmail/OAuth client used by the connection usecase.
type GoogleClient interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	UserInfo(ctx context.Context, accessToken string) (*gmail.Identity, error)
	Send(ctx context.Context, accessToken string, raw []byte) (string, error)
}

// WorkspaceAccess checks workspace membership.
type WorkspaceAccess interface {
	Authorize(ctx context.Context, userID, workspaceID string) (*workspacedomain.Workspace, error)
}

// ConnectionUsecase manages connected Gmail mailboxes and sends mail through them.
type ConnectionUsecase interface {
	Save(ctx context.Context, in dto.SaveInput) (*domain.Connection, error)
	RefreshIfNeeded(ctx context.Context, connectionID string) (string, error)
	SendEmail(ctx context.Context, in dto.SendInput) (*dto.SendResult, error)
	CheckAndFixInactiveConnections(ctx context.Context, workspaceID string) (*dto.CheckResult, error)

	List(ctx context.Context, actor *authdomain.User, workspaceID string) ([]domain.Connection, error)
	Get(ctx context.Context, id string) (*domain.Connection, error)
	Check(ctx context.Context, actor *authdomain.User, workspaceID string) (*dto.CheckResult, error)
	Delete(ctx context.Context, actor *authdomain.User, id string) error

	AuthURL(ctx context.Context, actor *authdomain.User, workspaceID string) (string, error)
	HandleCallback(ctx context.Context, code, state string) (*domain.Connection, error)
}

type connectionUsecase struct {
	db          *gorm.DB
	repo        repository.ConnectionRepository
	google      GoogleClient
	workspaces  WorkspaceAccess
	stateSecret []byte
	now         func() time.Time
	log         *zap.Logger
}

func NewConnectionUsecase(
	db *gorm.DB,
	repo repository.ConnectionRepository,
	google GoogleClient,
	workspaces WorkspaceAccess,
	stateSecret string,
) ConnectionUsecase {
	return &connectionUsecase{
		db:          db,
		repo:        repo,
		google:      google,
		workspaces:  workspaces,
		stateSecret: []byte(stateSecret),
		now:         time.Now,
		log:         logger.WithModule("connection"),
	}
}

// Save validates the tokens against userinfo and upserts the mailbox for the workspace.
// Only the first connection of a mailbox consumes connectedGmailAccounts quota.
func (u *connectionUsecase) Save(ctx context.Context, in dto.SaveInput) (*domain.Connection, error) {
	if in.Tokens.AccessToken == "" {
		return nil, appErrors.NewBadRequest("access token is required")
	}
	if _, err := u.workspaces.Authorize(ctx, in.UserID, in.WorkspaceID); err != nil {
		return nil, err
	}

	identity, err := u.google.UserInfo(ctx, in.Tokens.AccessToken)
	if err != nil {
		return nil, appErrors.Upstream("google userinfo", err)
	}
	if in.Tokens.TokenType == "" {
		in.Tokens.TokenType = "Bearer"
	}

	var conn *domain.Connection
	created := false
	err = u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := u.repo.WithTx(tx)
		existing, err := repo.FindByWorkspaceEmail(in.WorkspaceID, identity.Email)
		if err != nil {
			return err
		}
		if existing != nil {
			refreshToken := in.Tokens.RefreshToken
			if refreshToken == "" {
				refreshToken = existing.Tokens.RefreshToken
			}
			existing.Tokens = in.Tokens
			existing.Tokens.RefreshToken = refreshToken
			if identity.Name != "" {
				existing.Name = identity.Name
			}
			existing.IsActive = true
			conn = existing
			return repo.SaveTokens(existing)
		}

		if err := quota.Reserve(tx, in.UserID, quota.ConnectedGmailAccounts); err != nil {
			return err
		}
		conn = &domain.Connection{
			WorkspaceID: in.WorkspaceID,
			Email:       identity.Email,
			Name:        identity.Name,
			UserID:      in.UserID,
			Tokens:      in.Tokens,
			IsActive:    true,
		}
		created = true
		return repo.Create(conn)
	})
	if err != nil {
		return nil, err
	}

	u.log.Info("gmail connection saved",
		zap.String("connection_id", conn.ID),
		zap.String("workspace_id", conn.WorkspaceID),
		zap.Bool("created", created),
	)
	return conn, nil
}

func (u *connectionUsecase) RefreshIfNeeded(ctx context.Context, connectionID string) (string, error) {
	conn, err := u.Get(ctx, connectionID)
	if err != nil {
		return "", err
	}
	return u.refresh(ctx, conn)
}

// refresh returns a usable access token for conn. A failed refresh falls back to the stored
// token while it has not expired yet.
func (u *connectionUsecase) refresh(ctx context.Context, conn *domain.Connection) (string, error) {
	now := u.now().UTC()
	if conn.Tokens.AccessToken != "" && conn.Tokens.ExpiresAt.After(now.Add(refreshHorizon)) {
		return conn.Tokens.AccessToken, nil
	}

	tok, err := u.google.Refresh(ctx, conn.Tokens.RefreshToken)
	if err != nil {
		if conn.Tokens.AccessToken != "" && !conn.Tokens.Expired(now) {
			u.log.Warn("token refresh failed, using stored token",
				zap.String("connection_id", conn.ID),
				zap.Time("expires_at", conn.Tokens.ExpiresAt),
				zap.Error(err),
			)
			return conn.Tokens.AccessToken, nil
		}
		if reconnectRequired(err) {
			if err := u.repo.SetActive(conn.ID, false); err != nil {
				return "", err
			}
			conn.IsActive = false
			u.log.Warn("gmail connection deactivated", zap.String("connection_id", conn.ID), zap.Error(err))
			return "", appErrors.ErrReconnectRequired.WithInternal(err)
		}
		return "", appErrors.Upstream("google oauth", err)
	}

	conn.Tokens.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		conn.Tokens.RefreshToken = tok.RefreshToken
	}
	if tok.TokenType != "" {
		conn.Tokens.TokenType = tok.TokenType
	}
	conn.Tokens.ExpiresAt = expiryOf(tok, now)
	conn.IsActive = true
	if err := u.repo.SaveTokens(conn); err != nil {
		return "", err
	}
	return conn.Tokens.AccessToken, nil
}

func reconnectRequired(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return false
	}
	return re.ErrorCode == "invalid_grant" || re.ErrorCode == "invalid_client"
}

func expiryOf(tok *oauth2.Token, now time.Time) time.Time {
	if tok.Expiry.IsZero() {
		return now.Add(defaultExpiry)
	}
	return tok.Expiry.UTC()
}

// SendEmail sends an HTML message through the connection. Non-test sends consume one unit of
// the connection owner's monthly email quota, returned if Gmail rejects the message.
func (u *connectionUsecase) SendEmail(ctx context.Context, in dto.SendInput) (*dto.SendResult, error) {
	if in.To == "" {
		return nil, appErrors.NewBadRequest("recipient is required")
	}
	conn, err := u.Get(ctx, in.ConnectionID)
	if err != nil {
		return nil, err
	}

	accessToken, err := u.refresh(ctx, conn)
	if err != nil {
		return nil, err
	}

	raw, err := gmail.BuildMessage(conn.SenderName(), conn.Email, in.To, in.Subject, in.Body)
	if err != nil {
		return nil, err
	}

	if !in.Test {
		if err := quota.Reserve(u.db.WithContext(ctx), conn.UserID, quota.EmailSent); err != nil {
			return nil, err
		}
	}

	messageID, err := u.google.Send(ctx, accessToken, raw)
	if err != nil {
		metrics.EmailsSent.WithLabelValues("failure").Inc()
		if !in.Test {
			if relErr := quota.Release(u.db.WithContext(ctx), conn.UserID, quota.EmailSent, 1); relErr != nil {
				u.log.Error("failed to release email quota", zap.String("user_id", conn.UserID), zap.Error(relErr))
			}
		}
		u.log.Warn("gmail send failed", zap.String("connection_id", conn.ID), zap.Error(err))
		return nil, appErrors.Upstream("gmail", err)
	}

	outcome := "success"
	if in.Test {
		outcome = "test"
	}
	metrics.EmailsSent.WithLabelValues(outcome).Inc()

	u.log.Info("email sent",
		zap.String("connection_id", conn.ID),
		zap.String("message_id", messageID),
		zap.Bool("test", in.Test),
	)
	return &dto.SendResult{
		MessageID: messageID,
		From:      conn.Email,
		SentAt:    u.now().UTC(),
	}, nil
}

// CheckAndFixInactiveConnections reactivates inactive mailboxes whose token is still valid or refreshable.
func (u *connectionUsecase) CheckAndFixInactiveConnections(ctx context.Context, workspaceID string) (*dto.CheckResult, error) {
	inactive, err := u.repo.ListInactive(workspaceID)
	if err != nil {
		return nil, err
	}

	result := &dto.CheckResult{Checked: len(inactive)}
	now := u.now().UTC()
	for i := range inactive {
		conn := &inactive[i]
		if conn.Tokens.AccessToken != "" && !conn.Tokens.Expired(now) {
			if err := u.repo.SetActive(conn.ID, true); err != nil {
				return nil, err
			}
			result.Reactivated++
			continue
		}

		if _, err := u.refresh(ctx, conn); err != nil {
			u.log.Debug("connection still inactive", zap.String("connection_id", conn.ID), zap.Error(err))
			continue
		}
		result.Reactivated++
	}

	if result.Reactivated > 0 {
		u.log.Info("inactive connections reactivated",
			zap.String("workspace_id", workspaceID),
			zap.Int("checked", result.Checked),
			zap.Int("reactivated", result.Reactivated),
		)
	}
	return result, nil
}

func (u *connectionUsecase) List(ctx context.Context, actor *authdomain.User, workspaceID string) ([]domain.Connection, error) {
	if _, err := u.workspaces.Authorize(ctx, actor.ID, workspaceID); err != nil {
		return nil, err
	}
	return u.repo.ListByWorkspace(workspaceID)
}

func (u *connectionUsecase) Get(ctx context.Context, id string) (*domain.Connection, error) {
	conn, err := u.repo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, appErrors.ErrNotFound.WithMessage("gmail connection not found")
	}
	return conn, nil
}

func (u *connectionUsecase) Check(ctx context.Context, actor *authdomain.User, workspaceID string) (*dto.CheckResult, error) {
	if _, err := u.workspaces.Authorize(ctx, actor.ID, workspaceID); err != nil {
		return nil, err
	}
	return u.CheckAndFixInactiveConnections(ctx, workspaceID)
}

// Delete disconnects a mailbox, returns its quota unit to the user who connected it and
// detaches agents that were sending through it.
func (u *connectionUsecase) Delete(ctx context.Context, actor *authdomain.User, id string) error {
	conn, err := u.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := u.workspaces.Authorize(ctx, actor.ID, conn.WorkspaceID); err != nil {
		return err
	}

	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := u.repo.WithTx(tx)
		if err := repo.Delete(conn.ID); err != nil {
			return err
		}
		if _, err := repo.DetachAgents(conn.ID); err != nil {
			return err
		}
		return quota.Release(tx, conn.UserID, quota.ConnectedGmailAccounts, 1)
	})
}

type oauthState struct {
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`
	jwt.RegisteredClaims
}

// AuthURL returns the Google consent URL for connecting a mailbox to the workspace.
func (u *connectionUsecase) AuthURL(ctx context.Context, actor *authdomain.User, workspaceID string) (string, error) {
	if workspaceID == "" {
		return "", appErrors.NewBadRequest("workspaceId is required")
	}
	if _, err := u.workspaces.Authorize(ctx, actor.ID, workspaceID); err != nil {
		return "", err
	}

	now := u.now()
	claims := oauthState{
		UserID:      actor.ID,
		WorkspaceID: workspaceID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
		},
	}
	state, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(u.stateSecret)
	if err != nil {
		return "", fmt.Errorf("sign oauth state: %w", err)
	}
	return u.google.AuthCodeURL(state), nil
}

// HandleCallback completes the OAuth popup flow.
func (u *connectionUsecase) HandleCallback(ctx context.Context, code, state string) (*domain.Connection, error) {
	if strings.TrimSpace(code) == "" {
		return nil, appErrors.NewBadRequest("authorization code is missing")
	}

	claims := &oauthState{}
	_, err := jwt.ParseWithClaims(state, claims, func(token *jwt.Token) (interface{}, error) {
		return u.stateSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(u.now))
	if err != nil {
		return nil, appErrors.NewBadRequest("invalid or expired state").WithInternal(err)
	}

	tok, err := u.google.Exchange(ctx, code)
	if err != nil {
		return nil, appErrors.Upstream("google oauth", err)
	}

	return u.Save(ctx, dto.SaveInput{
		WorkspaceID: claims.WorkspaceID,
		UserID:      claims.UserID,
		Tokens: domain.Tokens{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			TokenType:    tok.TokenType,
			ExpiresAt:    expiryOf(tok, u.now().UTC()),
		},
	})
}
