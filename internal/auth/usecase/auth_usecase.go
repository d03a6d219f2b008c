package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/api/idtoken"

	authdomain "welcome-agent/internal/auth/domain"
	authdto "welcome-agent/internal/auth/dto"
	"welcome-agent/internal/auth/repository"
	"welcome-agent/pkg/config"
	appErrors "welcome-agent/pkg/errors"
	"welcome-agent/pkg/logger"
)

// AuthUsecase manages accounts, cookie sessions and push device registration.
type AuthUsecase interface {
	Register(ctx context.Context, req *authdto.RegisterRequest) (*authdto.SessionResponse, error)
	Login(ctx context.Context, req *authdto.LoginRequest) (*authdto.SessionResponse, error)
	GoogleSignIn(ctx context.Context, idToken string) (*authdto.SessionResponse, error)
	Logout(ctx context.Context, sessionToken string) error
	ValidateToken(ctx context.Context, sessionToken string) (*authdomain.User, error)
	Me(ctx context.Context, userID string) (*authdomain.User, error)
	RegisterFCMToken(userID, token, deviceInfo string) error
	UnregisterFCMToken(userID, token string) error
	SetLoginHook(hook LoginHook)
}

// LoginHook runs after every successful sign-in, e.g. to provision a default workspace.
type LoginHook func(ctx context.Context, user *authdomain.User)

// IDTokenValidator verifies a Google ID token for the given audience.
type IDTokenValidator func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

type sessionClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	userRepo        repository.UserRepository
	fcmRepo         repository.FCMTokenRepository
	config          *config.Config
	validateIDToken IDTokenValidator
	loginHook       LoginHook
	now             func() time.Time
	log             *zap.Logger
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(userRepo repository.UserRepository, fcmRepo repository.FCMTokenRepository, cfg *config.Config) AuthUsecase {
	return newAuthUsecase(userRepo, fcmRepo, cfg, idtoken.Validate)
}

func newAuthUsecase(userRepo repository.UserRepository, fcmRepo repository.FCMTokenRepository, cfg *config.Config, validator IDTokenValidator) *authUsecase {
	return &authUsecase{
		userRepo:        userRepo,
		fcmRepo:         fcmRepo,
		config:          cfg,
		validateIDToken: validator,
		now:             time.Now,
		log:             logger.WithModule("auth"),
	}
}

func (u *authUsecase) SetLoginHook(hook LoginHook) {
	u.loginHook = hook
}

func (u *authUsecase) Login(ctx context.Context, req *authdto.LoginRequest) (*authdto.SessionResponse, error) {
	user, err := u.userRepo.FindByEmail(normalizeEmail(req.Email))
	if err != nil {
		return nil, err
	}

	if user == nil {
		return nil, appErrors.ErrInvalidCredentials
	}

	if user.Provider != authdomain.ProviderEmail {
		return nil, appErrors.NewBadRequest("please use Google Sign-In for this account")
	}

	if !repository.CheckPasswordHash(req.Password, user.Password) {
		return nil, appErrors.ErrInvalidCredentials
	}

	return u.startSession(ctx, user)
}

func (u *authUsecase) Register(ctx context.Context, req *authdto.RegisterRequest) (*authdto.SessionResponse, error) {
	email := normalizeEmail(req.Email)
	existing, err := u.userRepo.FindByEmail(email)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		return nil, appErrors.ErrConflict.WithMessage("email already registered")
	}

	hashedPassword, err := repository.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &authdomain.User{
		Email:    email,
		Password: hashedPassword,
		Name:     strings.TrimSpace(req.Name),
		Provider: authdomain.ProviderEmail,
	}

	if err := u.userRepo.Create(user); err != nil {
		return nil, err
	}
	u.log.Info("user registered", zap.String("user_id", user.ID))

	return u.startSession(ctx, user)
}

func (u *authUsecase) GoogleSignIn(ctx context.Context, idToken string) (*authdto.SessionResponse, error) {
	payload, err := u.validateIDToken(ctx, idToken, u.config.GoogleClientID)
	if err != nil {
		return nil, appErrors.ErrUnauthorized.WithMessage("invalid Google ID token").WithInternal(err)
	}

	email, _ := payload.Claims["email"].(string)
	name, _ := payload.Claims["name"].(string)
	picture, _ := payload.Claims["picture"].(string)
	verified, _ := payload.Claims["email_verified"].(bool)

	if email == "" || !verified {
		return nil, appErrors.ErrUnauthorized.WithMessage("google email is not verified")
	}

	// Find or create user
	user, err := u.userRepo.FindByEmail(normalizeEmail(email))
	if err != nil {
		return nil, err
	}

	if user == nil {
		user = &authdomain.User{
			Email:     normalizeEmail(email),
			Name:      name,
			AvatarURL: picture,
			Provider:  authdomain.ProviderGoogle,
		}
		if err := u.userRepo.Create(user); err != nil {
			return nil, err
		}
		u.log.Info("user registered via google", zap.String("user_id", user.ID))
	} else {
		user.Name = name
		user.AvatarURL = picture
		if err := u.userRepo.Update(user); err != nil {
			return nil, err
		}
	}

	return u.startSession(ctx, user)
}

func (u *authUsecase) Logout(ctx context.Context, sessionToken string) error {
	claims, err := u.parse(sessionToken)
	if err != nil {
		// Already unusable; nothing to revoke.
		return nil
	}
	return u.userRepo.DeleteSession(claims.ID)
}

func (u *authUsecase) ValidateToken(ctx context.Context, sessionToken string) (*authdomain.User, error) {
	claims, err := u.parse(sessionToken)
	if err != nil {
		return nil, appErrors.ErrUnauthorized.WithMessage("invalid or expired session").WithInternal(err)
	}

	session, err := u.userRepo.FindSession(claims.ID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserID != claims.UserID || !session.ExpiresAt.After(u.now()) {
		return nil, appErrors.ErrUnauthorized.WithMessage("session revoked or expired")
	}

	user, err := u.userRepo.FindByID(claims.UserID)
	if err != nil {
		return nil, err
	}

	if user == nil {
		return nil, appErrors.ErrUnauthorized.WithMessage("user not found")
	}

	return user, nil
}

func (u *authUsecase) Me(ctx context.Context, userID string) (*authdomain.User, error) {
	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, appErrors.ErrNotFound.WithMessage("user not found")
	}
	u.runLoginHook(ctx, user)
	return user, nil
}

func (u *authUsecase) RegisterFCMToken(userID, token, deviceInfo string) error {
	return u.fcmRepo.SaveToken(userID, token, deviceInfo)
}

func (u *authUsecase) UnregisterFCMToken(userID, token string) error {
	return u.fcmRepo.DeleteToken(userID, token)
}

func (u *authUsecase) startSession(ctx context.Context, user *authdomain.User) (*authdto.SessionResponse, error) {
	now := u.now().UTC()
	session := &authdomain.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		ExpiresAt: now.Add(u.config.SessionTTL),
	}
	if err := u.userRepo.CreateSession(session); err != nil {
		return nil, err
	}

	claims := sessionClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(u.config.SessionSecret))
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}

	u.runLoginHook(ctx, user)

	return &authdto.SessionResponse{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		User:      user,
	}, nil
}

func (u *authUsecase) runLoginHook(ctx context.Context, user *authdomain.User) {
	if u.loginHook != nil {
		u.loginHook(ctx, user)
	}
}

func (u *authUsecase) parse(tokenString string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(u.config.SessionSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(u.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.ID == "" || claims.UserID == "" {
		return nil, errors.New("invalid session claims")
	}
	return claims, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
