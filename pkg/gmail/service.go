package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// Scopes requested when a mailbox is connected.
var Scopes = []string{
	gmail.GmailSendScope,
	oauth2api.UserinfoEmailScope,
	oauth2api.UserinfoProfileScope,
}

// Identity is the account behind an access token.
type Identity struct {
	Email string
	Name  string
}

type Service struct {
	clientID         string
	clientSecret     string
	redirectURI      string
	endpoint         oauth2.Endpoint
	gmailEndpoint    string
	userinfoEndpoint string
}

// Option customises the Service, mainly to point it at fake servers.
type Option func(*Service)

// WithTokenURL overrides the OAuth token endpoint.
func WithTokenURL(url string) Option {
	return func(s *Service) {
		s.endpoint.TokenURL = url
	}
}

// WithGmailEndpoint overrides the Gmail API base URL.
func WithGmailEndpoint(url string) Option {
	return func(s *Service) {
		s.gmailEndpoint = url
	}
}

// WithUserinfoEndpoint overrides the OAuth2 userinfo API base URL.
func WithUserinfoEndpoint(url string) Option {
	return func(s *Service) {
		s.userinfoEndpoint = url
	}
}

func NewService(clientID, clientSecret, redirectURI string, opts ...Option) *Service {
	s := &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		endpoint:     google.Endpoint,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		RedirectURL:  s.redirectURI,
		Endpoint:     s.endpoint,
		Scopes:       Scopes,
	}
}

// AuthCodeURL returns the consent page URL. Offline access with forced consent
// guarantees a refresh token on every connection.
func (s *Service) AuthCodeURL(state string) string {
	return s.oauthConfig().AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for tokens.
func (s *Service) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return s.oauthConfig().Exchange(ctx, code)
}

// Refresh runs the refresh-token grant. Provider rejections surface as *oauth2.RetrieveError.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, &oauth2.RetrieveError{ErrorCode: "invalid_grant", ErrorDescription: "no refresh token stored"}
	}
	src := s.oauthConfig().TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	return src.Token()
}

// UserInfo validates an access token and returns the identity it belongs to.
func (s *Service) UserInfo(ctx context.Context, accessToken string) (*Identity, error) {
	srv, err := oauth2api.NewService(ctx, s.clientOptions(ctx, accessToken, s.userinfoEndpoint)...)
	if err != nil {
		return nil, fmt.Errorf("unable to create userinfo service: %w", err)
	}

	info, err := srv.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, describe("userinfo", err)
	}
	if info.Email == "" {
		return nil, errors.New("userinfo returned no email")
	}
	return &Identity{Email: strings.ToLower(info.Email), Name: info.Name}, nil
}

// Send posts a raw RFC-822 message and returns the Gmail message id.
func (s *Service) Send(ctx context.Context, accessToken string, raw []byte) (string, error) {
	srv, err := gmail.NewService(ctx, s.clientOptions(ctx, accessToken, s.gmailEndpoint)...)
	if err != nil {
		return "", fmt.Errorf("unable to create Gmail service: %w", err)
	}

	msg := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}

	sent, err := srv.Users.Messages.Send("me", msg).Context(ctx).Do()
	if err != nil {
		return "", describe("gmail", err)
	}
	return sent.Id, nil
}

func (s *Service) clientOptions(ctx context.Context, accessToken, endpoint string) []option.ClientOption {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	return opts
}

// describe keeps the provider's response text so callers can show it.
func describe(api string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		body := strings.TrimSpace(gerr.Body)
		if body == "" {
			body = gerr.Message
		}
		return fmt.Errorf("%s API error (%d): %s", api, gerr.Code, body)
	}
	return fmt.Errorf("%s request failed: %w", api, err)
}
