package crm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
	"golang.org/x/oauth2"
)

const (
	DefaultAuthURL = "https://marketplace.leadconnectorhq.com/oauth/chooselocation"
	tokenPath      = "/oauth/token"
)

// DefaultScopes are requested when no scope is configured
var DefaultScopes = []string{
	"users.readonly",
	"locations.readonly",
	"contacts.readonly",
	"contacts.write",
}

// Grant is the result of an authorization code exchange or token refresh
type Grant struct {
	LocationID types.LocationID
	Tokens     model.TokenSet
}

// OAuth performs the provider's OAuth2 authorization code flow
type OAuth interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Grant, error)
	Refresh(ctx context.Context, refreshToken string) (*Grant, error)
}

type oauthClient struct {
	config     *oauth2.Config
	httpClient *http.Client
	userType   string
}

var _ OAuth = (*oauthClient)(nil)

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	// BaseURL is the API host serving the token endpoint
	BaseURL    string
	AuthURL    string
	UserType   string
	HTTPClient *http.Client
}

// NewOAuth creates an OAuth2 client for the CRM provider
func NewOAuth(cfg OAuthConfig) (OAuth, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, goerr.New("OAuth client ID and secret are required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	userType := cfg.UserType
	if userType == "" {
		userType = "Location"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	return &oauthClient{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  baseURL + tokenPath,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
		userType:   userType,
	}, nil
}

func (c *oauthClient) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func (c *oauthClient) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state)
}

func (c *oauthClient) Exchange(ctx context.Context, code string) (*Grant, error) {
	if code == "" {
		return nil, goerr.New("authorization code is required")
	}

	token, err := c.config.Exchange(c.withHTTPClient(ctx), code,
		oauth2.SetAuthURLParam("user_type", c.userType))
	if err != nil {
		return nil, goerr.Wrap(ErrRemoteUnavailable, "failed to exchange authorization code", goerr.V("cause", err.Error()))
	}
	return grantFromToken(token), nil
}

func (c *oauthClient) Refresh(ctx context.Context, refreshToken string) (*Grant, error) {
	if refreshToken == "" {
		return nil, goerr.New("refresh token is required")
	}

	// An empty access token forces the token source to hit the token endpoint
	src := c.config.TokenSource(c.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, goerr.Wrap(ErrRemoteUnavailable, "failed to refresh token", goerr.V("cause", err.Error()))
	}
	return grantFromToken(token), nil
}

func grantFromToken(token *oauth2.Token) *Grant {
	ts := model.TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
		Scope:        extraString(token, "scope"),
		UserType:     extraString(token, "userType"),
		CompanyID:    extraString(token, "companyId"),
		RemoteUserID: extraString(token, "userId"),
	}
	if !token.Expiry.IsZero() {
		ts.ExpiresIn = int(time.Until(token.Expiry).Round(time.Second).Seconds())
	}

	return &Grant{
		LocationID: types.LocationID(extraString(token, "locationId")),
		Tokens:     ts,
	}
}

func extraString(token *oauth2.Token, key string) string {
	switch v := token.Extra(key).(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
