package config

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/service/crm"
	"github.com/urfave/cli/v3"
)

// CRM holds CLI flags for the CRM provider API and its OAuth app
type CRM struct {
	clientID      string
	clientSecret  string
	redirectURL   string
	baseURL       string
	authURL       string
	apiVersion    string
	userType      string
	scopes        string
	markerTag     string
	webhookSecret string
	timeout       time.Duration
}

func (x *CRM) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "crm-client-id",
			Usage:       "OAuth client ID of the CRM marketplace app",
			Category:    "CRM",
			Sources:     cli.EnvVars("CRMSYNC_CRM_CLIENT_ID"),
			Destination: &x.clientID,
		},
		&cli.StringFlag{
			Name:        "crm-client-secret",
			Usage:       "OAuth client secret of the CRM marketplace app",
			Category:    "CRM",
			Sources:     cli.EnvVars("CRMSYNC_CRM_CLIENT_SECRET"),
			Destination: &x.clientSecret,
		},
		&cli.StringFlag{
			Name:        "crm-redirect-url",
			Usage:       "OAuth redirect URL (e.g., https://your-domain.com/api/auth/callback)",
			Category:    "CRM",
			Sources:     cli.EnvVars("CRMSYNC_CRM_REDIRECT_URL"),
			Destination: &x.redirectURL,
		},
		&cli.StringFlag{
			Name:        "crm-base-url",
			Usage:       "CRM API base URL",
			Category:    "CRM",
			Value:       crm.DefaultBaseURL,
			Sources:     cli.EnvVars("CRMSYNC_CRM_BASE_URL"),
			Destination: &x.baseURL,
		},
		&cli.StringFlag{
			Name:        "crm-auth-url",
			Usage:       "OAuth authorization URL",
			Category:    "CRM",
			Value:       crm.DefaultAuthURL,
			Sources:     cli.EnvVars("CRMSYNC_CRM_AUTH_URL"),
			Destination: &x.authURL,
		},
		&cli.StringFlag{
			Name:        "crm-api-version",
			Usage:       "Value of the Version header sent to the CRM API",
			Category:    "CRM",
			Value:       crm.DefaultAPIVersion,
			Sources:     cli.EnvVars("CRMSYNC_CRM_API_VERSION"),
			Destination: &x.apiVersion,
		},
		&cli.StringFlag{
			Name:        "crm-user-type",
			Usage:       "OAuth user_type requested on token exchange (Location or Company)",
			Category:    "CRM",
			Value:       "Location",
			Sources:     cli.EnvVars("CRMSYNC_CRM_USER_TYPE"),
			Destination: &x.userType,
		},
		&cli.StringFlag{
			Name:        "crm-scopes",
			Usage:       "Space separated OAuth scopes",
			Category:    "CRM",
			Value:       strings.Join(crm.DefaultScopes, " "),
			Sources:     cli.EnvVars("CRMSYNC_CRM_SCOPES"),
			Destination: &x.scopes,
		},
		&cli.StringFlag{
			Name:        "crm-marker-tag",
			Usage:       "Tag added to contacts of users with a roleplay assignment",
			Category:    "CRM",
			Value:       "roleplay-assigned",
			Sources:     cli.EnvVars("CRMSYNC_CRM_MARKER_TAG"),
			Destination: &x.markerTag,
		},
		&cli.StringFlag{
			Name:        "crm-webhook-secret",
			Usage:       "Shared secret for HMAC-SHA256 webhook signatures (optional)",
			Category:    "CRM",
			Sources:     cli.EnvVars("CRMSYNC_CRM_WEBHOOK_SECRET"),
			Destination: &x.webhookSecret,
		},
		&cli.DurationFlag{
			Name:        "crm-timeout",
			Usage:       "HTTP timeout of CRM API calls",
			Category:    "CRM",
			Value:       crm.DefaultTimeout,
			Sources:     cli.EnvVars("CRMSYNC_CRM_TIMEOUT"),
			Destination: &x.timeout,
		},
	}
}

func (x CRM) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("client-id.len", len(x.clientID)),
		slog.Int("client-secret.len", len(x.clientSecret)),
		slog.String("redirect-url", x.redirectURL),
		slog.String("base-url", x.baseURL),
		slog.String("api-version", x.apiVersion),
		slog.String("marker-tag", x.markerTag),
		slog.Int("webhook-secret.len", len(x.webhookSecret)),
		slog.Duration("timeout", x.timeout),
	)
}

// MarkerTag returns the contact tag applied on assignment
func (x *CRM) MarkerTag() string {
	return x.markerTag
}

// WebhookSecret returns the webhook signing secret, empty when unsigned
func (x *CRM) WebhookSecret() string {
	return x.webhookSecret
}

// IsOAuthConfigured returns true if the OAuth app credentials are set
func (x *CRM) IsOAuthConfigured() bool {
	return x.clientID != "" && x.clientSecret != ""
}

func (x *CRM) httpClient() *http.Client {
	timeout := x.timeout
	if timeout <= 0 {
		timeout = crm.DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// Service builds the CRM API client
func (x *CRM) Service(version string) crm.Service {
	return crm.New(
		crm.WithBaseURL(x.baseURL),
		crm.WithAPIVersion(x.apiVersion),
		crm.WithHTTPClient(x.httpClient()),
		crm.WithUserAgent("crmsync/"+version),
	)
}

// OAuth builds the OAuth client. Returns nil without an error when the
// client ID is not set.
func (x *CRM) OAuth() (crm.OAuth, error) {
	if x.clientID == "" {
		return nil, nil
	}
	if x.clientSecret == "" {
		return nil, goerr.Wrap(ErrInvalidConfig, "crm-client-secret is required when crm-client-id is set")
	}

	oauth, err := crm.NewOAuth(crm.OAuthConfig{
		ClientID:     x.clientID,
		ClientSecret: x.clientSecret,
		RedirectURL:  x.redirectURL,
		Scopes:       strings.Fields(x.scopes),
		BaseURL:      x.baseURL,
		AuthURL:      x.authURL,
		UserType:     x.userType,
		HTTPClient:   x.httpClient(),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure CRM OAuth")
	}
	return oauth, nil
}
