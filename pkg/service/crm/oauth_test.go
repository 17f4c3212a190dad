package crm_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
	"github.com/secmon-lab/crmsync/pkg/service/crm"
)

func TestOAuth_ExchangeAndRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Value(t, r.URL.Path).Equal("/oauth/token")
		gt.NoError(t, r.ParseForm()).Required()
		gt.Value(t, r.PostForm.Get("client_id")).Equal("cid")
		gt.Value(t, r.PostForm.Get("client_secret")).Equal("secret")

		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("grant_type") {
		case "authorization_code":
			gt.Value(t, r.PostForm.Get("code")).Equal("code-1")
			_, _ = w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","expires_in":86399,"token_type":"Bearer","scope":"users.readonly","userType":"Location","locationId":"loc1","companyId":"co1","userId":"ru1"}`))
		case "refresh_token":
			gt.Value(t, r.PostForm.Get("refresh_token")).Equal("rt-1")
			_, _ = w.Write([]byte(`{"access_token":"at-2","refresh_token":"rt-2","expires_in":86399,"token_type":"Bearer","locationId":"loc1"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	t.Cleanup(srv.Close)

	oa, err := crm.NewOAuth(crm.OAuthConfig{
		ClientID:     "cid",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/callback",
		BaseURL:      srv.URL,
	})
	gt.NoError(t, err).Required()

	authURL, err := url.Parse(oa.AuthCodeURL("state-1"))
	gt.NoError(t, err).Required()
	gt.Value(t, authURL.Query().Get("client_id")).Equal("cid")
	gt.Value(t, authURL.Query().Get("state")).Equal("state-1")

	grant, err := oa.Exchange(context.Background(), "code-1")
	gt.NoError(t, err).Required()
	gt.Value(t, grant.LocationID).Equal(types.LocationID("loc1"))
	gt.Value(t, grant.Tokens.AccessToken).Equal("at-1")
	gt.Value(t, grant.Tokens.RefreshToken).Equal("rt-1")
	gt.Value(t, grant.Tokens.CompanyID).Equal("co1")
	gt.Value(t, grant.Tokens.RemoteUserID).Equal("ru1")
	gt.Number(t, grant.Tokens.ExpiresIn).Greater(0)

	refreshed, err := oa.Refresh(context.Background(), "rt-1")
	gt.NoError(t, err).Required()
	gt.Value(t, refreshed.Tokens.AccessToken).Equal("at-2")
	gt.Value(t, refreshed.Tokens.RefreshToken).Equal("rt-2")
}

func TestOAuth_RequiresClientCredentials(t *testing.T) {
	_, err := crm.NewOAuth(crm.OAuthConfig{ClientID: "cid"})
	gt.Error(t, err)
}
