package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/interfaces"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
	"github.com/secmon-lab/crmsync/pkg/service/crm"
	"github.com/secmon-lab/crmsync/pkg/utils/errutil"
	"github.com/secmon-lab/crmsync/pkg/utils/logging"
)

// DefaultTimezone is stored when the location profile cannot be fetched
const DefaultTimezone = "UTC"

// AuthUseCase connects CRM locations through OAuth and keeps their tokens
// fresh.
type AuthUseCase struct {
	repo   interfaces.Repository
	crm    crm.Service
	oauth  crm.OAuth
	sync   *SyncUseCase
	states *stateCache
	now    func() time.Time
}

// ConnectResult is the outcome of a completed OAuth callback
type ConnectResult struct {
	Credentials *model.Credentials
	Sync        *SyncResult
}

// RefreshResult summarizes a token refresh run
type RefreshResult struct {
	Refreshed int
	Failed    int
}

func NewAuthUseCase(repo interfaces.Repository, crmSvc crm.Service, oauth crm.OAuth, sync *SyncUseCase, now func() time.Time) *AuthUseCase {
	return &AuthUseCase{
		repo:   repo,
		crm:    crmSvc,
		oauth:  oauth,
		sync:   sync,
		states: newStateCache(now),
		now:    now,
	}
}

// AuthURL issues a new state and returns the provider consent URL
func (uc *AuthUseCase) AuthURL(ctx context.Context) (string, error) {
	if uc.oauth == nil {
		return "", goerr.Wrap(ErrOAuthNotConfigured, "cannot build authorization URL")
	}

	state := uuid.New().String()
	uc.states.issue(state)
	return uc.oauth.AuthCodeURL(state), nil
}

// Exchange completes the OAuth callback: it redeems the code, stores the
// credentials of the granted location and runs the first user sync.
func (uc *AuthUseCase) Exchange(ctx context.Context, code, state string) (*ConnectResult, error) {
	if uc.oauth == nil {
		return nil, goerr.Wrap(ErrOAuthNotConfigured, "cannot exchange authorization code")
	}
	if code == "" {
		return nil, goerr.Wrap(ErrInvalidInput, "authorization code is required")
	}
	if !uc.states.consume(state) {
		return nil, goerr.Wrap(ErrInvalidInput, "unknown or expired OAuth state")
	}

	grant, err := uc.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to exchange authorization code")
	}
	if grant.LocationID == "" {
		return nil, goerr.Wrap(ErrInvalidInput, "token response has no location ID")
	}

	logger := logging.From(ctx).With("locationID", grant.LocationID)

	cred, err := uc.repo.Credentials().Get(ctx, grant.LocationID)
	switch {
	case err == nil:
		logger.Info("reconnecting known location")
	case errors.Is(err, interfaces.ErrNotFound):
		cred = &model.Credentials{LocationID: grant.LocationID, CreatedAt: uc.now()}
	default:
		return nil, goerr.Wrap(err, "failed to get credentials", goerr.V(LocationIDKey, grant.LocationID))
	}

	cred.ReplaceTokens(grant.Tokens)
	cred.LocationName, cred.Timezone = uc.locationProfile(ctx, cred.AccessToken, grant.LocationID)
	cred.UpdatedAt = uc.now()

	if err := uc.repo.Credentials().Save(ctx, cred); err != nil {
		return nil, goerr.Wrap(err, "failed to save credentials", goerr.V(LocationIDKey, grant.LocationID))
	}
	logger.Info("location connected", "locationName", cred.LocationName)

	result := &ConnectResult{Credentials: cred}
	if uc.sync != nil && uc.crm != nil {
		synced, err := uc.sync.SyncLocation(ctx, cred.LocationID, cred.AccessToken)
		if err != nil {
			_ = errutil.Handle(ctx, err, "initial user sync failed")
		}
		result.Sync = synced
	}

	return result, nil
}

// locationProfile returns the name and timezone of the location. A failed
// lookup is not fatal for onboarding.
func (uc *AuthUseCase) locationProfile(ctx context.Context, token string, locationID types.LocationID) (string, string) {
	if uc.crm == nil {
		return "", DefaultTimezone
	}

	loc, err := uc.crm.GetLocation(ctx, token, locationID)
	if err != nil {
		_ = errutil.Handle(ctx, err, "failed to fetch location profile")
		return "", DefaultTimezone
	}

	tz := loc.Timezone
	if tz == "" {
		tz = DefaultTimezone
	}
	return loc.Name, tz
}

// RefreshLocation replaces the token set of one location with a freshly
// refreshed one. The provider rotates refresh tokens, so every field is
// overwritten.
func (uc *AuthUseCase) RefreshLocation(ctx context.Context, locationID types.LocationID) (*model.Credentials, error) {
	if uc.oauth == nil {
		return nil, goerr.Wrap(ErrOAuthNotConfigured, "cannot refresh tokens")
	}

	cred, err := uc.repo.Credentials().Get(ctx, locationID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrUnknownTenant, "no credentials for location", goerr.V(LocationIDKey, locationID))
		}
		return nil, goerr.Wrap(err, "failed to get credentials", goerr.V(LocationIDKey, locationID))
	}

	return uc.refresh(ctx, cred)
}

func (uc *AuthUseCase) refresh(ctx context.Context, cred *model.Credentials) (*model.Credentials, error) {
	if cred.RefreshToken == "" {
		return nil, goerr.New("no refresh token stored", goerr.V(LocationIDKey, cred.LocationID))
	}

	grant, err := uc.oauth.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to refresh token", goerr.V(LocationIDKey, cred.LocationID))
	}

	cred.ReplaceTokens(grant.Tokens)
	cred.UpdatedAt = uc.now()
	if err := uc.repo.Credentials().Save(ctx, cred); err != nil {
		return nil, goerr.Wrap(err, "failed to save refreshed credentials", goerr.V(LocationIDKey, cred.LocationID))
	}

	logging.From(ctx).Info("token refreshed", "locationID", cred.LocationID, "expiresAt", cred.ExpiresAt)
	return cred, nil
}

// RefreshAll refreshes every stored credential. Failures are logged per
// location and counted.
func (uc *AuthUseCase) RefreshAll(ctx context.Context) (*RefreshResult, error) {
	if uc.oauth == nil {
		return nil, goerr.Wrap(ErrOAuthNotConfigured, "cannot refresh tokens")
	}

	creds, err := uc.repo.Credentials().List(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list credentials")
	}

	result := &RefreshResult{}
	for _, cred := range creds {
		if _, err := uc.refresh(ctx, cred); err != nil {
			_ = errutil.Handle(ctx, err, "token refresh failed")
			result.Failed++
			continue
		}
		result.Refreshed++
	}

	logging.From(ctx).Info("token refresh finished", "refreshed", result.Refreshed, "failed", result.Failed)
	return result, nil
}
