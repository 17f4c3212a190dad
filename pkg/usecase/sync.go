package usecase

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/interfaces"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
	"github.com/secmon-lab/crmsync/pkg/service/crm"
	"github.com/secmon-lab/crmsync/pkg/utils/errutil"
	"github.com/secmon-lab/crmsync/pkg/utils/logging"
)

// SyncUseCase mirrors the remote user list of a location into storage
type SyncUseCase struct {
	repo       interfaces.Repository
	crm        crm.Service
	assigner   *assigner
	propagator *PropagatorUseCase
}

// SyncResult reports one location sync. Err is set when the remote list
// could not be fetched; in that case Processed is zero.
type SyncResult struct {
	LocationID types.LocationID
	Processed  int
	Created    int
	Updated    int
	Skipped    int
	Assigned   int
	Err        error
}

func NewSyncUseCase(repo interfaces.Repository, crmSvc crm.Service, assigner *assigner, propagator *PropagatorUseCase) *SyncUseCase {
	return &SyncUseCase{
		repo:       repo,
		crm:        crmSvc,
		assigner:   assigner,
		propagator: propagator,
	}
}

// SyncLocation fetches every remote user of the location and upserts them.
// New users receive every category; users that became active receive the
// default categories. Remote failures are reported through SyncResult.Err.
func (uc *SyncUseCase) SyncLocation(ctx context.Context, locationID types.LocationID, token string) (*SyncResult, error) {
	if uc.crm == nil {
		return nil, goerr.Wrap(ErrCRMNotConfigured, "cannot sync location", goerr.V(LocationIDKey, locationID))
	}

	logger := logging.From(ctx).With("locationID", locationID)
	result := &SyncResult{LocationID: locationID}

	remoteUsers, err := uc.crm.ListUsers(ctx, token, locationID)
	if err != nil {
		result.Err = errutil.Handle(ctx, goerr.Wrap(err, "failed to fetch remote users",
			goerr.V(LocationIDKey, locationID)), "user sync aborted")
		return result, nil
	}

	categories, err := uc.repo.Category().List(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list categories", goerr.V(LocationIDKey, locationID))
	}

	for _, remote := range remoteUsers {
		user := remote.ToUser(locationID)
		if user.ID == "" {
			logger.Warn("remote user without id skipped", "email", remote.Email)
			result.Skipped++
			continue
		}

		upserted, err := upsertUser(ctx, uc.repo, user)
		if err != nil {
			_ = errutil.Handle(ctx, err, "failed to store remote user")
			result.Skipped++
			continue
		}
		result.Processed++

		switch {
		case upserted.Created:
			result.Created++
			n, err := uc.assigner.assignEach(ctx, upserted.User, categories)
			result.Assigned += n
			if err != nil {
				_ = errutil.Handle(ctx, err, "failed to assign categories to new user")
			}

		case upserted.Activated():
			result.Updated++
			n, err := uc.propagator.OnUserActivated(ctx, upserted.User)
			result.Assigned += n
			if err != nil {
				_ = errutil.Handle(ctx, err, "failed to assign default categories to activated user")
			}

		default:
			result.Updated++
		}
	}

	logger.Info("location synced",
		"processed", result.Processed,
		"created", result.Created,
		"updated", result.Updated,
		"skipped", result.Skipped,
		"assigned", result.Assigned)

	return result, nil
}

// RefreshLocation syncs a location with its stored access token
func (uc *SyncUseCase) RefreshLocation(ctx context.Context, locationID types.LocationID) (*SyncResult, error) {
	if locationID == "" {
		return nil, goerr.Wrap(ErrInvalidInput, "location ID is required")
	}

	cred, err := uc.repo.Credentials().Get(ctx, locationID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrUnknownTenant, "no credentials for location", goerr.V(LocationIDKey, locationID))
		}
		return nil, goerr.Wrap(err, "failed to get credentials", goerr.V(LocationIDKey, locationID))
	}

	return uc.SyncLocation(ctx, locationID, cred.AccessToken)
}

// SyncAll syncs every location that has stored credentials. A failing
// location does not stop the others.
func (uc *SyncUseCase) SyncAll(ctx context.Context) ([]*SyncResult, error) {
	creds, err := uc.repo.Credentials().List(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list credentials")
	}

	results := make([]*SyncResult, 0, len(creds))
	for _, cred := range creds {
		result, err := uc.SyncLocation(ctx, cred.LocationID, cred.AccessToken)
		if err != nil {
			_ = errutil.Handle(ctx, err, "failed to sync location")
			results = append(results, &SyncResult{LocationID: cred.LocationID, Err: err})
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

// upsertUser stores the user keyed by its global ID. A user known under
// another location is still updated, but the divergence is logged.
func upsertUser(ctx context.Context, repo interfaces.Repository, user *model.User) (*model.UpsertResult, error) {
	if user.LocationID != "" {
		existing, err := repo.User().Get(ctx, user.ID)
		switch {
		case err == nil:
			if _, err := repo.User().GetInLocation(ctx, user.ID, user.LocationID); errors.Is(err, interfaces.ErrNotFound) {
				logging.From(ctx).Warn("user identity diverges across locations",
					"userID", user.ID,
					"storedLocationID", existing.LocationID,
					"locationID", user.LocationID)
			}
		case !errors.Is(err, interfaces.ErrNotFound):
			return nil, goerr.Wrap(err, "failed to look up user", goerr.V(UserIDKey, user.ID))
		}
	}

	result, err := repo.User().Upsert(ctx, user)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to upsert user",
			goerr.V(UserIDKey, user.ID),
			goerr.V(LocationIDKey, user.LocationID))
	}
	return result, nil
}
