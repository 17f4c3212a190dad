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

// ReactorUseCase projects local assignments onto remote CRM contacts. It
// never writes local assignments. Every method reports success as a bool so
// that the task worker can decide on a retry.
type ReactorUseCase struct {
	repo      interfaces.Repository
	crm       crm.Service
	markerTag string
	locks     *contactLocks
}

func NewReactorUseCase(repo interfaces.Repository, crmSvc crm.Service, markerTag string) *ReactorUseCase {
	return &ReactorUseCase{
		repo:      repo,
		crm:       crmSvc,
		markerTag: markerTag,
		locks:     newContactLocks(),
	}
}

// HandleTask dispatches a queued task by kind
func (uc *ReactorUseCase) HandleTask(ctx context.Context, task *model.Task) bool {
	switch task.Kind {
	case types.TaskProjectAssignment:
		if task.Assignment == nil {
			logging.From(ctx).Warn("assignment task without payload dropped", "taskID", task.ID)
			return true
		}
		return uc.ProjectAssignment(ctx, task.Assignment)

	case types.TaskRefreshContact:
		if task.Contact == nil {
			logging.From(ctx).Warn("contact task without payload dropped", "taskID", task.ID)
			return true
		}
		return uc.RefreshContact(ctx, task.Contact)

	default:
		logging.From(ctx).Warn("unknown task kind dropped", "taskID", task.ID, "kind", task.Kind)
		return true
	}
}

// ProjectAssignment makes sure the remote contact of the user exists, is up
// to date and carries the marker tag. Inactive users and users without an
// email are skipped.
func (uc *ReactorUseCase) ProjectAssignment(ctx context.Context, task *model.AssignmentTask) bool {
	logger := logging.From(ctx).With("userID", task.UserID, "categoryID", task.CategoryID)

	if !task.Status.IsActive() || task.Email == "" {
		logger.Debug("assignment projection skipped", "status", task.Status, "hasEmail", task.Email != "")
		return true
	}

	token, err := uc.accessToken(ctx, task.LocationID)
	if err != nil {
		return errors.Is(err, ErrUnknownTenant)
	}

	unlock := uc.locks.lock(task.LocationID, task.Email)
	defer unlock()

	contact, err := uc.crm.SearchContactByEmail(ctx, token, task.LocationID, task.Email)
	if err != nil {
		_ = errutil.Handle(ctx, err, "failed to search contact")
		return false
	}

	if contact == nil {
		input := crm.NewContactInput(&task.ContactProfile)
		input.Tags = []string{uc.markerTag}
		created, err := uc.crm.CreateContact(ctx, token, input)
		if err != nil {
			_ = errutil.Handle(ctx, err, "failed to create contact")
			return false
		}
		logger.Info("contact created with marker tag", "contactID", created.ID, "category", task.CategoryName)
		return true
	}

	if _, err := uc.crm.UpdateContact(ctx, token, contact.ID, crm.NewContactInput(&task.ContactProfile)); err != nil {
		_ = errutil.Handle(ctx, err, "failed to update contact")
		return false
	}

	if err := uc.crm.AddTags(ctx, token, contact.ID, []string{uc.markerTag}); err != nil {
		_ = errutil.Handle(ctx, err, "failed to tag contact")
		return false
	}

	logger.Info("contact updated with marker tag", "contactID", contact.ID, "category", task.CategoryName)
	return true
}

// RefreshContact pushes the profile of the user to an existing remote
// contact. A missing contact is left alone.
func (uc *ReactorUseCase) RefreshContact(ctx context.Context, task *model.ContactRefreshTask) bool {
	logger := logging.From(ctx).With("userID", task.UserID)

	if !task.Status.IsActive() || task.Email == "" {
		logger.Debug("contact refresh skipped", "status", task.Status, "hasEmail", task.Email != "")
		return true
	}

	token, err := uc.accessToken(ctx, task.LocationID)
	if err != nil {
		return errors.Is(err, ErrUnknownTenant)
	}

	unlock := uc.locks.lock(task.LocationID, task.Email)
	defer unlock()

	contact, err := uc.crm.SearchContactByEmail(ctx, token, task.LocationID, task.Email)
	if err != nil {
		_ = errutil.Handle(ctx, err, "failed to search contact")
		return false
	}
	if contact == nil {
		logger.Debug("no contact to refresh")
		return true
	}

	if _, err := uc.crm.UpdateContact(ctx, token, contact.ID, crm.NewContactInput(&task.ContactProfile)); err != nil {
		_ = errutil.Handle(ctx, err, "failed to update contact")
		return false
	}

	logger.Info("contact refreshed", "contactID", contact.ID)
	return true
}

// accessToken resolves the current token of a location. An unknown
// location yields ErrUnknownTenant, which callers treat as a permanent drop.
func (uc *ReactorUseCase) accessToken(ctx context.Context, locationID types.LocationID) (string, error) {
	if uc.crm == nil {
		return "", errutil.Handle(ctx, ErrCRMNotConfigured, "cannot project to CRM")
	}

	cred, err := uc.repo.Credentials().Get(ctx, locationID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			logging.From(ctx).Warn("task for unknown location dropped", "locationID", locationID)
			return "", goerr.Wrap(ErrUnknownTenant, "no credentials for location", goerr.V(LocationIDKey, locationID))
		}
		return "", errutil.Handle(ctx, goerr.Wrap(err, "failed to get credentials",
			goerr.V(LocationIDKey, locationID)), "cannot resolve access token")
	}
	return cred.AccessToken, nil
}
