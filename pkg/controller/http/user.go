package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
	"github.com/secmon-lab/crmsync/pkg/usecase"
	"github.com/secmon-lab/crmsync/pkg/utils/errutil"
)

type userResponse struct {
	ID         string    `json:"id"`
	LocationID string    `json:"location_id"`
	Name       string    `json:"name"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Role       string    `json:"role"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:         string(u.ID),
		LocationID: string(u.LocationID),
		Name:       u.Name,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Email:      u.Email,
		Phone:      u.Phone,
		Role:       u.Role,
		Status:     u.Status.String(),
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

func listUsersHandler(uc *usecase.UserUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locationID := types.LocationID(r.URL.Query().Get("location_id"))
		users, err := uc.List(r.Context(), locationID)
		if err != nil {
			handleError(w, r, err)
			return
		}

		resp := make([]userResponse, len(users))
		for i, u := range users {
			resp[i] = toUserResponse(u)
		}
		writeJSON(w, r, http.StatusOK, map[string]any{"users": resp})
	}
}

func getUserHandler(uc *usecase.UserUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := uc.Get(r.Context(), types.UserID(chi.URLParam(r, "userID")))
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, toUserResponse(user))
	}
}

func deleteUserHandler(uc *usecase.UserUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := uc.Delete(r.Context(), types.UserID(chi.URLParam(r, "userID"))); err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, messageResponse{Message: "User deleted"})
	}
}

func refreshUsersHandler(uc *usecase.SyncUseCase) http.HandlerFunc {
	type request struct {
		LocationID string `json:"location_id"`
	}
	type response struct {
		Message     string `json:"message"`
		UsersSynced int    `json:"users_synced"`
		LocationID  string `json:"location_id"`
		Error       string `json:"error,omitempty"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			handleError(w, r, err)
			return
		}
		if req.LocationID == "" {
			handleError(w, r, goerr.Wrap(usecase.ErrInvalidInput, "location_id is required"))
			return
		}

		result, err := uc.RefreshLocation(r.Context(), types.LocationID(req.LocationID))
		if err != nil {
			handleError(w, r, err)
			return
		}
		// a remote list failure is already logged by the sync and is reported
		// in the body rather than as a request error
		if result.Err != nil {
			writeJSON(w, r, http.StatusOK, response{
				Message:    "Users not synced",
				LocationID: req.LocationID,
				Error:      result.Err.Error(),
			})
			return
		}

		writeJSON(w, r, http.StatusOK, response{
			Message:     "Users synced",
			UsersSynced: result.Processed,
			LocationID:  req.LocationID,
		})
	}
}

type categoryIDsRequest struct {
	CategoryIDs []string `json:"category_ids"`
}

func setUserCategoriesHandler(uc *usecase.AssignmentUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req categoryIDsRequest
		if err := decodeJSON(r, &req); err != nil {
			handleError(w, r, err)
			return
		}

		ids := make([]types.CategoryID, len(req.CategoryIDs))
		for i, id := range req.CategoryIDs {
			ids[i] = types.CategoryID(id)
		}

		userID := types.UserID(chi.URLParam(r, "userID"))
		assignments, err := uc.SetUserCategories(r.Context(), userID, ids)
		if err != nil {
			// an unknown category is a bad request here, not a missing resource
			if errors.Is(err, usecase.ErrCategoryNotFound) {
				errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
				return
			}
			handleError(w, r, err)
			return
		}

		assigned := make([]string, len(assignments))
		for i, a := range assignments {
			assigned[i] = a.CategoryID.String()
		}
		writeJSON(w, r, http.StatusOK, map[string]any{
			"user_id":      userID,
			"category_ids": assigned,
		})
	}
}

func listUserCategoriesHandler(uc *usecase.AssignmentUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categories, err := uc.ListUserCategories(r.Context(), types.UserID(chi.URLParam(r, "userID")))
		if err != nil {
			handleError(w, r, err)
			return
		}

		resp := make([]categoryResponse, len(categories))
		for i, c := range categories {
			resp[i] = toCategoryResponse(c)
		}
		writeJSON(w, r, http.StatusOK, map[string]any{"categories": resp})
	}
}

func assignAllHandler(uc *usecase.AssignmentUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locationID := chi.URLParam(r, "locationID")
		result, err := uc.AssignAllCategories(r.Context(), types.LocationID(locationID))
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusOK, map[string]any{
			"message":     "Categories assigned",
			"location_id": locationID,
			"users":       result.Users,
			"categories":  result.Categories,
			"created":     result.Created,
		})
	}
}
