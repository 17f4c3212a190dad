package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/secmon-lab/crmsync/pkg/domain/model"
	"github.com/secmon-lab/crmsync/pkg/domain/types"
	"github.com/secmon-lab/crmsync/pkg/usecase"
)

type categoryResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Default     bool      `json:"default"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toCategoryResponse(c *model.Category) categoryResponse {
	return categoryResponse{
		ID:          c.ID.String(),
		Name:        c.Name,
		Description: c.Description,
		Default:     c.Default,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

type categorySaveResponse struct {
	Category categoryResponse `json:"category"`
	Assigned int              `json:"assigned"`
}

func listCategoriesHandler(uc *usecase.CategoryUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categories, err := uc.List(r.Context())
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

func getCategoryHandler(uc *usecase.CategoryUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category, err := uc.Get(r.Context(), types.CategoryID(chi.URLParam(r, "categoryID")))
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, toCategoryResponse(category))
	}
}

func createCategoryHandler(uc *usecase.CategoryUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input usecase.CategoryInput
		if err := decodeJSON(r, &input); err != nil {
			handleError(w, r, err)
			return
		}

		result, err := uc.Create(r.Context(), input)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, categorySaveResponse{
			Category: toCategoryResponse(result.Category),
			Assigned: result.Assigned,
		})
	}
}

func updateCategoryHandler(uc *usecase.CategoryUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input usecase.CategoryInput
		if err := decodeJSON(r, &input); err != nil {
			handleError(w, r, err)
			return
		}
		input.ID = types.CategoryID(chi.URLParam(r, "categoryID"))

		result, err := uc.Update(r.Context(), input)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, categorySaveResponse{
			Category: toCategoryResponse(result.Category),
			Assigned: result.Assigned,
		})
	}
}

func deleteCategoryHandler(uc *usecase.CategoryUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := uc.Delete(r.Context(), types.CategoryID(chi.URLParam(r, "categoryID"))); err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, messageResponse{Message: "Category deleted"})
	}
}
