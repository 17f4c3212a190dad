package http

import (
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/crmsync/pkg/usecase"
)

// authConnectHandler redirects the installer to the provider consent page
func authConnectHandler(uc *usecase.AuthUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url, err := uc.AuthURL(r.Context())
		if err != nil {
			handleError(w, r, err)
			return
		}
		http.Redirect(w, r, url, http.StatusFound)
	}
}

// authCallbackHandler finishes the OAuth flow and reports the first sync
func authCallbackHandler(uc *usecase.AuthUseCase) http.HandlerFunc {
	type response struct {
		Message      string `json:"message"`
		LocationID   string `json:"location_id"`
		LocationName string `json:"location_name"`
		UsersSynced  int    `json:"users_synced"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if reason := query.Get("error"); reason != "" {
			handleError(w, r, goerr.Wrap(usecase.ErrInvalidInput, "authorization denied", goerr.V("reason", reason)))
			return
		}

		result, err := uc.Exchange(r.Context(), query.Get("code"), query.Get("state"))
		if err != nil {
			handleError(w, r, err)
			return
		}

		resp := response{
			Message:      "Location connected",
			LocationID:   string(result.Credentials.LocationID),
			LocationName: result.Credentials.LocationName,
		}
		if result.Sync != nil {
			resp.UsersSynced = result.Sync.Processed
		}
		writeJSON(w, r, http.StatusOK, resp)
	}
}
