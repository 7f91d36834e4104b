package controllers

import (
	"net/http"

	"github.com/angelmondragon/storepos-backend/api/responses"
	"github.com/angelmondragon/storepos-backend/api/validators"
	"github.com/angelmondragon/storepos-backend/internal/auth"
	pkgerrors "github.com/angelmondragon/storepos-backend/pkg/errors"
	"github.com/angelmondragon/storepos-backend/pkg/logger"
)

// AuthLogin exchanges staff credentials for a bearer token. The response is
// marked no-store so shared till browsers never cache it.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var body auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body.Username = validators.SanitizeString(body.Username, 64)

		result, err := svc.Login(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if logg != nil && result.User != nil {
			ctx := logg.WithUserID(r.Context(), result.User.ID)
			ctx = logg.WithRole(ctx, string(result.User.Role))
			logg.Info(ctx, "staff.login")
		}
		w.Header().Set("Cache-Control", "no-store")
		responses.WriteSuccess(w, result)
	}
}
