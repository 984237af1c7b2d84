package api

import (
	"errors"
	"net/http"

	"github.com/xraph/forge"

	hooks "github.com/storekit/hooks"
)

// mapError converts hooks sentinel errors to Forge HTTP errors.
func mapError(err error) error {
	switch {
	case errors.Is(err, hooks.ErrSubscriptionNotFound):
		return forge.NotFound(err.Error())
	case errors.Is(err, hooks.ErrInstallationNotFound):
		return forge.NotFound(err.Error())
	case errors.Is(err, hooks.ErrDeliveryNotFound):
		return forge.NotFound(err.Error())
	case errors.Is(err, hooks.ErrDuplicateSubscription):
		return forge.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, hooks.ErrRetryNotAllowed):
		return forge.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, hooks.ErrUnknownEventType):
		return forge.BadRequest(err.Error())
	case errors.Is(err, hooks.ErrPayloadValidationFailed):
		return forge.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, hooks.ErrNoStore):
		return forge.InternalError(err)
	case errors.Is(err, hooks.ErrStoreClosed):
		return forge.InternalError(err)
	case errors.Is(err, hooks.ErrMigrationFailed):
		return forge.InternalError(err)
	default:
		return forge.InternalError(err)
	}
}
