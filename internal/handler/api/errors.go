package api

import (
	"errors"

	"SigRelay/internal/domain/models"
	xhttp "SigRelay/pkg/http"
)

// mapDomainError lifts domain errors into HTTP app errors. Unknown errors
// fall through as 500.
func mapDomainError(err error) *xhttp.AppError {
	var be *models.BalanceUnavailableError
	if errors.As(err, &be) {
		return xhttp.ServiceUnavailableError(be.Error()).
			WithParam("reason", string(be.Reason)).
			WithError(err)
	}

	switch {
	case errors.Is(err, models.ErrInvalidPhone),
		errors.Is(err, models.ErrInvalidCode),
		errors.Is(err, models.ErrInvalidPassword),
		errors.Is(err, models.ErrInvalidState):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrNotAuthenticated),
		errors.Is(err, models.ErrSessionExpired):
		return xhttp.UnauthorizedError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrRateLimited):
		return xhttp.NewAppError("ERR_RATE_LIMITED", "", err.Error(), 429).WithError(err)
	case errors.Is(err, models.ErrAuthBusy),
		errors.Is(err, models.ErrDuplicateName),
		errors.Is(err, models.ErrFetchInProgress):
		return xhttp.ConflictError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	default:
		return xhttp.InternalError(err.Error()).WithError(err)
	}
}
