package providers

import (
	stderrors "errors"

	"github.com/intexuraos/agents/internal/errors"
)

// ToServiceError folds a provider failure into the service taxonomy for the
// response envelope. Missing upstream resources stay NOT_FOUND and quota
// exhaustion becomes RATE_LIMIT_EXCEEDED; every other provider failure is a
// DOWNSTREAM_ERROR carrying the translated provider code in its details.
func ToServiceError(err error) *errors.ServiceError {
	var perr *Error
	if !stderrors.As(err, &perr) {
		return errors.Internal("provider call failed", err)
	}

	switch perr.Code {
	case CodeNotFound:
		return errors.NotFound(perr.Provider + " resource").
			WithDetails("provider", perr.Provider)
	case CodeQuotaExceeded:
		return errors.QuotaExceeded(perr.Provider + " quota exceeded").
			WithDetails("provider", perr.Provider).
			WithDetails("providerCode", string(perr.Code))
	default:
		return errors.Downstream(perr.Message, perr).
			WithDetails("provider", perr.Provider).
			WithDetails("providerCode", string(perr.Code))
	}
}
