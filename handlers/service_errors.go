package handlers

import (
	"net/http"

	"github.com/upb/trailguard/services"
	"github.com/upb/trailguard/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses.
// Store failures answer with a generic message; the cause is only logged.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)

	var writeErr error
	switch {
	case services.IsInvalidArgument(err):
		writeErr = utils.WriteBadRequest(w, services.GetErrorMessage(err), details)

	case services.IsStoreFailure(err):
		logger.Error("incident store failure",
			zap.String("error_type", string(services.GetErrorType(err))),
			zap.Any("details", details),
			zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, services.GetErrorMessage(err))

	case services.IsUnauthorizedError(err):
		writeErr = utils.WriteUnauthorized(w, services.GetErrorMessage(err))

	case services.IsNotFoundError(err):
		writeErr = utils.WriteNotFound(w, services.GetErrorMessage(err))

	case services.IsUnavailableError(err):
		logger.Warn("service unavailable", zap.Error(err))
		writeErr = utils.WriteServiceUnavailable(w, services.GetErrorMessage(err))

	case services.IsInternalError(err):
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "An internal error occurred")

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		writeErr = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{})
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
