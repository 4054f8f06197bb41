package adaptor

import (
	"encoding/json"
	"errors"
	"net/http"

	"storefront/internal/usecase"
	"storefront/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	Auth    *AuthHandler
	User    *UserHandler
	Product *ProductHandler
	Order   *OrderHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		Auth:    NewAuthHandler(service.Auth, log),
		User:    NewUserHandler(service.User, log),
		Product: NewProductHandler(service.Product, log),
		Order:   NewOrderHandler(service.Order, log),
	}
}

const maxBodyBytes = 1 << 20

// decodeJSON reads a single JSON object from the request body and writes a
// 400 itself when that fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return false
	}
	return true
}

// requireUserID reads the authenticated user set by the auth middleware.
func requireUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return uuid.Nil, false
	}
	return userID, true
}

// handleServiceError maps usecase error kinds to HTTP responses. Internal
// causes are logged, never returned.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	var appErr *usecase.AppError
	if !errors.As(err, &appErr) {
		log.Error("Failed to "+operation, zap.Error(err), zap.String("operation", operation))
		utils.ResponseInternalError(w, "Internal server error")
		return
	}

	switch appErr.Kind {
	case usecase.KindValidation:
		log.Warn(operation+" validation failed",
			zap.String("message", appErr.Message),
			zap.String("fields", utils.FormatValidationErrors(appErr.Fields)),
		)
		if len(appErr.Fields) > 0 {
			utils.ResponseBadRequest(w, appErr.Message, appErr.Fields)
			return
		}
		utils.ResponseBadRequest(w, appErr.Message, nil)

	case usecase.KindConflict:
		log.Warn(operation+" failed - conflict", zap.Error(err))
		if errors.Is(err, usecase.ErrAlreadyVerified) {
			utils.ResponseBadRequest(w, appErr.Message, nil)
			return
		}
		utils.ResponseConflict(w, appErr.Message)

	case usecase.KindExpired, usecase.KindAlreadyUsed, usecase.KindInsufficientStock:
		log.Warn(operation+" failed", zap.Error(err), zap.Stringer("kind", appErr.Kind))
		utils.ResponseBadRequest(w, appErr.Message, nil)

	case usecase.KindNotFound:
		log.Warn(operation+" failed - not found", zap.Error(err))
		utils.ResponseNotFound(w, appErr.Message)

	case usecase.KindAuth:
		log.Warn(operation+" failed - invalid credentials", zap.Error(err))
		utils.ResponseUnauthorized(w, appErr.Message)

	case usecase.KindForbidden:
		log.Warn(operation+" failed - forbidden", zap.Error(err))
		utils.ResponseForbidden(w, appErr.Message)

	case usecase.KindStoreUnavailable:
		log.Error("Failed to "+operation+" - store unavailable", zap.Error(err))
		utils.ResponseServiceUnavailable(w, appErr.Message)

	default:
		log.Error("Failed to "+operation, zap.Error(err), zap.String("operation", operation))
		utils.ResponseInternalError(w, "Internal server error")
	}
}
