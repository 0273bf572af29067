package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/kirillkom/cropguard/internal/core/domain"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// mapError picks the HTTP status, machine code and client message for err.
// Sub-kinds are matched before their parents.
func mapError(err error) (int, errorResponse) {
	switch {
	case domain.IsKind(err, domain.ErrInvalidType):
		return http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_type"}
	case domain.IsKind(err, domain.ErrTooLarge):
		return http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "too_large"}
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_input"}
	case domain.IsKind(err, domain.ErrNoImageSelected):
		return http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "no_image_selected"}
	case domain.IsKind(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, errorResponse{Error: err.Error(), Code: "session_not_found"}
	case domain.IsKind(err, domain.ErrStaleResponse):
		return http.StatusConflict, errorResponse{Error: err.Error(), Code: "stale_response"}
	case domain.IsKind(err, domain.ErrInvalidTransition):
		return http.StatusConflict, errorResponse{Error: err.Error(), Code: "invalid_transition"}
	case domain.IsKind(err, domain.ErrNoResult):
		return http.StatusConflict, errorResponse{Error: err.Error(), Code: "no_result"}
	case domain.IsKind(err, domain.ErrRequestFailed):
		return http.StatusBadGateway, errorResponse{Error: domain.DetectionFailedMessage, Code: "request_failed"}
	case domain.IsKind(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, errorResponse{Error: err.Error(), Code: "unauthenticated"}
	case domain.IsKind(err, domain.ErrNetworkFailure):
		return http.StatusBadGateway, errorResponse{Error: err.Error(), Code: "network_failure"}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorResponse{Error: err.Error(), Code: "timeout"}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal error", Code: "internal"}
	}
}
