package cropapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kirillkom/cropguard/internal/core/domain"
	"github.com/kirillkom/cropguard/internal/infrastructure/resilience"
)

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "backend status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("backend %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("backend %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func classifyBackendError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{RecordFailure: false}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return resilience.ErrorClassification{RecordFailure: isServerSideStatus(statusErr.StatusCode)}
	}

	// Transport errors and contract violations count against the backend.
	return resilience.ErrorClassification{RecordFailure: true}
}

func isServerSideStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	default:
		return statusCode >= http.StatusInternalServerError
	}
}

// detectError collapses every detect failure into RequestFailed; the cause stays in the chain.
func detectError(err error) error {
	if err == nil {
		return nil
	}
	return domain.WrapError(domain.ErrRequestFailed, "detect", err)
}

// fetchError maps auth rejections to Unauthenticated and everything else to NetworkFailure.
func fetchError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden {
			return domain.WrapError(domain.ErrUnauthenticated, operation, err)
		}
	}
	return domain.WrapError(domain.ErrNetworkFailure, operation, err)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case resilience.IsCircuitOpen(err):
		return "circuit_open"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return "http_error"
	}
	var contractErr *ContractError
	if errors.As(err, &contractErr) {
		return "contract_violation"
	}
	return "transport_error"
}
