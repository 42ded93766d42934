package fetch

import (
	"fmt"
	"net/http"

	"github.com/cht-holly/chtholly-vault/internal/domain"
)

func statusError(code int, status string) error {
	switch {
	case code == http.StatusTooManyRequests:
		return &domain.APIError{
			Code:    domain.ErrCodeRateLimited,
			Message: "Rate limit exceeded. Please wait a moment before trying again.",
			Status:  code,
		}
	case code >= 500:
		return &domain.APIError{
			Code:    domain.ErrCodeProviderUnavailable,
			Message: "Provider error. Please try again later.",
			Status:  code,
		}
	case code < 200 || code > 299:
		return &domain.APIError{
			Code:    domain.ErrCodeHTTP,
			Message: fmt.Sprintf("HTTP %d: %s", code, status),
			Status:  code,
		}
	}
	return nil
}

func transportError(err error) *domain.APIError {
	return &domain.APIError{
		Code:    domain.ErrCodeTransport,
		Message: fmt.Sprintf("Network error: %v", err),
		Err:     err,
	}
}
