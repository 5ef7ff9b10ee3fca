package httpadapter

import (
	"net/http"

	"github.com/kirillkom/corpus-qa/internal/core/domain"
)

// mapErrorToHTTPStatus translates domain error kinds into status codes.
// ErrUnavailable and ErrTimeout come before ErrTemporary: the use case's
// outer classification wins when a chain carries both.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrUnavailable):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
