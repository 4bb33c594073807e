package api

import (
	"net/http"

	"reservo/internal/domain"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func httpStatus(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// grpcError converts a classified error to a status with the client-facing message.
func grpcError(err error) error {
	code := codes.Internal
	switch domain.KindOf(err) {
	case domain.KindValidation:
		code = codes.InvalidArgument
	case domain.KindNotFound:
		code = codes.NotFound
	case domain.KindConflict:
		code = codes.AlreadyExists
	case domain.KindUnauthorized:
		code = codes.Unauthenticated
	case domain.KindRateLimited:
		code = codes.ResourceExhausted
	case domain.KindTransient:
		code = codes.Unavailable
	}
	return status.Error(code, domain.PublicMessage(err))
}
