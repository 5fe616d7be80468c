package errors

import "net/http"

type Code string

const (
	CodeUnknown             Code = "UNKNOWN"
	CodeInvalidArgument     Code = "INVALID_ARGUMENT"
	CodeNotFound            Code = "NOT_FOUND"
	CodeAlreadyExists       Code = "ALREADY_EXISTS"
	CodePermissionDenied    Code = "PERMISSION_DENIED"
	CodeUnauthenticated     Code = "UNAUTHENTICATED"
	CodeInvalidParticipants Code = "INVALID_PARTICIPANTS"
	CodeResourceExhausted   Code = "RESOURCE_EXHAUSTED"
	CodeInternal            Code = "INTERNAL"
)

// HTTPStatus maps an application error code to an HTTP status code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists:
		return http.StatusConflict
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeInvalidParticipants:
		return http.StatusUnprocessableEntity
	case CodeResourceExhausted:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf extracts the application error code from err, walking the unwrap
// chain. Unrecognized errors map to CodeInternal.
func CodeOf(err error) Code {
	for err != nil {
		if ae, ok := err.(*AppError); ok {
			return ae.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return CodeInternal
}
