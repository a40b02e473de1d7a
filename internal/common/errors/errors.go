package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrNotFound        = errors.New("resource not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrBadRequest      = errors.New("bad request")
	ErrInvalidState    = errors.New("invalid state")
	ErrInvalidPoll     = errors.New("invalid poll")
	ErrInvalidDuration = errors.New("invalid duration")
	ErrBanned          = errors.New("user is banned")
	ErrStoreFailure    = errors.New("store failure")
	ErrRateLimited     = errors.New("rate limited")
)

type AppError struct {
	Code    codes.Code
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) GRPCStatus() *status.Status {
	return status.New(e.Code, e.Message)
}

func NewAppError(code codes.Code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NotFound(message string) *AppError {
	return &AppError{Code: codes.NotFound, Message: message, Err: ErrNotFound}
}

func Unauthorized(message string) *AppError {
	return &AppError{Code: codes.Unauthenticated, Message: message, Err: ErrUnauthorized}
}

func Forbidden(message string) *AppError {
	return &AppError{Code: codes.PermissionDenied, Message: message, Err: ErrForbidden}
}

func BadRequest(message string) *AppError {
	return &AppError{Code: codes.InvalidArgument, Message: message, Err: ErrBadRequest}
}

func InvalidState(message string) *AppError {
	return &AppError{Code: codes.FailedPrecondition, Message: message, Err: ErrInvalidState}
}

func InvalidPoll(message string) *AppError {
	return &AppError{Code: codes.InvalidArgument, Message: message, Err: ErrInvalidPoll}
}

func InvalidDuration(message string) *AppError {
	return &AppError{Code: codes.InvalidArgument, Message: message, Err: ErrInvalidDuration}
}

// Banned is returned when a restricted author tries to post. It carries its own
// sentinel so callers can show a restriction notice instead of "not allowed".
func Banned(message string) *AppError {
	return &AppError{Code: codes.PermissionDenied, Message: message, Err: ErrBanned}
}

func RateLimited(message string) *AppError {
	return &AppError{Code: codes.ResourceExhausted, Message: message, Err: ErrRateLimited}
}

// StoreFailure wraps an error returned by the persistence layer. The cause is
// kept reachable through Unwrap for logging.
func StoreFailure(message string, err error) *AppError {
	if err == nil {
		err = ErrStoreFailure
	} else {
		err = fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}
	return &AppError{Code: codes.Unavailable, Message: message, Err: err}
}

func Internal(message string, err error) *AppError {
	return &AppError{Code: codes.Internal, Message: message, Err: err}
}

// Code reports the status code carried by err, codes.Internal for foreign errors.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	if st, ok := status.FromError(err); ok {
		return st.Code()
	}
	return codes.Internal
}

func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return runtime.HTTPStatusFromCode(Code(err))
}

// PublicMessage is the text safe to show to end users.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch {
		case errors.Is(appErr.Err, ErrStoreFailure):
			return "temporary failure, please try again"
		case appErr.Code == codes.Internal:
			return "internal error"
		}
		return appErr.Message
	}
	return "internal error"
}

var kinds = []struct {
	sentinel error
	kind     string
}{
	{ErrBanned, "banned"},
	{ErrForbidden, "forbidden"},
	{ErrInvalidPoll, "invalid_poll"},
	{ErrInvalidDuration, "invalid_duration"},
	{ErrInvalidState, "invalid_state"},
	{ErrBadRequest, "bad_request"},
	{ErrNotFound, "not_found"},
	{ErrUnauthorized, "unauthorized"},
	{ErrRateLimited, "rate_limited"},
	{ErrStoreFailure, "store_failure"},
}

// Kind names the sentinel behind err for machine-readable responses. Errors
// without a sentinel report "internal".
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.kind
		}
	}
	return "internal"
}

func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Code == codes.NotFound {
			return true
		}
		return errors.Is(appErr.Err, ErrNotFound)
	}

	if st, ok := status.FromError(err); ok {
		return st.Code() == codes.NotFound
	}

	return errors.Is(err, ErrNotFound)
}

func IsForbidden(err error) bool       { return errors.Is(err, ErrForbidden) }
func IsBadRequest(err error) bool      { return errors.Is(err, ErrBadRequest) }
func IsUnauthorized(err error) bool    { return errors.Is(err, ErrUnauthorized) }
func IsRateLimited(err error) bool     { return errors.Is(err, ErrRateLimited) }
func IsInvalidState(err error) bool    { return errors.Is(err, ErrInvalidState) }
func IsInvalidPoll(err error) bool     { return errors.Is(err, ErrInvalidPoll) }
func IsInvalidDuration(err error) bool { return errors.Is(err, ErrInvalidDuration) }
func IsBanned(err error) bool          { return errors.Is(err, ErrBanned) }
func IsStoreFailure(err error) bool    { return errors.Is(err, ErrStoreFailure) }
