package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/npezzotti/go-chatrooms/internal/chat"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func lower(s string) string {
	return strings.ToLower(s)
}

func newApiError(statusCode int, err error) *ApiError {
	return &ApiError{
		StatusCode: statusCode,
		Message:    lower(http.StatusText(statusCode)),
		Err:        err,
	}
}

func NewBadRequestError() *ApiError {
	return newApiError(http.StatusBadRequest, nil)
}

func NewNotFoundError() *ApiError {
	return newApiError(http.StatusNotFound, nil)
}

func NewInternalServerError(err error) *ApiError {
	return newApiError(http.StatusInternalServerError, err)
}

func NewUnauthorizedError() *ApiError {
	return newApiError(http.StatusUnauthorized, nil)
}

func NewForbiddenError() *ApiError {
	return newApiError(http.StatusForbidden, nil)
}

func NewConflictError() *ApiError {
	return newApiError(http.StatusConflict, nil)
}

func NewServiceUnavailableError(err error) *ApiError {
	return newApiError(http.StatusServiceUnavailable, err)
}

// NewValidationError reports the first failed field of a request body.
func NewValidationError(err error) *ApiError {
	errResp := NewBadRequestError()
	errResp.Err = err

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		errResp.Message = fmt.Sprintf("invalid field %s: failed %s validation", lower(fe.Field()), fe.Tag())
	}

	return errResp
}

// chatError maps a chat service error onto an HTTP error. Storage details
// stay in Err and are never serialized.
func chatError(err error) *ApiError {
	kind := chat.Kind(err)

	var statusCode int
	switch kind {
	case chat.ErrUnauthenticated:
		statusCode = http.StatusUnauthorized
	case chat.ErrNotAMember, chat.ErrRoomInactive, chat.ErrForbidden:
		statusCode = http.StatusForbidden
	case chat.ErrRoomNotFound, chat.ErrMessageNotFound, chat.ErrNotificationNotFound:
		statusCode = http.StatusNotFound
	case chat.ErrRoomFull:
		statusCode = http.StatusConflict
	case chat.ErrEmptyContent, chat.ErrReplyTargetInvalid, chat.ErrMalformedPayload:
		statusCode = http.StatusBadRequest
	default:
		return NewServiceUnavailableError(err)
	}

	return &ApiError{
		StatusCode: statusCode,
		Message:    kind.Error(),
		Err:        err,
	}
}
