package api

import (
	"errors"
	"net/http"

	"github.com/samcharles93/kernelhal/internal/delegator"
	"github.com/samcharles93/kernelhal/internal/kvstorage"
	"github.com/samcharles93/kernelhal/internal/status"
)

var ErrInvalidRequest = errors.New("invalid_request")

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}

// httpStatus maps an engine error to a response status and error type.
func httpStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, delegator.ErrInvalidSignature),
		errors.Is(err, kvstorage.ErrInvalidName):
		return http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, delegator.ErrNotFound):
		return http.StatusNotFound, "not_found_error"
	}
	switch status.CodeOf(err) {
	case status.InvalidArgs:
		return http.StatusBadRequest, "invalid_request_error"
	case status.Unsupported:
		return http.StatusNotImplemented, "unsupported_error"
	case status.OutOfResources:
		return http.StatusServiceUnavailable, "resource_error"
	default:
		return http.StatusInternalServerError, "server_error"
	}
}
