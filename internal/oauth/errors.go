package oauth

import (
	"errors"
	"fmt"
	"net/http"
)

// Out-of-sequence step errors. Neither has a trustworthy redirect
// target, so they surface as plain rejections.
var (
	ErrNoAuthorization        = errors.New("no authorization in progress")
	ErrAuthenticationRequired = errors.New("authentication required")
)

// ErrInvalidUser marks a failed credential check at the login step; the
// login form is redisplayed rather than the flow aborted.
var ErrInvalidUser = errors.New("invalid_user")

// ParamError names the first authorization parameter that failed
// validation. No redirect target is trusted at that point, so the
// parameter name is rendered inline.
type ParamError struct {
	Param string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid authorization parameter %q", e.Param)
}

// FlowError is a classified OAuth2 failure carrying the protocol error
// code and the HTTP status used when it is delivered directly.
type FlowError struct {
	Code   string
	Status int
	cause  error
}

func (e *FlowError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.cause)
	}
	return e.Code
}

func (e *FlowError) Unwrap() error {
	return e.cause
}

func invalidRequest() *FlowError {
	return &FlowError{Code: "invalid_request", Status: http.StatusBadRequest}
}

func unauthorizedClient() *FlowError {
	return &FlowError{Code: "unauthorized_client", Status: http.StatusUnauthorized}
}

func accessDenied() *FlowError {
	return &FlowError{Code: "access_denied", Status: http.StatusUnauthorized}
}

// serverError hides the cause from callers; the cause is for logs only.
func serverError(cause error) *FlowError {
	return &FlowError{Code: "server_error", Status: http.StatusInternalServerError, cause: cause}
}

// RedirectError is a FlowError that has a trusted redirect target: the
// client gets a 302 to redirect_uri?error=<code>&state=<state>.
type RedirectError struct {
	*FlowError
	RedirectURI string
	State       string
}

func redirectError(flowErr *FlowError, redirectURI, state string) *RedirectError {
	return &RedirectError{
		FlowError:   flowErr,
		RedirectURI: redirectURI,
		State:       state,
	}
}

func (e *RedirectError) Unwrap() error {
	return e.FlowError
}
