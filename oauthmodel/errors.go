package oauthmodel

import "errors"

// Error is a protocol error: the request itself is malformed or names
// something the server will not honour. Code is the RFC 6749 error code
// reported to the caller.
type Error struct {
	Code        string
	Description string
}

func (e *Error) Error() string {
	return e.Description
}

var (
	ErrInvalidClient       = &Error{Code: "invalid_client", Description: "invalid client_id"}
	ErrInvalidRedirectURI  = &Error{Code: "invalid_request", Description: "invalid redirect_uri"}
	ErrInvalidScope        = &Error{Code: "invalid_scope", Description: "invalid scope"}
	ErrInvalidResponseType = &Error{Code: "unsupported_response_type", Description: "invalid response_type"}
	ErrInvalidGrantType    = &Error{Code: "unsupported_grant_type", Description: "invalid grant_type"}
	ErrInvalidCode         = &Error{Code: "invalid_grant", Description: "invalid code"}
	ErrInvalidClientSecret = &Error{Code: "invalid_client", Description: "invalid client_secret"}
	ErrInvalidToken        = &Error{Code: "invalid_token", Description: "invalid token"}
	ErrFunctionNotEnabled  = &Error{Code: "function_not_enabled", Description: "function not enabled for client"}
)

// AsError returns the protocol error in err's chain, if there is one.
// Errors without one are model or infrastructure failures.
func AsError(err error) (*Error, bool) {
	var protocolErr *Error
	if errors.As(err, &protocolErr) {
		return protocolErr, true
	}
	return nil, false
}
