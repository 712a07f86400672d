// Package apperr defines the coded errors shared by services and handlers and
// maps them to HTTP statuses and client-safe messages.
package apperr

import (
	"fmt"
	"net/http"

	"github.com/samber/oops"
)

// Kind groups error codes into the failure taxonomy exposed over HTTP.
type Kind int

const (
	KindInfrastructure Kind = iota
	KindClientInput
	KindAuthentication
	KindConflict
	KindCredential
	KindNotFound
	KindRateLimited
)

// Status returns the HTTP status for the kind.
func (k Kind) Status() int {
	switch k {
	case KindClientInput, KindAuthentication, KindCredential:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error codes.
const (
	CodeClientInput = "CLIENT_INPUT"

	CodeAuthHeaderMissing     = "AUTH_HEADER_MISSING"
	CodeAuthSchemeInvalid     = "AUTH_SCHEME_INVALID"
	CodeAuthTokenMissing      = "AUTH_TOKEN_MISSING"
	CodeTokenExpired          = "TOKEN_EXPIRED"
	CodeTokenSignatureInvalid = "TOKEN_SIGNATURE_INVALID"
	CodeTokenInvalid          = "TOKEN_INVALID"
	CodeClaimsMalformed       = "CLAIMS_MALFORMED"
	CodeRefreshTokenInvalid   = "REFRESH_TOKEN_INVALID"
	CodeResetTokenExpired     = "RESET_TOKEN_EXPIRED"
	CodeResetTokenMissing     = "RESET_TOKEN_MISSING"

	CodeAccountConflict    = "ACCOUNT_CONFLICT"
	CodeCredentialMismatch = "CREDENTIAL_MISMATCH"
	CodeAccountInactive    = "ACCOUNT_INACTIVE"
	CodeAccountNotFound    = "ACCOUNT_NOT_FOUND"
	CodeResetTokenInvalid  = "RESET_TOKEN_INVALID"
	CodeRateLimited        = "RATE_LIMITED"

	CodeHashingFailure            = "HASHING_FAILURE"
	CodeTokenSigningFailure       = "TOKEN_SIGNING_FAILURE"
	CodeTokenGenerationFailure    = "TOKEN_GENERATION_FAILURE"
	CodeAccountCreationFailure    = "ACCOUNT_CREATION_FAILURE"
	CodeResetEmailDeliveryFailure = "RESET_EMAIL_DELIVERY_FAILURE"
	CodeStoreFailure              = "STORE_FAILURE"
)

// InternalMessage is the only message a client sees for infrastructure failures.
const InternalMessage = "Internal server error"

const publicKey = "public_message"

type codeInfo struct {
	kind    Kind
	message string
}

var codes = map[string]codeInfo{
	CodeClientInput: {KindClientInput, "Bad request"},

	CodeAuthHeaderMissing:     {KindAuthentication, "Un authenticated request"},
	CodeAuthSchemeInvalid:     {KindAuthentication, "Invalid Bearer token"},
	CodeAuthTokenMissing:      {KindAuthentication, "Token not provided"},
	CodeTokenExpired:          {KindAuthentication, "jwt expired"},
	CodeTokenSignatureInvalid: {KindAuthentication, "You need to log in again"},
	CodeTokenInvalid:          {KindAuthentication, "Invalid token"},
	CodeClaimsMalformed:       {KindAuthentication, "Token data not valid"},
	CodeRefreshTokenInvalid:   {KindAuthentication, "Refresh token is invalid or expired, please log in again"},
	CodeResetTokenExpired:     {KindAuthentication, "Reset link is expired"},
	CodeResetTokenMissing:     {KindClientInput, "Reset token is not set for this account"},

	CodeAccountConflict:    {KindConflict, "User already exists"},
	CodeCredentialMismatch: {KindCredential, "Wrong password"},
	CodeAccountInactive:    {KindCredential, "Account is not active"},
	CodeAccountNotFound:    {KindNotFound, "User not found"},
	CodeResetTokenInvalid:  {KindNotFound, "You need to send a new reset email to proceed"},
	CodeRateLimited:        {KindRateLimited, "Too many requests"},

	CodeHashingFailure:            {KindInfrastructure, InternalMessage},
	CodeTokenSigningFailure:       {KindInfrastructure, InternalMessage},
	CodeTokenGenerationFailure:    {KindInfrastructure, InternalMessage},
	CodeAccountCreationFailure:    {KindInfrastructure, InternalMessage},
	CodeResetEmailDeliveryFailure: {KindInfrastructure, InternalMessage},
	CodeStoreFailure:              {KindInfrastructure, InternalMessage},
}

// New creates a domain error carrying code and the default client message
// for that code.
func New(code string) error {
	info := codes[code]
	return oops.Code(code).Errorf("%s", info.message)
}

// Newf creates a domain error whose client message overrides the code's
// default.
func Newf(code, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return oops.Code(code).With(publicKey, msg).Errorf("%s", msg)
}

// Invalid wraps a validation failure as a client input error. The validation
// text is shown to the client.
func Invalid(err error) error {
	if err == nil {
		return nil
	}
	return oops.Code(CodeClientInput).With(publicKey, err.Error()).Wrap(err)
}

// Wrap classifies an unexpected error as an infrastructure failure under code.
// Errors that already carry a code pass through untouched so domain errors
// propagate unmodified.
func Wrap(err error, code, msg string) error {
	if err == nil {
		return nil
	}
	if Code(err) != "" {
		return err
	}
	return oops.Code(code).Wrapf(err, "%s", msg)
}

// Code returns the error's code, or "" for uncoded errors.
func Code(err error) string {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := any(oopsErr.Code()).(string)
	return code
}

// HasCode reports whether err carries code.
func HasCode(err error, code string) bool {
	return Code(err) == code
}

// KindOf returns the taxonomy kind of err. Uncoded errors are infrastructure
// failures.
func KindOf(err error) Kind {
	if info, ok := codes[Code(err)]; ok {
		return info.kind
	}
	return KindInfrastructure
}

// Status returns the HTTP status for err.
func Status(err error) int {
	return KindOf(err).Status()
}

// PublicMessage returns the message that may be sent to the client for err.
// Infrastructure failures always collapse to InternalMessage.
func PublicMessage(err error) string {
	code := Code(err)
	info, ok := codes[code]
	if !ok || info.kind == KindInfrastructure {
		return InternalMessage
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		if msg, ok := oopsErr.Context()[publicKey].(string); ok && msg != "" {
			return msg
		}
	}
	return info.message
}
