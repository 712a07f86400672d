package handlers

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	IdentityContextKey    ContextKey = "identity"
	CurrentUserContextKey ContextKey = "currentUser"
	RequestIDContextKey   ContextKey = "requestID"
)

const (
	APIPrefix       = "/api"
	RequestIDHeader = "X-Request-ID"

	MsgResetLinkSent   = "We've sent a password reset link to your email address. The link will expire in %d minutes for security purposes."
	MsgPasswordReset   = "Password has been reset successfully"
	MsgPasswordChanged = "Password successfully changed"
	MsgHealthy         = "Service is running!"
)

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 1 << 20
