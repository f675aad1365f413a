package httputil

// Machine-readable error codes returned alongside error messages.
const (
	CodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodePendingApproval    = "PENDING_APPROVAL"
	CodeNoCodeRequested    = "NO_CODE_REQUESTED"
	CodeCodeExpired        = "CODE_EXPIRED"
	CodeCodeInvalid        = "CODE_INVALID"
	CodeWeakPassword       = "WEAK_PASSWORD"
	CodeEmailAlreadyExists = "EMAIL_ALREADY_EXISTS"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeCooldownActive     = "COOLDOWN_ACTIVE"
	CodeInternalError      = "INTERNAL_ERROR"

	// Access token / middleware
	CodeMissingAuth        = "MISSING_AUTH"
	CodeInvalidAuthHeader  = "INVALID_AUTH_HEADER"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeInvalidTokenUserID = "INVALID_TOKEN_USER_ID"
	CodeForbidden          = "FORBIDDEN"
)
