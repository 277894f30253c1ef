package apperror

// Kind identifies a sub-kind within a category. Kind implements error so it
// can be used directly as an errors.Is target.
type Kind string

// Error implements the error interface.
func (k Kind) Error() string { return string(k) }

// Network kinds.
const (
	KindNoConnection       Kind = "network.no_connection"
	KindTimeout            Kind = "network.timeout"
	KindServerError        Kind = "network.server_error"
	KindInvalidResponse    Kind = "network.invalid_response"
	KindRequestFailed      Kind = "network.request_failed"
	KindRateLimitExceeded  Kind = "network.rate_limit_exceeded"
	KindServiceUnavailable Kind = "network.service_unavailable"
)

// Authentication kinds.
const (
	KindNotAuthenticated        Kind = "auth.not_authenticated"
	KindSessionExpired          Kind = "auth.session_expired"
	KindTokenExpired            Kind = "auth.token_expired"
	KindInvalidCredentials      Kind = "auth.invalid_credentials"
	KindSignInFailed            Kind = "auth.sign_in_failed"
	KindTokenRefreshFailed      Kind = "auth.token_refresh_failed"
	KindInsufficientPermissions Kind = "auth.insufficient_permissions"
)

// Data kinds.
const (
	KindParsingFailed    Kind = "data.parsing_failed"
	KindEncodingFailed   Kind = "data.encoding_failed"
	KindNotFound         Kind = "data.not_found"
	KindValidationFailed Kind = "data.validation_failed"
	KindSaveFailed       Kind = "data.save_failed"
	KindSyncFailed       Kind = "data.sync_failed"
	KindCorrupted        Kind = "data.corrupted"
)

// AI kinds.
const (
	KindAIServiceUnavailable    Kind = "ai.service_unavailable"
	KindAIQuotaExceeded         Kind = "ai.quota_exceeded"
	KindAIInvalidResponse       Kind = "ai.invalid_response"
	KindAIImageProcessingFailed Kind = "ai.image_processing_failed"
	KindExtractionFailed        Kind = "ai.extraction_failed"
	KindContentFiltered         Kind = "ai.content_filtered"
)

// General kinds.
const (
	KindUnknown            Kind = "general.unknown"
	KindUnexpected         Kind = "general.unexpected"
	KindFeatureUnavailable Kind = "general.feature_unavailable"
	KindCancelled          Kind = "general.cancelled"
)

type kindInfo struct {
	category    Category
	userMessage string
	technical   string
	recoverable bool
	severity    Severity
}

var kindTable = map[Kind]kindInfo{
	KindNoConnection: {CategoryNetwork,
		"You appear to be offline. Check your connection and try again.",
		"no network connection", true, SeverityMedium},
	KindTimeout: {CategoryNetwork,
		"The request took too long. Please try again.",
		"request timed out", true, SeverityMedium},
	KindServerError: {CategoryNetwork,
		"The server ran into a problem. Please try again later.",
		"server returned an error status", true, SeverityHigh},
	KindInvalidResponse: {CategoryNetwork,
		"We received an unexpected response from the server.",
		"invalid or truncated response", false, SeverityMedium},
	KindRequestFailed: {CategoryNetwork,
		"The request could not be completed.",
		"request failed", true, SeverityMedium},
	KindRateLimitExceeded: {CategoryNetwork,
		"Too many requests. Please wait a moment and try again.",
		"rate limit exceeded (HTTP 429)", true, SeverityLow},
	KindServiceUnavailable: {CategoryNetwork,
		"The service is temporarily unavailable.",
		"service unavailable", true, SeverityHigh},

	KindNotAuthenticated: {CategoryAuthentication,
		"Please sign in to continue.",
		"no credentials available", false, SeverityMedium},
	KindSessionExpired: {CategoryAuthentication,
		"Your session has expired. Please sign in again.",
		"session expired (HTTP 401)", true, SeverityMedium},
	KindTokenExpired: {CategoryAuthentication,
		"Your session has expired. Please sign in again.",
		"access token expired", true, SeverityMedium},
	KindInvalidCredentials: {CategoryAuthentication,
		"The sign-in details are not valid.",
		"invalid credentials", false, SeverityMedium},
	KindSignInFailed: {CategoryAuthentication,
		"Sign-in failed. Please try again.",
		"sign-in failed", false, SeverityHigh},
	KindTokenRefreshFailed: {CategoryAuthentication,
		"We could not refresh your session. Please sign in again.",
		"token refresh failed", false, SeverityHigh},
	KindInsufficientPermissions: {CategoryAuthentication,
		"You do not have permission to do that.",
		"insufficient permissions (HTTP 403)", false, SeverityMedium},

	KindParsingFailed: {CategoryData,
		"We could not read the data from the server.",
		"response decoding failed", false, SeverityHigh},
	KindEncodingFailed: {CategoryData,
		"We could not prepare your data for sending.",
		"request encoding failed", false, SeverityHigh},
	KindNotFound: {CategoryData,
		"The requested item could not be found.",
		"resource not found", false, SeverityLow},
	KindValidationFailed: {CategoryData,
		"Some of the entered data is not valid.",
		"validation failed", false, SeverityLow},
	KindSaveFailed: {CategoryData,
		"Your changes could not be saved. Please try again.",
		"save failed", true, SeverityHigh},
	KindSyncFailed: {CategoryData,
		"Data could not be synchronised. Please try again.",
		"data sync failed", true, SeverityMedium},
	KindCorrupted: {CategoryData,
		"Stored data is damaged and was discarded.",
		"corrupted data", false, SeverityCritical},

	KindAIServiceUnavailable: {CategoryAI,
		"Menu recognition is temporarily unavailable.",
		"AI service unavailable", true, SeverityMedium},
	KindAIQuotaExceeded: {CategoryAI,
		"Menu recognition limit reached. Please try again later.",
		"AI quota exceeded", false, SeverityMedium},
	KindAIInvalidResponse: {CategoryAI,
		"Menu recognition returned an unexpected result.",
		"AI service returned an invalid response", true, SeverityMedium},
	KindAIImageProcessingFailed: {CategoryAI,
		"The photo could not be processed. Try another picture.",
		"image processing failed", false, SeverityMedium},
	KindExtractionFailed: {CategoryAI,
		"No menu could be extracted from the photo.",
		"menu extraction failed", false, SeverityMedium},
	KindContentFiltered: {CategoryAI,
		"The photo could not be analysed.",
		"content filtered by AI service", false, SeverityLow},

	KindUnknown: {CategoryGeneral,
		"Something went wrong. Please try again.",
		"unknown error", false, SeverityMedium},
	KindUnexpected: {CategoryGeneral,
		"Something unexpected happened.",
		"unexpected error", false, SeverityHigh},
	KindFeatureUnavailable: {CategoryGeneral,
		"This feature is not available right now.",
		"feature unavailable", false, SeverityLow},
	KindCancelled: {CategoryGeneral,
		"The operation was cancelled.",
		"operation cancelled", false, SeverityLow},
}

func (k Kind) info() kindInfo {
	if info, ok := kindTable[k]; ok {
		return info
	}
	return kindTable[KindUnknown]
}

// Category returns the category the kind belongs to.
func (k Kind) Category() Category {
	return k.info().category
}

// Constructors for the parameterised kinds.

// ServerError maps an HTTP status code to a categorized error.
func ServerError(statusCode int) *Error {
	return &Error{Kind: KindServerError, StatusCode: statusCode}
}

// RequestFailed wraps a transport failure with a reason.
func RequestFailed(reason string, cause error) *Error {
	return &Error{Kind: KindRequestFailed, Reason: reason, Err: cause}
}

// ValidationFailed reports invalid data.
func ValidationFailed(reason string) *Error {
	return &Error{Kind: KindValidationFailed, Reason: reason}
}

// SignInFailed reports a failed sign-in.
func SignInFailed(reason string) *Error {
	return &Error{Kind: KindSignInFailed, Reason: reason}
}

// ExtractionFailed reports a failed AI menu extraction.
func ExtractionFailed(reason string) *Error {
	return &Error{Kind: KindExtractionFailed, Reason: reason}
}

// Unexpected reports an unexpected condition.
func Unexpected(reason string) *Error {
	return &Error{Kind: KindUnexpected, Reason: reason}
}
