/*
Package errs defines the application error codes returned on the HTTP surface.
*/
package errs

// 1xxx: request handling
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrRequestEntityTooLarge indicates that the body exceeded the server limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates the caller exceeded its request rate.
	ErrRateLimitExceeded = 1007

	// ErrEventNotAllowed indicates a client sent an event only the server may raise.
	ErrEventNotAllowed = 1008
)

// 2xxx: chats and presence
const (
	// ErrChatNotFound indicates the referenced chat does not exist.
	ErrChatNotFound = 2103

	// ErrNotChatMember indicates a group message from a user outside the group.
	ErrNotChatMember = 2104

	// ErrUserOffline indicates the referenced user has no presence record.
	ErrUserOffline = 2301
)

// 3xxx: identity and webhook security
const (
	// ErrUnauthorized indicates a missing or invalid bearer token.
	ErrUnauthorized = 3005

	// ErrMissingUserID indicates a request that must name a user did not.
	ErrMissingUserID = 3006
)

// 5xxx: internal
const (
	// ErrUnknown represents an unclassified internal error.
	ErrUnknown = 5000

	// ErrStoreUnavailable indicates the state store failed to serve a read or write.
	ErrStoreUnavailable = 5001

	// ErrNotConfigured indicates the service started without required settings.
	ErrNotConfigured = 5002
)
