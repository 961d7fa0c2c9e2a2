package errs

import "net/http"

// errorMap holds the response template for every code.
// A zero Status means HTTP 200 with the code carried in the body.
var errorMap = map[int]CustomError{
	ErrInvalidParams:         {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Message: "Request size is too large.", Status: http.StatusRequestEntityTooLarge},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrEventNotAllowed:       {Code: ErrEventNotAllowed, Message: "Event %s cannot be sent by clients.", Status: http.StatusForbidden},

	ErrChatNotFound:  {Code: ErrChatNotFound, Message: "Chat not found.", Status: http.StatusNotFound},
	ErrNotChatMember: {Code: ErrNotChatMember, Message: "You are not a member of chat %s.", Status: http.StatusForbidden},
	ErrUserOffline:   {Code: ErrUserOffline, Message: "User %s is not online.", Status: http.StatusNotFound},

	ErrUnauthorized:  {Code: ErrUnauthorized, Message: "Missing or invalid authorization.", Status: http.StatusUnauthorized},
	ErrMissingUserID: {Code: ErrMissingUserID, Message: "Must pass userId on query string.", Status: http.StatusBadRequest},

	ErrUnknown:          {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrStoreUnavailable: {Code: ErrStoreUnavailable, Message: "State store is unavailable.", Status: http.StatusInternalServerError},
	ErrNotConfigured:    {Code: ErrNotConfigured, Message: "Service is not configured: %s", Status: http.StatusInternalServerError},
}
