package errs

import "net/http"

// errorMap holds the CustomError template for every application error code.
// Statuses follow the external interface contract: validation errors are 400,
// missing rooms 404, upstream failures 500.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Room and Chat Business Logic Errors
	ErrRoomSlugInvalid:        {Code: ErrRoomSlugInvalid, Message: "Invalid room name.", Status: http.StatusBadRequest},
	ErrRoomSlugExists:         {Code: ErrRoomSlugExists, Message: "Room name is already taken.", Status: http.StatusConflict},
	ErrRoomNotFound:           {Code: ErrRoomNotFound, Message: "Room not found.", Status: http.StatusNotFound},
	ErrMessageContentTooLong:  {Code: ErrMessageContentTooLong, Message: "Message is too long.", Status: http.StatusBadRequest},
	ErrAttachmentCountInvalid: {Code: ErrAttachmentCountInvalid, Message: "Invalid number of attachments (max %d).", Status: http.StatusBadRequest},
	ErrAttachmentKeyInvalid:   {Code: ErrAttachmentKeyInvalid, Message: "Invalid attachment.", Status: http.StatusBadRequest},
	ErrFileSizeTooLarge:       {Code: ErrFileSizeTooLarge, Message: "File is too large.", Status: http.StatusBadRequest},

	// 3xxx: User, Session, and Security Errors
	ErrUnauthorized:       {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrInvalidUsername:    {Code: ErrInvalidUsername, Message: "Invalid username.", Status: http.StatusBadRequest},
	ErrInvalidPassword:    {Code: ErrInvalidPassword, Message: "Invalid password.", Status: http.StatusBadRequest},
	ErrUserAlreadyExists:  {Code: ErrUserAlreadyExists, Message: "Username is already taken.", Status: http.StatusConflict},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Incorrect username or password.", Status: http.StatusUnauthorized},

	// 5xxx: Internal and Upstream Errors
	ErrUnknown:          {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrTokenIssueFailed: {Code: ErrTokenIssueFailed, Message: "Could not start the call session. Please try again.", Status: http.StatusInternalServerError},
	ErrFileStorageFailed: {Code: ErrFileStorageFailed, Message: "File upload failed. Please try again.", Status: http.StatusInternalServerError},
}
