/*
Package errs provides the application's error taxonomy.

The codes below identify specific business or system failures both inside
the server and on the wire.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body is not valid JSON.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates trailing content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates the request rate exceeded the configured limit.
	ErrRateLimitExceeded = 1005
)

// 2xxx: Room and Chat Business Logic Errors
const (
	// ErrRoomSlugInvalid indicates a malformed room slug.
	ErrRoomSlugInvalid = 2101

	// ErrRoomSlugExists indicates the room slug is already taken.
	ErrRoomSlugExists = 2102

	// ErrRoomNotFound indicates the referenced room does not exist.
	ErrRoomNotFound = 2103

	// ErrMessageContentTooLong indicates a chat message over the length limit.
	ErrMessageContentTooLong = 2201

	// ErrAttachmentCountInvalid indicates too many or zero attachments on a frame.
	ErrAttachmentCountInvalid = 2202

	// ErrAttachmentKeyInvalid indicates an attachment key outside the room's prefix.
	ErrAttachmentKeyInvalid = 2203

	// ErrFileSizeTooLarge indicates an attachment over the size limit.
	ErrFileSizeTooLarge = 2204
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrUnauthorized indicates a missing or invalid bearer credential.
	ErrUnauthorized = 3001

	// ErrInvalidUsername indicates a username outside the accepted format.
	ErrInvalidUsername = 3002

	// ErrInvalidPassword indicates a password outside the accepted length.
	ErrInvalidPassword = 3003

	// ErrUserAlreadyExists indicates the username is already registered.
	ErrUserAlreadyExists = 3004

	// ErrInvalidCredentials indicates a failed username/password check.
	ErrInvalidCredentials = 3005
)

// 5xxx: Internal and Upstream Errors
const (
	// ErrUnknown represents an unclassified server internal error.
	ErrUnknown = 5000

	// ErrTokenIssueFailed indicates the media access token could not be signed.
	ErrTokenIssueFailed = 5001

	// ErrFileStorageFailed indicates a presigning failure against object storage.
	ErrFileStorageFailed = 5002
)
