package chat

import (
	"path/filepath"
	"strings"
	"time"

	"callbridge/internal/pkg/errs"
)

const (
	// MaxAttachmentSizeMB is the maximum allowed file size in megabytes.
	MaxAttachmentSizeMB = 5

	// MaxAttachmentSize is the maximum allowed file size in bytes.
	MaxAttachmentSize = MaxAttachmentSizeMB * 1024 * 1024

	// MaxAttachmentsCount is the maximum number of attachments per message.
	MaxAttachmentsCount = 3

	// PresignedURLDuration is how long presigned upload/download URLs stay valid.
	PresignedURLDuration = 5 * time.Minute
)

// AllowedMIMETypes is the set of permitted attachment MIME types.
var AllowedMIMETypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

// ExtToMIME maps file extensions to their expected MIME types.
var ExtToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// Attachment is a file reference carried in a chat message. The bytes live
// in object storage; only the key travels over the relay.
type Attachment struct {
	Key      string `json:"fileKey"`
	Name     string `json:"fileName"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"fileSize"`
}

// ValidateFileSize checks that the file size is positive and within limits.
func ValidateFileSize(fileSize int64) *errs.CustomError {
	if fileSize <= 0 {
		return errs.NewError(errs.ErrInvalidParams)
	}

	if fileSize > MaxAttachmentSize {
		return errs.NewError(errs.ErrFileSizeTooLarge)
	}

	return nil
}

// ValidateFileType checks that the name's extension and the declared MIME
// type agree and are both allowed.
func ValidateFileType(fileName string, mimeType string) *errs.CustomError {
	lowerMimeType := strings.ToLower(mimeType)

	if _, ok := AllowedMIMETypes[lowerMimeType]; !ok {
		return errs.NewError(errs.ErrInvalidParams)
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" || len(ext) < 2 {
		return errs.NewError(errs.ErrInvalidParams)
	}

	expectedMIME, ok := ExtToMIME[ext]
	if !ok {
		return errs.NewError(errs.ErrInvalidParams)
	}

	if expectedMIME != lowerMimeType {
		return errs.NewError(errs.ErrInvalidParams)
	}

	return nil
}
