package chat

import (
	"testing"

	"github.com/stretchr/testify/require"

	"callbridge/internal/pkg/errs"
)

func TestValidateFileSize(t *testing.T) {
	cases := []struct {
		name     string
		size     int64
		wantCode int
	}{
		{"zero", 0, errs.ErrInvalidParams},
		{"negative", -1, errs.ErrInvalidParams},
		{"one byte", 1, 0},
		{"exact limit", MaxAttachmentSize, 0},
		{"over limit", MaxAttachmentSize + 1, errs.ErrFileSizeTooLarge},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			customErr := ValidateFileSize(tc.size)
			if tc.wantCode == 0 {
				require.Nil(t, customErr)
			} else {
				require.NotNil(t, customErr)
				require.Equal(t, tc.wantCode, customErr.Code)
			}
		})
	}
}

func TestValidateFileType(t *testing.T) {
	cases := []struct {
		name     string
		fileName string
		mimeType string
		wantOK   bool
	}{
		{"jpeg", "photo.jpg", "image/jpeg", true},
		{"jpeg alt extension", "photo.jpeg", "image/jpeg", true},
		{"png uppercase mime", "shot.png", "IMAGE/PNG", true},
		{"webp", "sticker.webp", "image/webp", true},
		{"gif", "loop.gif", "image/gif", true},
		{"disallowed mime", "doc.pdf", "application/pdf", false},
		{"mime extension mismatch", "photo.png", "image/jpeg", false},
		{"missing extension", "photo", "image/jpeg", false},
		{"unknown extension", "photo.tiff", "image/jpeg", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			customErr := ValidateFileType(tc.fileName, tc.mimeType)
			if tc.wantOK {
				require.Nil(t, customErr)
			} else {
				require.NotNil(t, customErr)
			}
		})
	}
}

func TestNewChatEventFillsIdentityFields(t *testing.T) {
	req := require.New(t)

	ev := NewChatEvent("room-a", "u1", "hello")
	req.Equal(EventChat, ev.Type)
	req.Equal("room-a", ev.RoomID)
	req.Equal("u1", ev.Sender)
	req.Equal("hello", ev.Message)
	req.NotEmpty(ev.ID)
	req.NotZero(ev.Timestamp)

	other := NewChatEvent("room-a", "u1", "hello")
	req.NotEqual(ev.ID, other.ID, "each relayed message gets its own id")
}
