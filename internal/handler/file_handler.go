package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"callbridge/internal/app/chat"
	"callbridge/internal/pkg/errs"
	"callbridge/internal/pkg/logx"
	"callbridge/internal/pkg/req"
	"callbridge/internal/pkg/resp"
)

type presignUploadRequest struct {
	RoomID   string `json:"roomId"`
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
	FileSize int64  `json:"fileSize"`
}

// HandlePresignUpload validates the attachment metadata and returns a
// presigned PUT URL. The object key is namespaced under the room id so a
// key can never reference another room's files.
func HandlePresignUpload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body presignUploadRequest

		if customErr := req.BindJSON(r, &body); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		id, err := uuid.Parse(body.RoomID)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotFound))
			return
		}

		room, err := deps.Store.GetRoomByID(r.Context(), id)
		if err != nil {
			logx.Error(err, "Room lookup failed", "room_id", body.RoomID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		if room == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotFound))
			return
		}

		if customErr := chat.ValidateFileSize(body.FileSize); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := chat.ValidateFileType(body.FileName, body.MimeType); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		ext := strings.ToLower(filepath.Ext(body.FileName))
		fileKey := fmt.Sprintf("%s/%s%s", body.RoomID, uuid.New().String(), ext)

		uploadURL, err := deps.StorageService.PresignUpload(
			r.Context(),
			fileKey,
			strings.ToLower(body.MimeType),
			body.FileSize,
			chat.PresignedURLDuration,
		)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		data := map[string]string{
			"uploadUrl": uploadURL,
			"fileKey":   fileKey,
		}
		resp.RespondSuccess(w, r, data)
	}
}

// HandlePresignDownload redirects to a presigned GET URL for a stored
// attachment. Keys must carry a room-id prefix from a prior upload.
func HandlePresignDownload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fileKey := r.URL.Query().Get("fileKey")
		if fileKey == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		prefix, _, found := strings.Cut(fileKey, "/")
		if !found {
			resp.RespondError(w, r, errs.NewError(errs.ErrAttachmentKeyInvalid))
			return
		}

		if _, err := uuid.Parse(prefix); err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAttachmentKeyInvalid))
			return
		}

		downloadURL, err := deps.StorageService.PresignDownload(r.Context(), fileKey, chat.PresignedURLDuration)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		http.Redirect(w, r, downloadURL, http.StatusFound)
	}
}
