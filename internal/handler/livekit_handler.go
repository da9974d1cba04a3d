package handler

import (
	"net/http"

	"github.com/google/uuid"

	"callbridge/internal/pkg/errs"
	"callbridge/internal/pkg/logx"
	"callbridge/internal/pkg/resp"
)

// HandleLiveKitToken issues a media access token for an existing room.
//
// Query parameters: roomId (the room's id, not its slug) and
// participantName (the identity the caller will hold inside the call).
func HandleLiveKitToken(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := r.URL.Query().Get("roomId")
		participantName := r.URL.Query().Get("participantName")

		token, customErr := deps.Issuer.Issue(r.Context(), roomID, participantName)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		data := map[string]string{
			"token":     token,
			"serverUrl": deps.Issuer.ServerURL(),
		}
		resp.RespondSuccess(w, r, data)
	}
}

// participantInfo is the client-facing view of one connected participant.
type participantInfo struct {
	Identity string `json:"identity"`
	Name     string `json:"name,omitempty"`
	JoinedAt int64  `json:"joinedAt"`
}

// HandleListParticipants lists who is currently connected to the room's
// live call on the media server.
func HandleListParticipants(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := r.URL.Query().Get("roomId")
		if roomID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		id, err := uuid.Parse(roomID)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotFound))
			return
		}

		room, err := deps.Store.GetRoomByID(r.Context(), id)
		if err != nil {
			logx.Error(err, "Room lookup failed", "room_id", roomID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		if room == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotFound))
			return
		}

		participants, err := deps.RoomService.Participants(r.Context(), roomID)
		if err != nil {
			logx.Error(err, "Failed to list call participants", "room_id", roomID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		infos := make([]participantInfo, 0, len(participants))
		for _, p := range participants {
			infos = append(infos, participantInfo{
				Identity: p.Identity,
				Name:     p.Name,
				JoinedAt: p.JoinedAt,
			})
		}

		data := map[string]any{
			"participants": infos,
		}
		resp.RespondSuccess(w, r, data)
	}
}
