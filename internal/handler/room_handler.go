package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"callbridge/internal/app/store"
	"callbridge/internal/pkg/auth/jwt"
	"callbridge/internal/pkg/errs"
	"callbridge/internal/pkg/logx"
	"callbridge/internal/pkg/randx"
	"callbridge/internal/pkg/req"
	"callbridge/internal/pkg/resp"
)

type createRoomRequest struct {
	Slug string `json:"slug"`
}

// HandleCreateRoom persists a new room under the caller's chosen slug.
func HandleCreateRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createRoomRequest

		if customErr := req.BindJSON(r, &body); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !randx.IsValidSlug(body.Slug) {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomSlugInvalid))
			return
		}

		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		room, err := deps.Store.CreateRoom(r.Context(), body.Slug, payload.ID)
		if err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				resp.RespondError(w, r, errs.NewError(errs.ErrRoomSlugExists))
				return
			}

			logx.Error(err, "Failed to create room", "slug", body.Slug)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		logx.Info("Room created.", "room_id", room.ID.String(), "slug", room.Slug)

		data := map[string]string{
			"id":   room.ID.String(),
			"slug": room.Slug,
		}
		resp.RespondSuccess(w, r, data)
	}
}

// HandleGetRoom resolves a slug to the room's id, which clients use for
// the chat relay and media token requests.
func HandleGetRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		if !randx.IsValidSlug(slug) {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotFound))
			return
		}

		room, err := deps.Store.GetRoomBySlug(r.Context(), slug)
		if err != nil {
			logx.Error(err, "Room lookup failed", "slug", slug)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		if room == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotFound))
			return
		}

		data := map[string]string{
			"id": room.ID.String(),
		}
		resp.RespondSuccess(w, r, data)
	}
}

// HandleDeleteRoom removes the room and tears down any live call on it.
// Only the room's creator may delete it.
func HandleDeleteRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		room, err := deps.Store.GetRoomBySlug(r.Context(), slug)
		if err != nil {
			logx.Error(err, "Room lookup failed", "slug", slug)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		if room == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotFound))
			return
		}

		payload := jwt.GetPayloadFromContext(r)
		if payload == nil || payload.ID != room.CreatedBy {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		if err := deps.Store.DeleteRoom(r.Context(), room.ID); err != nil {
			logx.Error(err, "Failed to delete room", "room_id", room.ID.String())
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		roomID := room.ID.String()

		// Teardown of the live call is best effort. The persisted room is
		// already gone, so issued media tokens stop resolving either way.
		deps.Hub.CloseRoom(roomID)

		if deps.RoomService != nil {
			if err := deps.RoomService.EndRoom(r.Context(), roomID); err != nil {
				logx.Warn("Failed to end live media room after delete.", "room_id", roomID, "error", err)
			}
		}

		logx.Info("Room deleted.", "room_id", roomID, "slug", slug)

		resp.RespondSuccess(w, r, nil)
	}
}
