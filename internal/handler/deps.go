package handler

import (
	"callbridge/internal/app/chat"
	"callbridge/internal/app/rtc"
	"callbridge/internal/app/storage"
	"callbridge/internal/app/store"
	"callbridge/internal/configs"
)

// AppDeps bundles the services the handlers depend on.
type AppDeps struct {
	Hub    *chat.Hub
	Config *configs.AppConfig
	Store  store.RoomStore
	Issuer *rtc.Issuer

	// RoomService and StorageService are optional: the routes backed by
	// them are only mounted when they are present.
	RoomService    *rtc.RoomService
	StorageService storage.StorageService
}
