/*
Package store persists rooms and user accounts.

RoomStore is the interface consumed by the handlers and the token issuer;
PostgresStore backs production and MemoryStore backs tests and local runs
without a database. Lookups report a missing record as (nil, nil) so
callers decide how absence maps onto their error contract.
*/
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrDuplicate is returned when a unique constraint (room slug, username)
// is violated.
var ErrDuplicate = errors.New("store: duplicate record")

// Room is a named, persisted call destination.
type Room struct {
	ID        uuid.UUID `json:"id"`
	Slug      string    `json:"slug"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// User is a registered account that can create and join calls.
type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	Nickname     string
	CreatedAt    time.Time
}

// RoomStore is the persistence interface for rooms and accounts.
type RoomStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Room operations
	CreateRoom(ctx context.Context, slug, createdBy string) (*Room, error)
	GetRoomByID(ctx context.Context, id uuid.UUID) (*Room, error)
	GetRoomBySlug(ctx context.Context, slug string) (*Room, error)
	DeleteRoom(ctx context.Context, id uuid.UUID) error

	// User operations
	CreateUser(ctx context.Context, username, passwordHash, nickname string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}
