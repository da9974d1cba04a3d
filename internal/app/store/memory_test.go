package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRooms(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewMemoryStore()

	room, err := s.CreateRoom(ctx, "standup", "u1")
	req.NoError(err)
	req.Equal("standup", room.Slug)
	req.Equal("u1", room.CreatedBy)
	req.NotEqual(uuid.Nil, room.ID)

	_, err = s.CreateRoom(ctx, "standup", "u2")
	req.ErrorIs(err, ErrDuplicate)

	byID, err := s.GetRoomByID(ctx, room.ID)
	req.NoError(err)
	req.NotNil(byID)
	req.Equal(room.ID, byID.ID)

	bySlug, err := s.GetRoomBySlug(ctx, "standup")
	req.NoError(err)
	req.NotNil(bySlug)
	req.Equal(room.ID, bySlug.ID)

	missing, err := s.GetRoomBySlug(ctx, "retro")
	req.NoError(err)
	req.Nil(missing)

	req.NoError(s.DeleteRoom(ctx, room.ID))

	gone, err := s.GetRoomByID(ctx, room.ID)
	req.NoError(err)
	req.Nil(gone)

	// Deleting a missing room is not an error.
	req.NoError(s.DeleteRoom(ctx, room.ID))
}

func TestMemoryStoreUsers(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewMemoryStore()

	user, err := s.CreateUser(ctx, "alice", "hash", "User_AbCdEf")
	req.NoError(err)
	req.Equal("alice", user.Username)

	_, err = s.CreateUser(ctx, "alice", "other-hash", "User_GhIjKl")
	req.ErrorIs(err, ErrDuplicate)

	found, err := s.GetUserByUsername(ctx, "alice")
	req.NoError(err)
	req.NotNil(found)
	req.Equal(user.ID, found.ID)
	req.Equal("hash", found.PasswordHash)

	missing, err := s.GetUserByUsername(ctx, "bob")
	req.NoError(err)
	req.Nil(missing)
}
