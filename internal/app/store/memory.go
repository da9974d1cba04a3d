package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process RoomStore used by tests and database-less
// local runs. All operations are safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]*Room
	users map[string]*User
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[uuid.UUID]*Room),
		users: make(map[string]*User),
	}
}

func (s *MemoryStore) Close() {}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) CreateRoom(ctx context.Context, slug, createdBy string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.rooms {
		if r.Slug == slug {
			return nil, ErrDuplicate
		}
	}

	room := &Room{
		ID:        uuid.New(),
		Slug:      slug,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
	}
	s.rooms[room.ID] = room

	copied := *room
	return &copied, nil
}

func (s *MemoryStore) GetRoomByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return nil, nil
	}

	copied := *room
	return &copied, nil
}

func (s *MemoryStore) GetRoomBySlug(ctx context.Context, slug string) (*Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, room := range s.rooms {
		if room.Slug == slug {
			copied := *room
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rooms, id)
	return nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, username, passwordHash, nickname string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; ok {
		return nil, ErrDuplicate
	}

	user := &User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: passwordHash,
		Nickname:     nickname,
		CreatedAt:    time.Now(),
	}
	s.users[username] = user

	copied := *user
	return &copied, nil
}

func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	if !ok {
		return nil, nil
	}

	copied := *user
	return &copied, nil
}
