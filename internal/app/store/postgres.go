package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// PostgresStore implements RoomStore on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a connection pool, verifies connectivity, and
// applies pending migrations.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := runMigrations(sqlDB); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// runMigrations applies all pending migrations from the embedded file system.
func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// isUniqueViolation checks for a PostgreSQL unique constraint violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// CreateRoom inserts a new room. A taken slug returns ErrDuplicate.
func (s *PostgresStore) CreateRoom(ctx context.Context, slug, createdBy string) (*Room, error) {
	room := &Room{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO rooms (slug, created_by)
		VALUES ($1, $2)
		RETURNING id, slug, created_by, created_at
	`, slug, createdBy).Scan(
		&room.ID,
		&room.Slug,
		&room.CreatedBy,
		&room.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return room, nil
}

// GetRoomByID retrieves a room by id, (nil, nil) when absent.
func (s *PostgresStore) GetRoomByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	room := &Room{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, slug, created_by, created_at
		FROM rooms WHERE id = $1
	`, id).Scan(
		&room.ID,
		&room.Slug,
		&room.CreatedBy,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return room, nil
}

// GetRoomBySlug retrieves a room by slug, (nil, nil) when absent.
func (s *PostgresStore) GetRoomBySlug(ctx context.Context, slug string) (*Room, error) {
	room := &Room{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, slug, created_by, created_at
		FROM rooms WHERE slug = $1
	`, slug).Scan(
		&room.ID,
		&room.Slug,
		&room.CreatedBy,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return room, nil
}

// DeleteRoom removes a room record. Deleting a missing room is not an error.
func (s *PostgresStore) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	return err
}

// CreateUser inserts a new account. A taken username returns ErrDuplicate.
func (s *PostgresStore) CreateUser(ctx context.Context, username, passwordHash, nickname string) (*User, error) {
	user := &User{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, nickname)
		VALUES ($1, $2, $3)
		RETURNING id, username, password_hash, nickname, created_at
	`, username, passwordHash, nickname).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Nickname,
		&user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return user, nil
}

// GetUserByUsername retrieves an account by username, (nil, nil) when absent.
func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	user := &User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, nickname, created_at
		FROM users WHERE username = $1
	`, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Nickname,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}
