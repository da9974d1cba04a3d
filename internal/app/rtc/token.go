/*
Package rtc integrates with the LiveKit media provider.

The Issuer mints short-lived access tokens scoping one participant to one
room; RoomService wraps the LiveKit server API for participant listing and
room teardown. All media transport is LiveKit's concern, reached only
through these credentials and API calls.
*/
package rtc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/livekit/protocol/auth"
	"github.com/rs/zerolog"

	"callbridge/internal/app/store"
	"callbridge/internal/pkg/errs"
	"callbridge/internal/pkg/logx"
)

// TokenTTL is the fixed lifetime of issued media access tokens.
const TokenTTL = time.Hour

// Config holds the LiveKit connection settings: the media-server address
// handed to clients and the API key pair used for signing.
type Config struct {
	Host      string
	APIKey    string
	APISecret string
}

// Validate reports missing fields. Called at startup so a misconfigured
// signing key fails fast instead of at first issuance.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("rtc: media server host is required")
	}
	if c.APIKey == "" || c.APISecret == "" {
		return fmt.Errorf("rtc: API key and secret are required")
	}
	return nil
}

// RoomLookup is the read-only slice of the room store the issuer needs.
type RoomLookup interface {
	GetRoomByID(ctx context.Context, id uuid.UUID) (*store.Room, error)
}

// Issuer mints capability tokens for existing rooms.
type Issuer struct {
	cfg    Config
	rooms  RoomLookup
	logger zerolog.Logger
}

// NewIssuer validates cfg and returns an Issuer reading room existence
// from rooms.
func NewIssuer(cfg Config, rooms RoomLookup) (*Issuer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	issuerLogger := logx.Logger().With().Str("component", "TokenIssuer").Logger()

	return &Issuer{
		cfg:    cfg,
		rooms:  rooms,
		logger: issuerLogger,
	}, nil
}

// ServerURL returns the media-server address clients connect to.
func (i *Issuer) ServerURL() string {
	return i.cfg.Host
}

// Issue validates the inputs, confirms the room exists, and mints a signed
// token with subject participantName, a roomJoin grant scoped to roomID,
// and a one-hour lifetime. Issuance is stateless: two calls for the same
// inputs produce two distinct, equally valid tokens.
func (i *Issuer) Issue(ctx context.Context, roomID, participantName string) (string, *errs.CustomError) {
	if strings.TrimSpace(roomID) == "" || strings.TrimSpace(participantName) == "" {
		return "", errs.NewError(errs.ErrInvalidParams)
	}

	// Room ids are UUIDs; anything else cannot name an existing room.
	id, err := uuid.Parse(roomID)
	if err != nil {
		return "", errs.NewError(errs.ErrRoomNotFound)
	}

	room, err := i.rooms.GetRoomByID(ctx, id)
	if err != nil {
		i.logger.Error().Err(err).Str("room_id", roomID).Msg("Room lookup failed during token issuance.")
		return "", errs.NewError(errs.ErrUnknown)
	}
	if room == nil {
		return "", errs.NewError(errs.ErrRoomNotFound)
	}

	at := auth.NewAccessToken(i.cfg.APIKey, i.cfg.APISecret)
	at.SetIdentity(participantName).
		SetValidFor(TokenTTL).
		SetVideoGrant(&auth.VideoGrant{
			RoomJoin: true,
			Room:     roomID,
		})

	token, err := at.ToJWT()
	if err != nil {
		// Signing failures stay internal; the caller sees a generic error.
		i.logger.Error().Err(err).Str("room_id", roomID).Msg("Failed to sign media access token.")
		return "", errs.NewError(errs.ErrTokenIssueFailed)
	}

	i.logger.Info().
		Str("room_id", roomID).
		Str("participant", participantName).
		Msg("Issued media access token.")

	return token, nil
}
