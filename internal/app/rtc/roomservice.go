package rtc

import (
	"context"
	"time"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/rs/zerolog"

	"callbridge/internal/pkg/logx"
)

// RoomService wraps the LiveKit server API used for call administration.
type RoomService struct {
	client *lksdk.RoomServiceClient
	logger zerolog.Logger
}

// NewRoomService creates a LiveKit room service client from cfg.
func NewRoomService(cfg Config) (*RoomService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	serviceLogger := logx.Logger().With().Str("component", "RoomService").Logger()

	return &RoomService{
		client: lksdk.NewRoomServiceClient(cfg.Host, cfg.APIKey, cfg.APISecret),
		logger: serviceLogger,
	}, nil
}

// Participants lists the participants currently connected to roomID.
func (s *RoomService) Participants(ctx context.Context, roomID string) ([]*livekit.ParticipantInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	res, err := s.client.ListParticipants(ctx, &livekit.ListParticipantsRequest{
		Room: roomID,
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	return res.Participants, nil
}

// EndRoom deletes the LiveKit room, disconnecting every participant.
func (s *RoomService) EndRoom(ctx context.Context, roomID string) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	_, err := s.client.DeleteRoom(ctx, &livekit.DeleteRoomRequest{
		Room: roomID,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("room_id", roomID).Msg("Failed to end LiveKit room.")
		return err
	}

	s.logger.Info().Str("room_id", roomID).Msg("Ended LiveKit room.")
	return nil
}
