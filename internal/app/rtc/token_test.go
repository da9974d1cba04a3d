package rtc

import (
	"context"
	"errors"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"callbridge/internal/app/store"
	"callbridge/internal/pkg/errs"
)

var testConfig = Config{
	Host:      "ws://localhost:7880",
	APIKey:    "devkey",
	APISecret: "supersecretsupersecretsupersecret",
}

// fakeRoomLookup records lookups and serves a canned answer.
type fakeRoomLookup struct {
	room  *store.Room
	err   error
	calls int
}

func (f *fakeRoomLookup) GetRoomByID(ctx context.Context, id uuid.UUID) (*store.Room, error) {
	f.calls++
	return f.room, f.err
}

// parseMediaToken decodes an issued token with the signing secret and
// returns its claims.
func parseMediaToken(t *testing.T, token string) gojwt.MapClaims {
	t.Helper()

	claims := gojwt.MapClaims{}
	parsed, err := gojwt.ParseWithClaims(token, claims, func(tok *gojwt.Token) (interface{}, error) {
		return []byte(testConfig.APISecret), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	return claims
}

func TestIssueMintsScopedToken(t *testing.T) {
	req := require.New(t)

	roomID := uuid.New()
	lookup := &fakeRoomLookup{room: &store.Room{ID: roomID, Slug: "standup"}}

	issuer, err := NewIssuer(testConfig, lookup)
	req.NoError(err)

	token, customErr := issuer.Issue(context.Background(), roomID.String(), "alice")
	req.Nil(customErr)
	req.NotEmpty(token)
	req.Equal(1, lookup.calls)

	claims := parseMediaToken(t, token)
	req.Equal("alice", claims["sub"])
	req.Equal(testConfig.APIKey, claims["iss"])

	video, ok := claims["video"].(map[string]any)
	req.True(ok, "token must carry a video grant")
	req.Equal(roomID.String(), video["room"])
	req.Equal(true, video["roomJoin"])

	exp, ok := claims["exp"].(float64)
	req.True(ok)
	req.InDelta(time.Now().Add(TokenTTL).Unix(), int64(exp), 10)
}

func TestIssueRejectsMissingParams(t *testing.T) {
	req := require.New(t)

	lookup := &fakeRoomLookup{room: &store.Room{ID: uuid.New()}}
	issuer, err := NewIssuer(testConfig, lookup)
	req.NoError(err)

	cases := []struct {
		name            string
		roomID          string
		participantName string
	}{
		{"empty room id", "", "alice"},
		{"empty participant", uuid.New().String(), ""},
		{"whitespace participant", uuid.New().String(), "   "},
		{"both empty", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token, customErr := issuer.Issue(context.Background(), tc.roomID, tc.participantName)
			require.Empty(t, token)
			require.NotNil(t, customErr)
			require.Equal(t, errs.ErrInvalidParams, customErr.Code)
		})
	}

	// Validation happens before any store access.
	req.Zero(lookup.calls)
}

func TestIssueUnknownRoom(t *testing.T) {
	req := require.New(t)

	lookup := &fakeRoomLookup{room: nil}
	issuer, err := NewIssuer(testConfig, lookup)
	req.NoError(err)

	token, customErr := issuer.Issue(context.Background(), uuid.New().String(), "alice")
	req.Empty(token)
	req.NotNil(customErr)
	req.Equal(errs.ErrRoomNotFound, customErr.Code)
	req.Equal(1, lookup.calls)
}

func TestIssueMalformedRoomID(t *testing.T) {
	req := require.New(t)

	lookup := &fakeRoomLookup{room: &store.Room{ID: uuid.New()}}
	issuer, err := NewIssuer(testConfig, lookup)
	req.NoError(err)

	token, customErr := issuer.Issue(context.Background(), "not-a-uuid", "alice")
	req.Empty(token)
	req.NotNil(customErr)
	req.Equal(errs.ErrRoomNotFound, customErr.Code)

	// A malformed id can never name an existing room, so no lookup runs.
	req.Zero(lookup.calls)
}

func TestIssueLookupFailure(t *testing.T) {
	req := require.New(t)

	lookup := &fakeRoomLookup{err: errors.New("connection reset")}
	issuer, err := NewIssuer(testConfig, lookup)
	req.NoError(err)

	token, customErr := issuer.Issue(context.Background(), uuid.New().String(), "alice")
	req.Empty(token)
	req.NotNil(customErr)
	req.Equal(errs.ErrUnknown, customErr.Code)
}

func TestIssueIsStateless(t *testing.T) {
	req := require.New(t)

	roomID := uuid.New()
	lookup := &fakeRoomLookup{room: &store.Room{ID: roomID, Slug: "standup"}}
	issuer, err := NewIssuer(testConfig, lookup)
	req.NoError(err)

	first, customErr := issuer.Issue(context.Background(), roomID.String(), "alice")
	req.Nil(customErr)
	req.NotEmpty(first)

	// Claim timestamps have second granularity; step past the boundary so
	// the second token provably differs.
	time.Sleep(1100 * time.Millisecond)

	second, customErr := issuer.Issue(context.Background(), roomID.String(), "alice")
	req.Nil(customErr)
	req.NotEmpty(second)

	req.NotEqual(first, second)
	req.Equal(2, lookup.calls)
}

func TestNewIssuerRejectsIncompleteConfig(t *testing.T) {
	req := require.New(t)

	_, err := NewIssuer(Config{Host: "ws://localhost:7880"}, &fakeRoomLookup{})
	req.Error(err)

	_, err = NewIssuer(Config{APIKey: "devkey", APISecret: "secret"}, &fakeRoomLookup{})
	req.Error(err)
}
