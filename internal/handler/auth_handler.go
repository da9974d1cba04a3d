package handler

import (
	"errors"
	"net/http"
	"regexp"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"callbridge/internal/app/store"
	"callbridge/internal/pkg/auth/jwt"
	"callbridge/internal/pkg/errs"
	"callbridge/internal/pkg/logx"
	"callbridge/internal/pkg/randx"
	"callbridge/internal/pkg/req"
	"callbridge/internal/pkg/resp"
)

const (
	PasswordMinLength = 6
	PasswordMaxLength = 50
)

// usernameRegex accepts lowercase letters, digits, and underscores,
// 4 to 20 characters.
var usernameRegex = regexp.MustCompile(`^[a-z0-9_]{4,20}$`)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func validateCredentials(body credentialsRequest) *errs.CustomError {
	if !usernameRegex.MatchString(body.Username) {
		return errs.NewError(errs.ErrInvalidUsername)
	}

	if n := utf8.RuneCountInString(body.Password); n < PasswordMinLength || n > PasswordMaxLength {
		return errs.NewError(errs.ErrInvalidPassword)
	}

	return nil
}

// HandleRegister creates a new account with a generated nickname.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body credentialsRequest

		if customErr := req.BindJSON(r, &body); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := validateCredentials(body); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			logx.Error(err, "Failed to hash password")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		nickname, err := randx.UserNickname()
		if err != nil {
			logx.Error(err, "Failed to generate nickname")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		user, err := deps.Store.CreateUser(r.Context(), body.Username, string(hash), nickname)
		if err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				resp.RespondError(w, r, errs.NewError(errs.ErrUserAlreadyExists))
				return
			}

			logx.Error(err, "Failed to create user", "username", body.Username)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		logx.Info("User registered.", "user_id", user.ID.String(), "username", user.Username)

		data := map[string]string{
			"id":       user.ID.String(),
			"username": user.Username,
			"nickname": user.Nickname,
		}
		resp.RespondSuccess(w, r, data)
	}
}

// HandleLogin verifies the credentials and returns a bearer token for the
// REST API.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body credentialsRequest

		if customErr := req.BindJSON(r, &body); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		user, err := deps.Store.GetUserByUsername(r.Context(), body.Username)
		if err != nil {
			logx.Error(err, "User lookup failed", "username", body.Username)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		// A missing user and a wrong password produce the same error, so
		// login cannot be used to probe for registered usernames.
		if user == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		token, err := jwt.GenerateToken(&jwt.Payload{
			ID:       user.ID.String(),
			Nickname: user.Nickname,
			Purpose:  jwt.PurposeAccess,
		}, deps.Config.JWTSecret, jwt.AccessTokenExpiration)
		if err != nil {
			logx.Error(err, "Failed to sign access token", "user_id", user.ID.String())
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		data := map[string]string{
			"token":    token,
			"userId":   user.ID.String(),
			"nickname": user.Nickname,
		}
		resp.RespondSuccess(w, r, data)
	}
}

// HandleWSToken exchanges a valid bearer token for a short-lived chat
// session token, passed to /ws as a query parameter.
func HandleWSToken(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		token, err := jwt.GenerateToken(&jwt.Payload{
			ID:       payload.ID,
			Nickname: payload.Nickname,
			Purpose:  jwt.PurposeWS,
		}, deps.Config.JWTSecret, jwt.WSTokenExpiration)
		if err != nil {
			logx.Error(err, "Failed to sign chat session token", "user_id", payload.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		data := map[string]string{
			"token": token,
		}
		resp.RespondSuccess(w, r, data)
	}
}
