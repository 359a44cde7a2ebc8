package handler

import (
	"errors"
	"net/http"

	"vaultx/internal/domain"
	"vaultx/internal/middleware"
	"vaultx/internal/service"
	"vaultx/pkg/hash"
	"vaultx/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type AuthHandler struct {
	authService *service.AuthService
	validator   *validator.Validate
	log         zerolog.Logger
}

func NewAuthHandler(authService *service.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validator:   validator.New(),
		log:         logger.With().Str("component", "auth").Logger(),
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := decodeJSON(w, r, h.validator, &req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	user, err := h.authService.Register(r.Context(), &req)
	switch {
	case errors.Is(err, service.ErrEmailTaken):
		response.Conflict(w, err.Error())
		return
	case errors.Is(err, hash.ErrPasswordTooShort), errors.Is(err, hash.ErrPasswordTooLong):
		response.BadRequest(w, err.Error())
		return
	case err != nil:
		h.log.Error().Err(err).Msg("registration failed")
		response.InternalError(w, "Registration failed")
		return
	}

	h.log.Info().Str("user", user.ID).Msg("user registered")
	response.Created(w, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.SignInRequest
	if err := decodeJSON(w, r, h.validator, &req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	loginResp, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Unauthorized(w, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("login failed")
		response.InternalError(w, "Login failed")
		return
	}

	response.Success(w, loginResp)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req domain.RefreshTokenRequest
	if err := decodeJSON(w, r, h.validator, &req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	tokenResp, err := h.authService.RefreshToken(r.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			response.Unauthorized(w, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("token refresh failed")
		response.InternalError(w, "Token refresh failed")
		return
	}

	response.Success(w, tokenResp)
}

// Logout acknowledges the end of a session. Tokens are stateless; the client
// discards them.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Str("user", middleware.GetUserID(r)).Msg("user logged out")
	response.Success(w, map[string]string{
		"message": "Logged out successfully",
	})
}
