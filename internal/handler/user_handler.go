package handler

import (
	"errors"
	"net/http"

	"vaultx/internal/middleware"
	"vaultx/internal/service"
	"vaultx/pkg/response"
)

type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	user, err := h.userService.GetMe(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			// The token outlived its account.
			response.Unauthorized(w, "User not found")
			return
		}
		response.InternalError(w, "Failed to load user")
		return
	}

	response.Success(w, user)
}
