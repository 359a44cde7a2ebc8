package service

import (
	"context"
	"errors"
	"fmt"

	"vaultx/internal/domain"
	"vaultx/internal/repository"
)

type UserService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{
		userRepo: userRepo,
	}
}

// GetMe returns the session view of an account; the password hash never
// leaves the service.
func (s *UserService) GetMe(ctx context.Context, id string) (*domain.SessionUser, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return &domain.SessionUser{ID: user.ID, Email: user.Email}, nil
}
