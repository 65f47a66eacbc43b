package service

import (
	"context"
	"strings"

	"github.com/sarthak03dot/Chat-App/internal/domain"
)

// UserService provides user-related operations.
type UserService struct {
	users domain.UserRepository
}

func NewUserService(users domain.UserRepository) *UserService {
	return &UserService{users: users}
}

func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, domain.StoreFailure("get user", err)
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context) ([]*domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, domain.StoreFailure("list users", err)
	}
	return nonNil(users), nil
}

// Create seeds a user record. Credentials live with the identity provider.
func (s *UserService) Create(ctx context.Context, username string, profile *string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 50 {
		return nil, domain.Invalid("username must be 3-50 characters")
	}
	u := &domain.User{Username: username, Profile: profile}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, domain.StoreFailure("create user", err)
	}
	return u, nil
}

// Block adds blockedID to userID's block-list.
func (s *UserService) Block(ctx context.Context, userID, blockedID string) error {
	if userID == blockedID {
		return domain.Invalid("cannot block yourself")
	}
	if _, err := s.users.GetByID(ctx, blockedID); err != nil {
		return domain.StoreFailure("get user", err)
	}
	if err := s.users.Block(ctx, userID, blockedID); err != nil {
		return domain.StoreFailure("block user", err)
	}
	return nil
}

func (s *UserService) Unblock(ctx context.Context, userID, blockedID string) error {
	if err := s.users.Unblock(ctx, userID, blockedID); err != nil {
		return domain.StoreFailure("unblock user", err)
	}
	return nil
}
