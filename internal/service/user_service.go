package service

import (
	"context"
	"fmt"

	"cardledger/internal/domain"
	"cardledger/pkg/logger"
)

type UserService struct {
	repo   domain.UserRepository
	logger logger.Logger
}

func NewUserService(repo domain.UserRepository, logger logger.Logger) domain.UserService {
	return &UserService{
		repo:   repo,
		logger: logger,
	}
}

func (s *UserService) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	if id <= 0 {
		return nil, domain.InvalidInput("user id must be a positive integer")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	if user == nil {
		return nil, domain.NotFound("user %d not found", id)
	}

	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *UserService) ensureEmailFree(ctx context.Context, email string, selfID int64) error {
	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if existing != nil && existing.ID != selfID {
		return domain.NewError(domain.KindConflict, "email %s is already registered", email)
	}
	return nil
}

func (s *UserService) CreateUser(ctx context.Context, in domain.UserInput) (*domain.User, error) {
	user, err := in.Validate()
	if err != nil {
		return nil, err
	}

	if err := s.ensureEmailFree(ctx, user.Email, 0); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "User created", map[string]interface{}{"user_id": user.ID})
	return user, nil
}

func (s *UserService) UpdateUser(ctx context.Context, id int64, in domain.UserInput) (*domain.User, error) {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := in.Apply(user); err != nil {
		return nil, err
	}

	if in.Email != nil {
		if err := s.ensureEmailFree(ctx, user.Email, user.ID); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "User updated", map[string]interface{}{"user_id": user.ID})
	return user, nil
}

func (s *UserService) DeleteUser(ctx context.Context, id int64) error {
	if _, err := s.GetUserByID(ctx, id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "User deleted", map[string]interface{}{"user_id": id})
	return nil
}
